package model

import (
	"time"

	"github.com/askdocs/askdocs/engine/core"
)

// APIKey represents an issued credential. The plaintext secret exists only at
// generation time; the record stores a bcrypt hash plus a SHA-256 fingerprint
// for O(1) lookups.
type APIKey struct {
	ID          core.ID   `db:"id"`
	Hash        []byte    `db:"hash"`
	Fingerprint []byte    `db:"fingerprint"`
	Prefix      string    `db:"prefix"`
	Role        Role      `db:"role"`
	Label       string    `db:"label"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}
