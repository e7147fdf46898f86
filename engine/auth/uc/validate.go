package uc

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// Pre-computed bcrypt hash (cost 10) used to equalize timing when no record
// matches the presented secret. Any valid bcrypt hash works here.
var dummyBcryptHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOa5hnhtNGRjukDWO2xzg3sjQTL1dDQ2u")

// Validate resolves a presented plaintext secret to its key record. Unknown,
// revoked, and malformed secrets all fail with the same AUTH_FAILURE.
type Validate struct {
	repo Repository
}

// NewValidate constructs the use case.
func NewValidate(repo Repository) *Validate {
	return &Validate{repo: repo}
}

// Execute validates the secret and returns the active key record.
func (uc *Validate) Execute(ctx context.Context, presented string) (*model.APIKey, error) {
	log := logger.FromContext(ctx)
	fingerprint := sha256.Sum256([]byte(presented))
	key, err := uc.repo.GetKeyByFingerprint(ctx, fingerprint[:])
	if err != nil {
		// Burn a bcrypt comparison so the miss path costs the same as a hit.
		_ = bcrypt.CompareHashAndPassword(dummyBcryptHash, []byte(presented)) //nolint:errcheck
		if errors.Is(err, ErrKeyNotFound) {
			return nil, core.NewError(ErrInvalidKey, core.CodeAuthFailure, nil)
		}
		log.Error("Failed to look up API key", "error", err)
		return nil, fmt.Errorf("failed to validate api key: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(key.Hash, []byte(presented)); err != nil {
		log.Debug("API key hash verification failed")
		return nil, core.NewError(ErrInvalidKey, core.CodeAuthFailure, nil)
	}
	if !key.Active {
		log.Debug("Revoked API key presented", "key_id", key.ID)
		return nil, core.NewError(ErrInvalidKey, core.CodeAuthFailure, nil)
	}
	return key, nil
}
