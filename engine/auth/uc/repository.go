package uc

import (
	"context"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
)

// Repository defines all data access operations for the auth domain.
type Repository interface {
	// CreateKey persists a new API key record.
	CreateKey(ctx context.Context, key *model.APIKey) error
	// CreateInitialKeyIfNone atomically creates the bootstrap key if and only
	// if no key exists yet. Returns a CodeAlreadyBootstrapped error otherwise.
	CreateInitialKeyIfNone(ctx context.Context, key *model.APIKey) error
	// GetKeyByFingerprint looks a key up by its SHA-256 fingerprint.
	GetKeyByFingerprint(ctx context.Context, fingerprint []byte) (*model.APIKey, error)
	GetKeyByID(ctx context.Context, id core.ID) (*model.APIKey, error)
	ListKeys(ctx context.Context) ([]*model.APIKey, error)
	// RevokeKey flips the active flag; revoked keys are kept for audit.
	RevokeKey(ctx context.Context, id core.ID) error
}
