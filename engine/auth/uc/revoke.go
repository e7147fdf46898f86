package uc

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/logger"
)

// Revoke deactivates a key by identifier. The record is kept so the
// fingerprint stays reserved and the revocation is auditable.
type Revoke struct {
	repo Repository
}

// NewRevoke constructs the use case.
func NewRevoke(repo Repository) *Revoke {
	return &Revoke{repo: repo}
}

func (uc *Revoke) Execute(ctx context.Context, id core.ID) error {
	if id.IsZero() {
		return core.NewError(fmt.Errorf("key id is required"), core.CodeNotFound, nil)
	}
	if err := uc.repo.RevokeKey(ctx, id); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return core.NewError(err, core.CodeNotFound, map[string]any{"key_id": id.String()})
		}
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	logger.FromContext(ctx).Info("API key revoked", "key_id", id)
	return nil
}
