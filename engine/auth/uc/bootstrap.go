package uc

import (
	"context"
	"fmt"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/logger"
)

// Bootstrap creates the very first superadmin key directly against storage.
// It is safe to invoke from multiple racing startup paths: the insert is a
// single atomic insert-if-absent, so exactly one key is ever created.
type Bootstrap struct {
	repo       Repository
	prefix     string
	bcryptCost int
}

// NewBootstrap constructs the use case.
func NewBootstrap(repo Repository, prefix string, bcryptCost int) *Bootstrap {
	return &Bootstrap{repo: repo, prefix: prefix, bcryptCost: bcryptCost}
}

// Execute creates the initial superadmin key if no key exists yet. The
// returned plaintext is the only copy that will ever exist; created reports
// whether this invocation won the race.
func (uc *Bootstrap) Execute(ctx context.Context) (plaintext string, created bool, err error) {
	log := logger.FromContext(ctx)
	key, plaintext, err := newSecret(uc.prefix, uc.bcryptCost, model.RoleSuperadmin, "bootstrap")
	if err != nil {
		return "", false, err
	}
	if err := uc.repo.CreateInitialKeyIfNone(ctx, key); err != nil {
		if core.HasCode(err, core.CodeAlreadyBootstrapped) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to bootstrap superadmin key: %w", err)
	}
	log.Info("Bootstrap superadmin key created", "key_id", key.ID)
	return plaintext, true, nil
}
