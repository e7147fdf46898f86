package uc

import (
	"context"
	"fmt"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/logger"
)

// Issue creates a new API key on behalf of an existing key. The issuer must
// be admin or superadmin and must strictly outrank the requested role.
type Issue struct {
	repo       Repository
	prefix     string
	bcryptCost int
}

// NewIssue constructs the use case.
func NewIssue(repo Repository, prefix string, bcryptCost int) *Issue {
	return &Issue{repo: repo, prefix: prefix, bcryptCost: bcryptCost}
}

// Execute generates and persists a key, returning the record and the one-time
// plaintext secret.
func (uc *Issue) Execute(
	ctx context.Context,
	role model.Role,
	label string,
	issuer *model.APIKey,
) (*model.APIKey, string, error) {
	log := logger.FromContext(ctx)
	if issuer == nil {
		return nil, "", core.NewError(fmt.Errorf("issuer is required"), core.CodeAuthFailure, nil)
	}
	if !role.Valid() {
		return nil, "", core.NewError(fmt.Errorf("unknown role %q", role), core.CodeInsufficientRole, nil)
	}
	if !issuer.Role.AtLeast(model.RoleAdmin) || !issuer.Role.Outranks(role) {
		return nil, "", core.NewError(
			fmt.Errorf("role %q cannot issue %q keys", issuer.Role, role),
			core.CodeInsufficientRole,
			map[string]any{"issuer_role": string(issuer.Role), "requested_role": string(role)},
		)
	}
	key, plaintext, err := newSecret(uc.prefix, uc.bcryptCost, role, label)
	if err != nil {
		return nil, "", err
	}
	if err := uc.repo.CreateKey(ctx, key); err != nil {
		log.Error("Failed to create API key", "error", err, "role", role)
		return nil, "", fmt.Errorf("failed to create api key: %w", err)
	}
	log.Info("API key issued", "key_id", key.ID, "role", role, "issuer_id", issuer.ID)
	return key, plaintext, nil
}
