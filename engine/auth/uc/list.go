package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
)

// KeyInfo is the secret-free projection of an API key record.
type KeyInfo struct {
	ID        core.ID    `json:"id"`
	Role      model.Role `json:"role"`
	Label     string     `json:"label,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// List returns all key records without their hashes, newest first.
type List struct {
	repo Repository
}

// NewList constructs the use case.
func NewList(repo Repository) *List {
	return &List{repo: repo}
}

func (uc *List) Execute(ctx context.Context) ([]KeyInfo, error) {
	keys, err := uc.repo.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	infos := make([]KeyInfo, len(keys))
	for i, key := range keys {
		infos[i] = KeyInfo{
			ID:        key.ID,
			Role:      key.Role,
			Label:     key.Label,
			Active:    key.Active,
			CreatedAt: key.CreatedAt,
		}
	}
	return infos, nil
}
