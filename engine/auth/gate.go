package auth

import (
	"context"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/auth/uc"
)

// Gate resolves presented secrets to key records. It is the single entry
// point the host layer uses before reaching any engine operation.
type Gate interface {
	Authenticate(ctx context.Context, presented string) (*model.APIKey, error)
}

type gate struct {
	validate *uc.Validate
}

// NewGate builds a Gate backed by the credential store.
func NewGate(repo uc.Repository) Gate {
	return &gate{validate: uc.NewValidate(repo)}
}

func (g *gate) Authenticate(ctx context.Context, presented string) (*model.APIKey, error) {
	return g.validate.Execute(ctx, presented)
}

type principalKey struct{}

// ContextWithKey stores the authenticated key record in the context.
func ContextWithKey(ctx context.Context, key *model.APIKey) context.Context {
	return context.WithValue(ctx, principalKey{}, key)
}

// KeyFromContext returns the authenticated key record, if any.
func KeyFromContext(ctx context.Context) (*model.APIKey, bool) {
	key, ok := ctx.Value(principalKey{}).(*model.APIKey)
	return key, ok
}
