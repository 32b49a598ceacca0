package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// Identity is the caller resolved from the bearer token.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (i Identity) HasRole(role string) bool {
	return i.Role == role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.UserID == uuid.Nil {
		return Identity{}, false
	}
	return id, true
}
