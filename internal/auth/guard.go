package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means no valid token was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the token is valid but its role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// Verifier is the part of the token service the guard depends on.
type Verifier interface {
	Verify(raw string) (Identity, error)
}

// Guard gates task operations. It never touches a store.
type Guard struct {
	tokens Verifier
}

func NewGuard(tokens Verifier) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate converts a raw token into an identity.
func (g *Guard) Authenticate(raw string) (Identity, error) {
	id, err := g.tokens.Verify(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return id, nil
}

// AuthorizeAdminOnly fails with ErrForbidden unless the identity is an admin.
func (g *Guard) AuthorizeAdminOnly(id Identity) error {
	if !id.Role.IsAdmin() {
		return fmt.Errorf("%w: role %q is not admin", ErrForbidden, id.Role)
	}
	return nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
