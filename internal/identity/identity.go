// Package identity resolves an authenticated principal to its current role.
package identity

import (
	"context"
	"errors"

	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/cache"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
)

// Claims is what the token layer knows about a caller
type Claims struct {
	ID    string
	Email string
	Name  string
}

// Principal is an authenticated actor with a resolved role
type Principal struct {
	ID    string
	Email string
	Name  string
	Role  models.Role
}

// DisplayName is the snapshot written into reviews and audit entries
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return "Unknown"
}

// Resolver looks roles up through the cache, falling back to the user store
type Resolver struct {
	users store.UserStore
	cache cache.RoleCache
}

// NewResolver creates a resolver. A nil cache means no caching.
func NewResolver(users store.UserStore, c cache.RoleCache) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	return &Resolver{users: users, cache: c}
}

// Resolve returns the principal behind claims. Unknown or deleted accounts
// are Unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, claims Claims) (Principal, error) {
	if claims.ID == "" {
		return Principal{}, apperr.Unauthenticated("Not authenticated")
	}

	p := Principal{ID: claims.ID, Email: claims.Email, Name: claims.Name}
	if role, ok := r.cache.Get(ctx, claims.ID); ok {
		p.Role = role
		return p, nil
	}

	user, err := r.users.GetUser(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, apperr.Unauthenticated("Account no longer exists")
		}
		return Principal{}, apperr.Collaborator("Failed to resolve role", err)
	}
	if !user.Role.Valid() {
		return Principal{}, apperr.New(apperr.KindInvalidState, "Account has an invalid role")
	}

	r.cache.Set(ctx, user.ID, user.Role)
	p.Role = user.Role
	if p.Email == "" {
		p.Email = user.Email
	}
	if p.Name == "" {
		p.Name = user.Name
	}
	return p, nil
}

// Forget drops the cached role, after a role change or deletion
func (r *Resolver) Forget(ctx context.Context, principalID string) {
	r.cache.Delete(ctx, principalID)
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
