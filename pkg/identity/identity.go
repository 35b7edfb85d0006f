// Package identity resolves who is calling an HTTP connector.
//
// Each connector may name a realm. A Provider maps realm names to a
// Manager, and the Manager authenticates requests for that realm: HTTP
// Basic against bcrypt accounts (static realms) or Bearer tokens (JWT
// realms). How credentials are checked is up to the Manager; the server
// only asks the Provider for one when a connector is activated.
package identity

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

var (
	// ErrNoCredentials is returned when the request carries no credentials
	// the manager understands.
	ErrNoCredentials = errors.New("no credentials")

	// ErrInvalidCredentials is returned when credentials are present but
	// wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownRealm is returned by a Provider for a realm it does not
	// serve.
	ErrUnknownRealm = errors.New("unknown realm")
)

// Principal is an authenticated caller.
type Principal struct {
	Name  string   `json:"name"`
	Realm string   `json:"realm"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether p carries role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// Manager authenticates requests for one realm.
type Manager interface {
	// Realm is the realm name this manager serves.
	Realm() string

	// Authenticate extracts and checks the request's credentials. It
	// returns ErrNoCredentials when there are none.
	Authenticate(r *http.Request) (*Principal, error)

	// Challenge is the WWW-Authenticate value sent with a 401.
	Challenge() string
}

// Provider resolves the Manager for a realm.
type Provider interface {
	IdentityManager(realm string) (Manager, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(realm string) (Manager, error)

func (f ProviderFunc) IdentityManager(realm string) (Manager, error) {
	return f(realm)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the authentication
// middleware, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
