// Package auth abstracts the identity provider. The engine only consumes an
// opaque bearer token and the admin custom claim.
package auth

import "context"

// Identity describes the signed-in user as far as the engine cares.
type Identity struct {
	UID   string
	Admin bool
}

// TokenProvider yields bearer tokens for backend calls. Implementations wrap
// the real identity provider; Guest is used when nobody is signed in.
type TokenProvider interface {
	// IDToken returns a bearer token, or "" when unauthenticated.
	IDToken(ctx context.Context) (string, error)
	// Identity returns the current identity, or nil when unauthenticated.
	Identity() *Identity
}

// Static is a fixed-token provider for tests and development.
type Static struct {
	Token string
	User  *Identity
}

func (s *Static) IDToken(ctx context.Context) (string, error) { return s.Token, nil }

func (s *Static) Identity() *Identity { return s.User }

// Guest is the unauthenticated provider.
var Guest TokenProvider = &Static{}
