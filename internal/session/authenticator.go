package session

import (
	"context"
	"errors"

	"water-monitoring/internal/model"
)

// ErrInvalidCredentials is returned when the identifier/secret pair is not accepted
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator resolves credentials to an identity
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (*model.Identity, error)
}

type credential struct {
	secret   string
	identity model.Identity
}

// StaticAuthenticator checks credentials against a fixed table. Identifiers
// are case-sensitive and secrets must match exactly.
type StaticAuthenticator struct {
	credentials map[string]credential
}

// NewStaticAuthenticator returns the demonstration credential table
func NewStaticAuthenticator() *StaticAuthenticator {
	a := &StaticAuthenticator{credentials: map[string]credential{}}
	a.Add("admin@irrigation.gov", "admin123", model.Identity{UserID: "admin@irrigation.gov", Name: "Dr. John Smith", Role: model.RoleAdmin})
	a.Add("officer@irrigation.gov", "officer123", model.Identity{UserID: "officer@irrigation.gov", Name: "Sarah Johnson", Role: model.RoleOfficer})
	a.Add("viewer@irrigation.gov", "viewer123", model.Identity{UserID: "viewer@irrigation.gov", Name: "Mike Wilson", Role: model.RoleViewer})
	return a
}

// Add registers or replaces a credential
func (a *StaticAuthenticator) Add(identifier, secret string, identity model.Identity) {
	a.credentials[identifier] = credential{secret: secret, identity: identity}
}

// Authenticate implements Authenticator
func (a *StaticAuthenticator) Authenticate(ctx context.Context, identifier, secret string) (*model.Identity, error) {
	c, ok := a.credentials[identifier]
	if !ok || c.secret != secret {
		return nil, ErrInvalidCredentials
	}
	identity := c.identity
	return &identity, nil
}
