package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope markers distinguishing access tokens from refresh tokens.
const (
	ScopeAccess  = "ACCESS"
	ScopeRefresh = "REFRESH_TOKEN"
)

// AccessClaims is the claim set carried by every token this engine mints:
// registered claims plus authority names, the tenancy identifier, and the
// scope markers.
type AccessClaims struct {
	jwt.RegisteredClaims
	Authorities []string `json:"authorities,omitempty"`
	Tenancy     string   `json:"tenancy,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// Username returns the subject claim.
func (c *AccessClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// HasScope checks if the scopes claim contains the given marker.
func (c *AccessClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsRefresh reports whether the token carries the refresh marker.
func (c *AccessClaims) IsRefresh() bool {
	return c.HasScope(ScopeRefresh)
}

// HasAuthority checks if the authorities claim contains the given name.
func (c *AccessClaims) HasAuthority(name string) bool {
	for _, a := range c.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *AccessClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
