// Package token decrypts the bearer tokens presented during
// identification and validates the claims they carry. The node holds the
// RSA private key; tokens are minted by the account service with the
// matching public key and are typically seen once per connection, so no
// token-to-claims caching is kept.
package token

import "time"

// Claims are the decoded token fields. Immutable once parsed.
type Claims struct {
	Subject          string   `json:"sub,omitempty"`
	Audience         string   `json:"aud,omitempty"`
	ID               string   `json:"jti,omitempty"`
	VendorIdentifier string   `json:"vdi,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
	Expiry           int64    `json:"exp,omitempty"`
	NotBefore        int64    `json:"nbf,omitempty"`
	IssuedAt         int64    `json:"iat,omitempty"`
}

// ParticipantIdentifier returns the stable account identity bound to the
// token. The token ID doubles as the participant identifier.
func (c *Claims) ParticipantIdentifier() string {
	return c.ID
}

func (c *Claims) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0).UTC()
}

// HasRoles reports whether the claims carry at least one of the wanted
// roles.
func (c *Claims) HasRoles(wanted ...string) bool {
	return intersects(c.Roles, wanted)
}

// HasPermissions reports whether the claims carry at least one of the
// wanted permissions.
func (c *Claims) HasPermissions(wanted ...string) bool {
	return intersects(c.Permissions, wanted)
}

func intersects(held, wanted []string) bool {
	for _, h := range held {
		for _, w := range wanted {
			if h == w {
				return true
			}
		}
	}
	return false
}
