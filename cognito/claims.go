package cognito

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the claims of a Cognito ID or access token.
// Issuer, audience, subject and expiry live in the embedded registered claims.
type Claims struct {
	jwt.RegisteredClaims
	TokenUse        string   `json:"token_use,omitempty"`
	Email           string   `json:"email,omitempty"`
	EmailVerified   bool     `json:"email_verified,omitempty"`
	AuthTime        int64    `json:"auth_time,omitempty"`
	CognitoUsername string   `json:"cognito:username,omitempty"`
	Groups          []string `json:"cognito:groups,omitempty"`
	ClientID        string   `json:"client_id,omitempty"`
}

// ExpiresAtTime returns the expiry as a time.Time, zero if absent
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Username returns the Cognito username, falling back to the subject
func (c *Claims) Username() string {
	if c.CognitoUsername != "" {
		return c.CognitoUsername
	}
	return c.Subject
}
