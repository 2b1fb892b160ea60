package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the display subset of a JWT credential.
type Claims struct {
	Subject   string
	Username  string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the claims carry an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Inspect decodes a JWT credential without verifying its signature. It is for
// display only; ok is false when the token is not a JWT.
func Inspect(raw string) (Claims, bool) {
	if raw == "" {
		return Claims{}, false
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return Claims{}, false
	}

	var out Claims
	out.Subject, _ = mc.GetSubject()
	out.Issuer, _ = mc.GetIssuer()
	if name, ok := mc["username"].(string); ok {
		out.Username = name
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, true
}
