package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the subset of id token claims the gateway cares about. It is
// used for log attribution only — authorization always rides on the access
// token, never on these claims.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityFromBundle extracts claims from the stored id token without
// re-verifying the signature: the token was issued to us directly by the
// provider over the token endpoint and is never accepted from user input.
func IdentityFromBundle(b Bundle) (Identity, bool) {
	if b.IDToken == "" {
		return Identity{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(b.IDToken, claims); err != nil {
		return Identity{}, false
	}

	id := Identity{}
	if sub, err := claims.GetSubject(); err == nil {
		id.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	return id, id.Subject != ""
}
