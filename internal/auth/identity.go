package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a Microsoft access token says about its owner.
type Identity struct {
	OID   string
	Email string
	Name  string
}

// IdentityFromToken reads claims from a Microsoft access token without
// verifying it. The result is only used for labelling logs and linking
// accounts after a successful Graph call, never for authorization.
func IdentityFromToken(token string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, false
	}
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, false
	}

	str := func(key string) string {
		s, _ := claims[key].(string)
		return strings.TrimSpace(s)
	}
	id := Identity{OID: str("oid"), Name: str("name")}
	for _, key := range []string{"upn", "email", "preferred_username"} {
		if v := str(key); v != "" {
			id.Email = v
			break
		}
	}
	return id, id.Email != "" || id.OID != ""
}

// EmailFromToken returns the token owner's email, or "" when unknown.
func EmailFromToken(token string) string {
	id, _ := IdentityFromToken(token)
	return id.Email
}
