package session

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenClaims are the fields the storefront reads from an access token.
// The signature is not verified here; the backend remains the authority.
type tokenClaims struct {
	Subject string
	UserID  int64
	Expired bool
}

func readClaims(token string, now time.Time) (tokenClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}, false
	}

	var out tokenClaims
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	switch id := claims["id"].(type) {
	case float64:
		out.UserID = int64(id)
	case string:
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			out.UserID = n
		}
	}
	out.Expired = !claims.VerifyExpiresAt(now.Unix(), false)
	return out, true
}
