package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/park285/chess-arena/internal/domain"
)

// JWT accepts HS256 tokens from the Authorization header or, for browser
// websocket upgrades, from the session cookie.
type JWT struct {
	secret     []byte
	emailClaim string
	cookie     string
}

func NewJWT(secret, emailClaim, cookie string) *JWT {
	if strings.TrimSpace(emailClaim) == "" {
		emailClaim = "email"
	}
	return &JWT{secret: []byte(secret), emailClaim: emailClaim, cookie: cookie}
}

func (j *JWT) Resolve(_ context.Context, r *http.Request) (string, error) {
	raw, ok := bearer(r)
	if !ok {
		raw, ok = cookieValue(r, j.cookie)
	}
	if !ok {
		return "", notLoggedIn("missing token")
	}
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return j.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", notLoggedIn("invalid token")
	}
	email, _ := claims[j.emailClaim].(string)
	if email = domain.NormalizeEmail(email); email == "" {
		return "", notLoggedIn("token has no " + j.emailClaim)
	}
	return email, nil
}
