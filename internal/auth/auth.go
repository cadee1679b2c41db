// Package auth resolves the viewer behind a request. Accounts and login live
// in another service; this package only verifies what that service issued.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/domain"
)

// Resolver returns the normalized email of the authenticated viewer, or an
// error wrapping domain.ErrNotLoggedIn.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (string, error)
}

// New picks the resolver for AUTH_MODE.
func New(cfg config.AuthConfig) (Resolver, error) {
	switch cfg.Mode {
	case "jwt", "":
		return NewJWT(cfg.JWTSecret, cfg.EmailClaim, cfg.SessionCookie), nil
	case "remote":
		return NewRemote(cfg.BaseURL, cfg.SessionCookie, WithTimeout(cfg.Timeout)), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// bearer extracts the token of an "Authorization: Bearer" header.
func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

func notLoggedIn(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrNotLoggedIn, reason)
}

func cookieValue(r *http.Request, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", false
	}
	return c.Value, true
}
