package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/domain"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTFromHeaderAndCookie(t *testing.T) {
	r := NewJWT("secret", "", "session")
	tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"email": " Alice@X.io "})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	email, err := r.Resolve(context.Background(), req)
	if err != nil || email != "alice@x.io" {
		t.Fatalf("header: %q %v", email, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	if email, err = r.Resolve(context.Background(), req); err != nil || email != "alice@x.io" {
		t.Fatalf("cookie: %q %v", email, err)
	}
}

func TestJWTRejects(t *testing.T) {
	r := NewJWT("secret", "email", "session")
	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"email": "a@x.io"}),
		"wrong alg":    "Bearer " + sign(t, jwt.SigningMethodHS512, []byte("secret"), jwt.MapClaims{"email": "a@x.io"}),
		"no email":     "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "1"}),
		"bad scheme":   "Token abc",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := r.Resolve(context.Background(), req); !errors.Is(err, domain.ErrNotLoggedIn) {
			t.Fatalf("%s: want not logged in, got %v", name, err)
		}
	}
}

func TestRemoteForwardsCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SessionPath {
			http.NotFound(w, r)
			return
		}
		c, err := r.Cookie("session")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"user":{"email":"Bob@x.io","name":"bob"}}`)
	}))
	t.Cleanup(srv.Close)

	r := NewRemote(srv.URL, "session")
	req := httptest.NewRequest(http.MethodGet, "/previousGames", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	email, err := r.Resolve(context.Background(), req)
	if err != nil || email != "bob@x.io" {
		t.Fatalf("resolve: %q %v", email, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/previousGames", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "nope"})
	if _, err := r.Resolve(context.Background(), req); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("rejected session: %v", err)
	}
	if _, err := r.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("no cookie: %v", err)
	}
}

func TestNewPicksMode(t *testing.T) {
	if _, ok := mustNew(t, config.AuthConfig{Mode: "jwt", JWTSecret: "s"}).(*JWT); !ok {
		t.Fatalf("jwt mode")
	}
	if _, ok := mustNew(t, config.AuthConfig{Mode: "remote", BaseURL: "http://accounts"}).(*Remote); !ok {
		t.Fatalf("remote mode")
	}
	if _, err := New(config.AuthConfig{Mode: "ldap"}); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}

func mustNew(t *testing.T, cfg config.AuthConfig) Resolver {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}
