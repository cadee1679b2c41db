package arenabuilder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-arena/internal/config"
)

func testConfig(t *testing.T, env map[string]string) *config.AppConfig {
	t.Helper()
	base := map[string]string{
		"AUTH_MODE":  "jwt",
		"JWT_SECRET": "test-secret",
		"DEV_USERS":  "alice@x.io:alice,root@x.io:root:admin",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(context.Background(), mapLookuper(base))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return cfg
}

type mapLookuper map[string]string

func (m mapLookuper) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, testConfig(t, nil), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	root, err := d.Repo.GetUser(ctx, "ROOT@x.io")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !root.IsAdmin || root.Username != "root" {
		t.Fatalf("root = %+v", root)
	}

	rec := httptest.NewRecorder()
	d.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestNewWithRedisSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	d, err := New(context.Background(), testConfig(t, map[string]string{"REDIS_URL": "redis://" + mr.Addr() + "/0"}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Finals.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewRejectsBadDevUser(t *testing.T) {
	if _, err := New(context.Background(), testConfig(t, map[string]string{"DEV_USERS": "nobody"}), nil); err == nil {
		t.Fatalf("expected error for malformed DEV_USERS")
	}
}

func TestParseDevUser(t *testing.T) {
	u, err := ParseDevUser(" Bob@X.io:bob:admin ")
	if err != nil {
		t.Fatalf("ParseDevUser: %v", err)
	}
	if u.Email != "bob@x.io" || u.Username != "bob" || !u.IsAdmin {
		t.Fatalf("u = %+v", u)
	}
	for _, bad := range []string{"bob@x.io", "bob@x.io:", ":bob", "bob@x.io:bob:owner", "a:b:c:d"} {
		if _, err := ParseDevUser(bad); err == nil {
			t.Fatalf("ParseDevUser(%q) expected error", bad)
		}
	}
}
