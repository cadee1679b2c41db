package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/pkg/arenadto"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis dials REDIS_URL and verifies the connection.
func OpenRedis(ctx context.Context, rawURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func keyFinal(email string) string { return "arena:snapshot:user:" + domain.NormalizeEmail(email) }

func (s *RedisStore) SaveFinal(ctx context.Context, state arenadto.GameState, emails ...string) error {
	raw, err := json.Marshal(state.Spectator())
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, e := range emails {
		if strings.TrimSpace(e) == "" {
			continue
		}
		pipe.Set(ctx, keyFinal(e), raw, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LastFinal(ctx context.Context, email string) (arenadto.GameState, bool, error) {
	raw, err := s.rdb.Get(ctx, keyFinal(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return arenadto.GameState{}, false, nil
	}
	if err != nil {
		return arenadto.GameState{}, false, err
	}
	var st arenadto.GameState
	if err := json.Unmarshal(raw, &st); err != nil {
		return arenadto.GameState{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.rdb.Close() }

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
