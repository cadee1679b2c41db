package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/pkg/arenadto"
)

type memEntry struct {
	state   arenadto.GameState
	expires time.Time
}

// MemoryStore is used when no REDIS_URL is configured.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[string]memEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, m: make(map[string]memEntry)}
}

func (s *MemoryStore) SaveFinal(_ context.Context, state arenadto.GameState, emails ...string) error {
	st := state.Spectator()
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(s.ttl)
	for _, e := range emails {
		if e = domain.NormalizeEmail(e); e != "" {
			s.m[e] = memEntry{state: st, expires: exp}
		}
	}
	return nil
}

func (s *MemoryStore) LastFinal(_ context.Context, email string) (arenadto.GameState, bool, error) {
	key := domain.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return arenadto.GameState{}, false, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.m, key)
		return arenadto.GameState{}, false, nil
	}
	return e.state, true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
