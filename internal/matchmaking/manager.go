package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/store"
)

// Manager keeps one FIFO bucket per time limit. Scanning and pairing happen
// in one critical section, so an entry is never handed to two sessions.
// Colours alternate per pairing: the older entry is white on even pairings
// and black on odd ones.
type Manager struct {
	mu      sync.Mutex
	buckets map[int64][]*Entry
	index   map[string]*Entry // email -> entry
	seq     uint64
	pairs   uint64

	dir    store.Directory
	start  StartFunc
	limits Limits
	now    func() time.Time
}

func NewManager(dir store.Directory, start StartFunc, limits Limits) *Manager {
	return &Manager{
		buckets: make(map[int64][]*Entry),
		index:   make(map[string]*Entry),
		dir:     dir,
		start:   start,
		limits:  limits,
		now:     time.Now,
	}
}

// Enqueue puts email into the bucket for timeLimitMs and pairs immediately
// when a partner is waiting. It returns the queued user and, if a game
// started, the pairing.
func (m *Manager) Enqueue(ctx context.Context, email string, timeLimitMs int64) (domain.User, *Pairing, error) {
	if !m.limits.Contains(timeLimitMs) {
		return domain.User{}, nil, domain.ErrInvalidTimeLimit
	}
	email = domain.NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[email]; ok {
		return domain.User{}, nil, domain.ErrAlreadyActive
	}
	u, err := m.dir.CompareAndSetState(ctx, email, domain.StateNone, domain.StateQueued)
	if errors.Is(err, store.ErrStateConflict) {
		if u.State == domain.StateDeleted {
			return domain.User{}, nil, domain.ErrUserDeleted
		}
		return domain.User{}, nil, domain.ErrAlreadyActive
	}
	if err != nil {
		return domain.User{}, nil, err
	}

	m.seq++
	e := &Entry{User: u, TimeLimitMs: timeLimitMs, EnqueuedAt: m.now(), Seq: m.seq}
	m.buckets[timeLimitMs] = append(m.buckets[timeLimitMs], e)
	m.index[email] = e
	obslog.L().Info("mm_enqueue",
		zap.String("email", email),
		zap.Int64("time_limit_ms", timeLimitMs),
		zap.Int("bucket_depth", len(m.buckets[timeLimitMs])),
	)

	p, err := m.pairLocked(ctx, timeLimitMs)
	if err != nil {
		return u, nil, err
	}
	return u, p, nil
}

// pairLocked matches the two oldest entries of a bucket, if present.
func (m *Manager) pairLocked(ctx context.Context, limit int64) (*Pairing, error) {
	q := m.buckets[limit]
	if len(q) < 2 {
		return nil, nil
	}
	first, second := q[0], q[1]
	m.buckets[limit] = q[2:]
	if len(m.buckets[limit]) == 0 {
		delete(m.buckets, limit)
	}
	delete(m.index, first.User.Email)
	delete(m.index, second.User.Email)

	a, errA := m.dir.CompareAndSetState(ctx, first.User.Email, domain.StateQueued, domain.StateGame)
	b, errB := m.dir.CompareAndSetState(ctx, second.User.Email, domain.StateQueued, domain.StateGame)
	if errA != nil || errB != nil {
		return nil, &PairingFailed{
			Released: m.released(ctx, m.release(ctx, first.User, errA == nil), m.release(ctx, second.User, errB == nil)),
			Err:      fmt.Errorf("pair %s/%s: %w", first.User.Email, second.User.Email, errors.Join(errA, errB)),
		}
	}

	white, black := a, b
	if m.pairs%2 == 1 {
		white, black = b, a
	}
	m.pairs++

	if err := m.start(white, black, time.Duration(limit)*time.Millisecond); err != nil {
		return nil, &PairingFailed{
			Released: m.released(ctx, m.release(ctx, white, true), m.release(ctx, black, true)),
			Err:      fmt.Errorf("start session: %w", err),
		}
	}
	obslog.L().Info("mm_pair",
		zap.String("white", white.Email),
		zap.String("black", black.Email),
		zap.Int64("time_limit_ms", limit),
		zap.Duration("white_waited", m.now().Sub(first.EnqueuedAt)),
	)
	return &Pairing{White: white, Black: black, TimeLimitMs: limit}, nil
}

// release puts a user back to StateNone after a failed pairing.
func (m *Manager) release(ctx context.Context, u domain.User, inGame bool) string {
	from := domain.StateQueued
	if inGame {
		from = domain.StateGame
	}
	if _, err := m.dir.CompareAndSetState(ctx, u.Email, from, domain.StateNone); err != nil {
		obslog.L().Warn("mm_release_failed", zap.String("email", u.Email), zap.Error(err))
	}
	return u.Email
}

// released reads the users back so callers push what is actually stored.
func (m *Manager) released(ctx context.Context, emails ...string) []domain.User {
	out := make([]domain.User, 0, len(emails))
	for _, e := range emails {
		u, err := m.dir.GetUser(ctx, e)
		if err != nil {
			obslog.L().Warn("mm_release_lookup_failed", zap.String("email", e), zap.Error(err))
			continue
		}
		out = append(out, u)
	}
	return out
}

// Cancel removes email's entry and resets the user to StateNone. It reports
// whether an entry existed.
func (m *Manager) Cancel(ctx context.Context, email string) (domain.User, bool, error) {
	email = domain.NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[email]
	if !ok {
		return domain.User{}, false, nil
	}
	delete(m.index, email)
	q := m.buckets[e.TimeLimitMs]
	for i, cur := range q {
		if cur == e {
			m.buckets[e.TimeLimitMs] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(m.buckets[e.TimeLimitMs]) == 0 {
		delete(m.buckets, e.TimeLimitMs)
	}
	u, err := m.dir.CompareAndSetState(ctx, email, domain.StateQueued, domain.StateNone)
	if err != nil {
		return domain.User{}, true, fmt.Errorf("cancel %s: %w", email, err)
	}
	obslog.L().Info("mm_cancel", zap.String("email", email), zap.Int64("time_limit_ms", e.TimeLimitMs))
	return u, true, nil
}

func (m *Manager) Queued(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[domain.NormalizeEmail(email)]
	return ok
}

// Depths returns the number of waiting entries per time limit.
func (m *Manager) Depths() map[int64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int, len(m.buckets))
	for k, q := range m.buckets {
		out[k] = len(q)
	}
	return out
}
