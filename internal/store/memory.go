package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
)

// memrepo is the in-process Repository used when no database is configured.
// One mutex covers users and games.
type memrepo struct {
	mu sync.RWMutex

	users     map[string]*domain.User
	games     []*domain.HistoricalGame
	gamesByID map[string]*domain.HistoricalGame
}

func NewMemory() Repository {
	return &memrepo{
		users:     make(map[string]*domain.User),
		gamesByID: make(map[string]*domain.HistoricalGame),
	}
}

func (m *memrepo) Ping(context.Context) error { return nil }
func (m *memrepo) Close() error               { return nil }

func (m *memrepo) CreateUser(_ context.Context, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email == "" {
		return fmt.Errorf("create user: empty email")
	}
	if u.State == "" {
		u.State = domain.StateNone
	}
	if u.Elo == 0 {
		u.Elo = domain.DefaultElo
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return fmt.Errorf("create user %s: already exists", u.Email)
	}
	cp := u
	m.users[u.Email] = &cp
	return nil
}

func (m *memrepo) GetUser(_ context.Context, email string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *u, nil
}

func (m *memrepo) SetState(_ context.Context, email string, state domain.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.State = state
	return nil
}

func (m *memrepo) CompareAndSetState(_ context.Context, email string, from, to domain.UserState) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if u.State != from {
		return *u, ErrStateConflict
	}
	u.State = to
	return *u, nil
}

func (m *memrepo) SetElo(_ context.Context, email string, elo int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Elo = elo
	return nil
}

func (m *memrepo) ListActive(context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if u.State == domain.StateDeleted {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memrepo) MarkDeleted(_ context.Context, emails []string) ([]domain.User, error) {
	targets := uniqueEmails(emails)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range targets {
		u, ok := m.users[e]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, e)
		}
		if err := deletable(*u); err != nil {
			return nil, fmt.Errorf("%w: %s", err, e)
		}
	}
	out := make([]domain.User, 0, len(targets))
	for _, e := range targets {
		u := m.users[e]
		u.State = domain.StateDeleted
		out = append(out, *u)
	}
	return out, nil
}

func (m *memrepo) ResetTransient(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.State == domain.StateQueued || u.State == domain.StateGame {
			u.State = domain.StateNone
			n++
		}
	}
	return n, nil
}

func (m *memrepo) CompleteGame(_ context.Context, c domain.Completion) (domain.User, domain.User, error) {
	g := c.Game
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.gamesByID[g.ID]; dup {
		return domain.User{}, domain.User{}, ErrDuplicateGame
	}
	w, ok := m.users[g.WhitePlayer]
	if !ok {
		return domain.User{}, domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, g.WhitePlayer)
	}
	b, ok := m.users[g.BlackPlayer]
	if !ok {
		return domain.User{}, domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, g.BlackPlayer)
	}
	checkSnapshot(g.ID, *w, c.WhiteEloBefore)
	checkSnapshot(g.ID, *b, c.BlackEloBefore)

	w.Elo, w.State = c.WhiteEloAfter, domain.StateNone
	b.Elo, b.State = c.BlackEloAfter, domain.StateNone
	cp := g
	m.games = append(m.games, &cp)
	m.gamesByID[g.ID] = &cp
	return *w, *b, nil
}

func (m *memrepo) GamesByUser(_ context.Context, email string) iter.Seq2[domain.HistoricalGame, error] {
	email = domain.NormalizeEmail(email)
	return func(yield func(domain.HistoricalGame, error) bool) {
		m.mu.RLock()
		list := make([]domain.HistoricalGame, 0)
		for _, g := range m.games {
			if g.Involves(email) {
				list = append(list, *g)
			}
		}
		m.mu.RUnlock()
		sort.SliceStable(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
		for _, g := range list {
			if !yield(g, nil) {
				return
			}
		}
	}
}

func (m *memrepo) Game(_ context.Context, id string) (domain.HistoricalGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gamesByID[id]
	if !ok {
		return domain.HistoricalGame{}, domain.ErrGameNotFound
	}
	return *g, nil
}

// checkSnapshot logs when the stored rating drifted from the value captured at
// session start. A user plays one session at a time, so this indicates a bug.
func checkSnapshot(gameID string, u domain.User, before int) {
	if u.Elo != before {
		obslog.L().Warn("store_elo_snapshot_mismatch",
			zap.String("game_id", gameID),
			zap.String("email", u.Email),
			zap.Int("stored", u.Elo),
			zap.Int("snapshot", before),
		)
	}
	if u.State != domain.StateGame {
		obslog.L().Warn("store_complete_unexpected_state",
			zap.String("game_id", gameID),
			zap.String("email", u.Email),
			zap.String("state", string(u.State)),
		)
	}
}
