// Package store persists users and finished games. Every method that changes
// more than one row does so in a single transaction (Postgres) or under a
// single lock (memory), so readers never observe a half-applied change.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/park285/chess-arena/internal/domain"
)

// ErrStateConflict is returned by CompareAndSetState when the stored state
// differs from the expected one.
var ErrStateConflict = errors.New("user state changed concurrently")

var ErrDuplicateGame = errors.New("game already recorded")

type Directory interface {
	GetUser(ctx context.Context, email string) (domain.User, error)
	SetState(ctx context.Context, email string, state domain.UserState) error
	CompareAndSetState(ctx context.Context, email string, from, to domain.UserState) (domain.User, error)
	SetElo(ctx context.Context, email string, elo int) error
	ListActive(ctx context.Context) ([]domain.User, error)
	MarkDeleted(ctx context.Context, emails []string) ([]domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	// ResetTransient returns queued and in-game users to StateNone. Queues and
	// sessions live in memory, so after a restart those states are orphaned.
	ResetTransient(ctx context.Context) (int, error)
}

type GameLog interface {
	// CompleteGame applies both rating updates, resets both players to
	// StateNone and appends the history record atomically. It returns the
	// players as stored afterwards (white, black).
	CompleteGame(ctx context.Context, c domain.Completion) (domain.User, domain.User, error)
	GamesByUser(ctx context.Context, email string) iter.Seq2[domain.HistoricalGame, error]
	Game(ctx context.Context, id string) (domain.HistoricalGame, error)
}

type Repository interface {
	Directory
	GameLog
	Ping(ctx context.Context) error
	Close() error
}

func uniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = domain.NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// deletable reports the reason u cannot be deleted, or nil.
func deletable(u domain.User) error {
	if u.IsAdmin || u.State != domain.StateNone {
		return domain.ErrInvalidState
	}
	return nil
}
