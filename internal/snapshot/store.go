// Package snapshot keeps the final game state of each user's latest game so a
// viewer reconnecting after the end still receives its most recent session.
package snapshot

import (
	"context"
	"time"

	"github.com/park285/chess-arena/pkg/arenadto"
)

// DefaultTTL applies when a store is built with ttl <= 0.
const DefaultTTL = 24 * time.Hour

type Store interface {
	SaveFinal(ctx context.Context, state arenadto.GameState, emails ...string) error
	// LastFinal reports ok=false when nothing is stored or the entry expired.
	LastFinal(ctx context.Context, email string) (state arenadto.GameState, ok bool, err error)
	Ping(ctx context.Context) error
	Close() error
}
