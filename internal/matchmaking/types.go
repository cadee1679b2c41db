package matchmaking

import (
	"time"

	"github.com/park285/chess-arena/internal/domain"
)

// Entry is one waiting user. Seq orders entries across buckets.
type Entry struct {
	User        domain.User
	TimeLimitMs int64
	EnqueuedAt  time.Time
	Seq         uint64
}

// Pairing is the result of matching two entries of the same bucket.
type Pairing struct {
	White       domain.User
	Black       domain.User
	TimeLimitMs int64
}

// PairingFailed is returned by Enqueue when two entries were taken from the
// queue but no session started. Released holds both users as stored after
// they were put back to StateNone, so callers can tell them.
type PairingFailed struct {
	Released []domain.User
	Err      error
}

func (e *PairingFailed) Error() string { return "pairing failed: " + e.Err.Error() }

func (e *PairingFailed) Unwrap() error { return e.Err }

// StartFunc starts a session for a pairing. Both users are already in
// StateGame when it is called.
type StartFunc func(white, black domain.User, limit time.Duration) error

// Limits bounds the accepted time limits, in milliseconds.
type Limits struct {
	MinMs int64
	MaxMs int64
}

func (l Limits) Contains(ms int64) bool {
	if ms <= 0 {
		return false
	}
	if l.MinMs > 0 && ms < l.MinMs {
		return false
	}
	if l.MaxMs > 0 && ms > l.MaxMs {
		return false
	}
	return true
}
