package session

import (
	"time"

	"github.com/park285/chess-arena/internal/domain"
)

// Snapshot is an immutable, versioned copy of a session's state. Versions
// increase by one per transition, starting at 1.
type Snapshot struct {
	ID        string
	Version   uint64
	White     domain.User
	Black     domain.User
	TimeLimit time.Duration
	StartedAt time.Time
	EndedAt   time.Time

	FEN     string
	History []domain.Move
	Turn    domain.Color

	// Remaining time of each side at TurnStart. Only the side to move runs.
	WhiteRemaining time.Duration
	BlackRemaining time.Duration
	TurnStart      time.Time
	ServerTime     time.Time

	// LegalMoves belong to the side to move and are empty once ended.
	LegalMoves []domain.Move
	Outcome    domain.Outcome
}

func (s Snapshot) Ended() bool { return s.Outcome != nil }

// ColorOf returns the colour email plays in this session.
func (s Snapshot) ColorOf(email string) (domain.Color, bool) {
	e := domain.NormalizeEmail(email)
	switch e {
	case s.White.Email:
		return domain.White, true
	case s.Black.Email:
		return domain.Black, true
	}
	return "", false
}

// PossibleMovesFor returns the legal moves visible to viewer: the full list for
// the player whose turn it is, nothing for anyone else.
func (s Snapshot) PossibleMovesFor(viewer string) []domain.Move {
	if s.Ended() {
		return nil
	}
	c, ok := s.ColorOf(viewer)
	if !ok || c != s.Turn {
		return nil
	}
	return s.LegalMoves
}

// RemainingAt projects both clocks to now.
func (s Snapshot) RemainingAt(now time.Time) (white, black time.Duration) {
	white, black = s.WhiteRemaining, s.BlackRemaining
	if s.Ended() {
		return white, black
	}
	elapsed := now.Sub(s.TurnStart)
	if elapsed < 0 {
		elapsed = 0
	}
	if s.Turn == domain.White {
		white = clampZero(white - elapsed)
	} else {
		black = clampZero(black - elapsed)
	}
	return white, black
}

func (s Snapshot) Players() []string { return []string{s.White.Email, s.Black.Email} }

func clampZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
