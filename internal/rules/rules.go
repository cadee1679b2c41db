// Package rules wraps the chess rules library behind the small capability set
// the session engine needs: legality, move application, terminal detection.
package rules

import (
	"errors"

	"github.com/park285/chess-arena/internal/domain"
)

// ErrIllegal reports a move the current position does not allow.
var ErrIllegal = errors.New("illegal move")

// ErrCorrupt reports a rules library failure on a move that was already
// validated. Callers treat it as an internal fault.
var ErrCorrupt = errors.New("rules engine state corrupted")

// Status is the terminal classification of a position.
type Status int

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
	InsufficientMaterial
	ThreefoldRepetition
	FiftyMoveRule
)

func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case InsufficientMaterial:
		return "insufficient-material"
	case ThreefoldRepetition:
		return "threefold-repetition"
	case FiftyMoveRule:
		return "fifty-move"
	default:
		return "ongoing"
	}
}

// Game is one board with its move history. Implementations are not safe for
// concurrent use; the owning session serialises access.
type Game interface {
	Turn() domain.Color
	Apply(in domain.MoveInput) (domain.Move, error)
	LegalMoves() []domain.Move
	Status() Status
	FEN() string
	History() []domain.Move
}

type Engine interface {
	NewGame() Game
	FromFEN(fen string) (Game, error)
}
