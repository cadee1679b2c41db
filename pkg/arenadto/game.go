package arenadto

import (
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/history"
	"github.com/park285/chess-arena/internal/session"
)

// WinLoss is null while the game runs. Winner is null for draws.
type WinLoss struct {
	Reason string  `json:"reason"`
	Winner *string `json:"winner"`
}

func FromOutcome(o domain.Outcome) *WinLoss {
	switch v := o.(type) {
	case domain.Decisive:
		w := string(v.Winner)
		return &WinLoss{Reason: string(v.Why), Winner: &w}
	case domain.Draw:
		return &WinLoss{Reason: string(v.Why)}
	default:
		return nil
	}
}

// GameState is the per-viewer session snapshot pushed as the game event.
// Remaining times are measured at turnStartTimestamp; clients run the clock
// of playerTurn from there.
type GameState struct {
	ID                   string   `json:"id"`
	Version              uint64   `json:"version"`
	WhitePlayer          User     `json:"whitePlayer"`
	BlackPlayer          User     `json:"blackPlayer"`
	FEN                  string   `json:"fen"`
	PGN                  string   `json:"pgn"`
	History              []Move   `json:"history"`
	PlayerTurn           string   `json:"playerTurn"`
	WhiteRemainingTimeMs int64    `json:"whiteRemainingTimeMs"`
	BlackRemainingTimeMs int64    `json:"blackRemainingTimeMs"`
	TurnStartTimestamp   int64    `json:"turnStartTimestamp"`
	TimeLimitMs          int64    `json:"timeLimitMs"`
	ServerTime           int64    `json:"serverTime"`
	PossibleMoves        []Move   `json:"possibleMoves"`
	WinLoss              *WinLoss `json:"winLoss"`
}

// FromSnapshot renders snap for viewer. Only the side to move sees its
// possible moves.
func FromSnapshot(snap session.Snapshot, viewer string) GameState {
	san := make([]string, len(snap.History))
	for i, m := range snap.History {
		san[i] = m.SAN
	}
	return GameState{
		ID:                   snap.ID,
		Version:              snap.Version,
		WhitePlayer:          FromUser(snap.White),
		BlackPlayer:          FromUser(snap.Black),
		FEN:                  snap.FEN,
		PGN:                  history.MoveText(san),
		History:              FromMoves(snap.History),
		PlayerTurn:           string(snap.Turn),
		WhiteRemainingTimeMs: snap.WhiteRemaining.Milliseconds(),
		BlackRemainingTimeMs: snap.BlackRemaining.Milliseconds(),
		TurnStartTimestamp:   snap.TurnStart.UnixMilli(),
		TimeLimitMs:          snap.TimeLimit.Milliseconds(),
		ServerTime:           snap.ServerTime.UnixMilli(),
		PossibleMoves:        FromMoves(snap.PossibleMovesFor(viewer)),
		WinLoss:              FromOutcome(snap.Outcome),
	}
}

// Spectator returns the state with no possible moves, as stored for replay
// after the game.
func (g GameState) Spectator() GameState {
	g.PossibleMoves = []Move{}
	return g
}
