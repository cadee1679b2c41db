package arenadto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/session"
)

func TestFromSnapshotHidesMovesFromWaitingSide(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	snap := session.Snapshot{
		ID:             "g1",
		Version:        3,
		White:          domain.User{Email: "w@x.io", Username: "w", Elo: 1200, State: domain.StateGame},
		Black:          domain.User{Email: "b@x.io", Username: "b", Elo: 1250, State: domain.StateGame},
		TimeLimit:      time.Minute,
		Turn:           domain.Black,
		History:        []domain.Move{{Color: domain.White, From: "e2", To: "e4", Flags: "b", Piece: "p", SAN: "e4"}},
		WhiteRemaining: 58 * time.Second,
		BlackRemaining: time.Minute,
		TurnStart:      now,
		ServerTime:     now,
		LegalMoves:     []domain.Move{{Color: domain.Black, From: "e7", To: "e5", Flags: "b", Piece: "p", SAN: "e5"}},
	}
	white := FromSnapshot(snap, "w@x.io")
	black := FromSnapshot(snap, "B@x.io")
	if len(white.PossibleMoves) != 0 {
		t.Fatalf("white is waiting, got %v", white.PossibleMoves)
	}
	if len(black.PossibleMoves) != 1 || black.PossibleMoves[0].Color != "b" {
		t.Fatalf("black to move, got %v", black.PossibleMoves)
	}
	if white.PGN != "1. e4" || white.WhiteRemainingTimeMs != 58000 || white.TurnStartTimestamp != now.UnixMilli() {
		t.Fatalf("unexpected state %+v", white)
	}
	raw, err := json.Marshal(white)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"winLoss":null`, `"possibleMoves":[]`, `"playerTurn":"black"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("%s missing %s", raw, want)
		}
	}
}

func TestFromOutcome(t *testing.T) {
	if FromOutcome(nil) != nil {
		t.Fatalf("nil outcome must map to null")
	}
	d := FromOutcome(domain.Draw{Why: domain.ReasonStalemate})
	if d.Reason != "stalemate" || d.Winner != nil {
		t.Fatalf("draw: %+v", d)
	}
	w := FromOutcome(domain.Decisive{Why: domain.ReasonTimeout, Winner: domain.Black})
	if w.Reason != "timeout" || w.Winner == nil || *w.Winner != "black" {
		t.Fatalf("decisive: %+v", w)
	}
}

func TestEncodeFrame(t *testing.T) {
	raw, err := Encode(EventInputError, "not your turn")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"event":"input_error","data":"not your turn"}` {
		t.Fatalf("got %s", raw)
	}
}
