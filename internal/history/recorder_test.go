package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/rating"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/internal/store"
)

func finishedSnapshot() session.Snapshot {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return session.Snapshot{
		ID:        "game-1",
		White:     domain.User{Username: "alice", Email: "alice@x.io", Elo: 1200, State: domain.StateGame},
		Black:     domain.User{Username: "bob", Email: "bob@x.io", Elo: 1200, State: domain.StateGame},
		TimeLimit: 5 * time.Minute,
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
		FEN:       "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		History: []domain.Move{
			{SAN: "f3"}, {SAN: "e5"}, {SAN: "g4"}, {SAN: "Qh4#"},
		},
		Outcome: domain.Decisive{Why: domain.ReasonCheckmate, Winner: domain.Black},
	}
}

func TestBuildPGN(t *testing.T) {
	g, err := Build(finishedSnapshot(), 1184, 1216)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Winner != domain.ResultBlack || g.Reason != "checkmate" || g.TimeLimitMs != 300000 {
		t.Fatalf("unexpected record %+v", g)
	}
	for _, want := range []string{`[White "alice"]`, `[Result "0-1"]`, `[TimeControl "300"]`, "1. f3 e5 2. g4 Qh4# 0-1"} {
		if !strings.Contains(g.PGN, want) {
			t.Fatalf("pgn missing %q:\n%s", want, g.PGN)
		}
	}
	snap := finishedSnapshot()
	snap.Outcome = nil
	if _, err := Build(snap, 0, 0); err == nil {
		t.Fatalf("unfinished sessions cannot be recorded")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	for _, u := range []domain.User{
		{Username: "alice", Email: "alice@x.io", Elo: 1200, State: domain.StateGame},
		{Username: "bob", Email: "bob@x.io", Elo: 1200, State: domain.StateGame},
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	r := NewRecorder(repo, rating.New(32))
	rec, err := r.Record(ctx, finishedSnapshot())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.White.Elo != 1184 || rec.Black.Elo != 1216 || rec.White.State != domain.StateNone {
		t.Fatalf("players after record: %+v %+v", rec.White, rec.Black)
	}
	games, err := r.Collect(ctx, "bob@x.io")
	if err != nil || len(games) != 1 {
		t.Fatalf("Collect: %v %v", games, err)
	}
	got := games[0]
	if got.PGN != rec.Game.PGN || got.Winner != domain.ResultBlack || !got.StartTime.Equal(rec.Game.StartTime) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.WhiteEloBefore != 1200 || got.BlackEloAfter != 1216 {
		t.Fatalf("ratings not stored: %+v", got)
	}
	if games, _ := r.Collect(ctx, "carol@x.io"); len(games) != 0 {
		t.Fatalf("carol has no games")
	}
}

func TestMoveText(t *testing.T) {
	if got := MoveText(nil); got != "" {
		t.Fatalf("empty: %q", got)
	}
	if got := MoveText([]string{"e4", "e5", "Nf3"}); got != "1. e4 e5 2. Nf3" {
		t.Fatalf("got %q", got)
	}
}
