package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/broadcast"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/history"
	"github.com/park285/chess-arena/internal/matchmaking"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/rating"
	"github.com/park285/chess-arena/internal/rules"
	"github.com/park285/chess-arena/internal/session/sessiontest"
	"github.com/park285/chess-arena/internal/snapshot"
	"github.com/park285/chess-arena/internal/store"
	"github.com/park285/chess-arena/pkg/arenadto"
)

type fixture struct {
	svc    *Service
	repo   store.Repository
	clock  *sessiontest.FakeClock
	finals *snapshot.MemoryStore
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	for _, u := range []domain.User{
		{Username: "alice", Email: "alice@x.io"},
		{Username: "bob", Email: "bob@x.io"},
		{Username: "carol", Email: "carol@x.io"},
		{Username: "root", Email: "root@x.io", IsAdmin: true},
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	clock := sessiontest.NewFakeClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	finals := snapshot.NewMemoryStore(time.Hour)
	n := 0
	svc, err := New(Deps{
		Directory:    repo,
		Recorder:     history.NewRecorder(repo, rating.New(32)),
		Hub:          broadcast.NewHub(256),
		Finals:       finals,
		Messages:     msgs,
		Rules:        rules.NewEngine(),
		Limits:       matchmaking.Limits{MinMs: 10_000, MaxMs: 3_600_000},
		ForfeitGrace: grace,
		Clock:        clock,
		IDs:          func() string { n++; return fmt.Sprintf("game-%d", n) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, repo: repo, clock: clock, finals: finals}
}

func (f *fixture) connect(t *testing.T, email string) *broadcast.Client {
	t.Helper()
	c, err := f.svc.Connect(context.Background(), email)
	if err != nil {
		t.Fatalf("Connect %s: %v", email, err)
	}
	return c
}

func (f *fixture) user(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.repo.GetUser(context.Background(), email)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return u
}

// pair connects alice and bob and starts a one minute game; alice is white.
func (f *fixture) pair(t *testing.T) (alice, bob *broadcast.Client) {
	t.Helper()
	ctx := context.Background()
	alice, bob = f.connect(t, "alice@x.io"), f.connect(t, "bob@x.io")
	if err := f.svc.PlayGame(ctx, "alice@x.io", "60000"); err != nil {
		t.Fatalf("PlayGame alice: %v", err)
	}
	if err := f.svc.PlayGame(ctx, "bob@x.io", `"60000"`); err != nil {
		t.Fatalf("PlayGame bob: %v", err)
	}
	return alice, bob
}

func drain(t *testing.T, c *broadcast.Client) []arenadto.Frame {
	t.Helper()
	var out []arenadto.Frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var fr arenadto.Frame
			if err := json.Unmarshal(raw, &fr); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			out = append(out, fr)
		default:
			return out
		}
	}
}

func games(t *testing.T, frames []arenadto.Frame) []arenadto.GameState {
	t.Helper()
	var out []arenadto.GameState
	for _, fr := range frames {
		if fr.Event != arenadto.EventGame {
			continue
		}
		var g arenadto.GameState
		if err := json.Unmarshal(fr.Data, &g); err != nil {
			t.Fatalf("decode game: %v", err)
		}
		out = append(out, g)
	}
	return out
}

func lastOf[T any](t *testing.T, list []T) T {
	t.Helper()
	if len(list) == 0 {
		t.Fatalf("expected at least one element")
	}
	return list[len(list)-1]
}

func TestPairingPushesInitialSnapshot(t *testing.T) {
	f := newFixture(t, time.Minute)
	alice, bob := f.pair(t)

	wg := lastOf(t, games(t, drain(t, alice)))
	bg := lastOf(t, games(t, drain(t, bob)))
	if wg.Version != 1 || wg.WhitePlayer.Email != "alice@x.io" || wg.PlayerTurn != "white" {
		t.Fatalf("unexpected white view %+v", wg)
	}
	if len(wg.PossibleMoves) != 20 || len(bg.PossibleMoves) != 0 {
		t.Fatalf("possible moves: white=%d black=%d", len(wg.PossibleMoves), len(bg.PossibleMoves))
	}
	if wg.FEN != bg.FEN || wg.WhiteRemainingTimeMs != 60000 {
		t.Fatalf("views disagree: %+v vs %+v", wg, bg)
	}
	if f.user(t, "alice@x.io").State != domain.StateGame || f.user(t, "bob@x.io").State != domain.StateGame {
		t.Fatalf("both players must be in game")
	}
}

func TestMovesAndInputErrors(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	alice, bob := f.pair(t)
	drain(t, alice)
	drain(t, bob)

	err := f.svc.MakeMove(ctx, "bob@x.io", domain.MoveInput{From: "e7", To: "e5"})
	if !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("want not your turn, got %v", err)
	}
	f.svc.Reject(bob, err)
	frames := drain(t, bob)
	if len(frames) != 1 || frames[0].Event != arenadto.EventInputError || !strings.Contains(string(frames[0].Data), "not your turn") {
		t.Fatalf("unexpected frames %+v", frames)
	}

	err = f.svc.MakeMove(ctx, "alice@x.io", domain.MoveInput{From: "e2", To: "e5"})
	if !errors.Is(err, domain.ErrIllegalMove) {
		t.Fatalf("want illegal move, got %v", err)
	}
	if msg := f.svc.Message(err); msg != "Illegal move: e2e5" {
		t.Fatalf("message %q", msg)
	}

	f.clock.Advance(3 * time.Second)
	if err := f.svc.MakeMove(ctx, "alice@x.io", domain.MoveInput{From: "e2", To: "e4", Piece: "p"}); err != nil {
		t.Fatalf("e4: %v", err)
	}
	ag := lastOf(t, games(t, drain(t, alice)))
	bg := lastOf(t, games(t, drain(t, bob)))
	if ag.Version != 2 || bg.Version != 2 || ag.PlayerTurn != "black" {
		t.Fatalf("versions %d/%d turn %s", ag.Version, bg.Version, ag.PlayerTurn)
	}
	if ag.WhiteRemainingTimeMs != 57000 || len(ag.PossibleMoves) != 0 || len(bg.PossibleMoves) != 20 {
		t.Fatalf("after e4: %+v", ag)
	}
	if err := f.svc.MakeMove(ctx, "carol@x.io", domain.MoveInput{From: "e7", To: "e5"}); !errors.Is(err, domain.ErrNotInGame) {
		t.Fatalf("carol is not playing: %v", err)
	}
}

func TestTimeoutRecordsGameAndResetsPlayers(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	alice, bob := f.pair(t)
	drain(t, alice)
	drain(t, bob)

	f.clock.Advance(60 * time.Second)

	final := lastOf(t, games(t, drain(t, bob)))
	if final.WinLoss == nil || final.WinLoss.Reason != "timeout" || *final.WinLoss.Winner != "black" {
		t.Fatalf("unexpected final state %+v", final.WinLoss)
	}
	if final.WhiteRemainingTimeMs != 0 || len(final.PossibleMoves) != 0 {
		t.Fatalf("final clocks/moves %+v", final)
	}
	a, b := f.user(t, "alice@x.io"), f.user(t, "bob@x.io")
	if a.State != domain.StateNone || b.State != domain.StateNone || a.Elo != 1184 || b.Elo != 1216 {
		t.Fatalf("players after timeout: %+v %+v", a, b)
	}
	list, err := f.svc.PreviousGames(ctx, "alice@x.io")
	if err != nil || len(list) != 1 {
		t.Fatalf("PreviousGames: %v %v", list, err)
	}
	if list[0].Winner != domain.ResultBlack || list[0].WhiteEloBefore != 1200 || list[0].TimeLimitMs != 60000 {
		t.Fatalf("history %+v", list[0])
	}
	if f.svc.Sessions().Len() != 0 {
		t.Fatalf("session must be discarded")
	}
	if _, err := f.svc.PreviousGame(ctx, "carol@x.io", list[0].ID); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("outsiders cannot read a game: %v", err)
	}

	// a later connection still sees the last game
	again := f.connect(t, "alice@x.io")
	st := lastOf(t, games(t, drain(t, again)))
	if st.ID != final.ID || st.WinLoss == nil {
		t.Fatalf("reconnect snapshot %+v", st)
	}
}

func TestDisconnectWhileQueuedCancels(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	c := f.connect(t, "carol@x.io")
	if err := f.svc.PlayGame(ctx, "carol@x.io", "30000"); err != nil {
		t.Fatalf("PlayGame: %v", err)
	}
	if err := f.svc.PlayGame(ctx, "carol@x.io", "30000"); !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("second enqueue: %v", err)
	}
	f.svc.Disconnect(ctx, c)
	if f.user(t, "carol@x.io").State != domain.StateNone || f.svc.Matchmaker().Queued("carol@x.io") {
		t.Fatalf("queue entry must be cancelled")
	}
}

func TestDisconnectInGameForfeitsAfterGrace(t *testing.T) {
	f := newFixture(t, 10*time.Second)
	ctx := context.Background()
	alice, bob := f.pair(t)
	drain(t, bob)

	f.svc.Disconnect(ctx, alice)
	f.clock.Advance(5 * time.Second)
	if f.svc.Sessions().Len() != 1 {
		t.Fatalf("game must survive within grace")
	}
	f.clock.Advance(5 * time.Second)
	final := lastOf(t, games(t, drain(t, bob)))
	if final.WinLoss == nil || final.WinLoss.Reason != "forfeit" || *final.WinLoss.Winner != "black" {
		t.Fatalf("expected forfeit win for black, got %+v", final.WinLoss)
	}
	if f.user(t, "alice@x.io").State != domain.StateNone {
		t.Fatalf("alice must be reset")
	}
}

func TestReconnectCancelsGrace(t *testing.T) {
	f := newFixture(t, 10*time.Second)
	ctx := context.Background()
	alice, _ := f.pair(t)

	f.svc.Disconnect(ctx, alice)
	back := f.connect(t, "alice@x.io")
	st := lastOf(t, games(t, drain(t, back)))
	if st.Version != 1 || len(st.PossibleMoves) != 20 {
		t.Fatalf("reconnect must see the running game: %+v", st)
	}
	f.clock.Advance(15 * time.Second)
	if f.svc.Sessions().Len() != 1 {
		t.Fatalf("reconnected player must not forfeit")
	}
}

func TestPlayGameValidation(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	err := f.svc.PlayGame(ctx, "carol@x.io", "soon")
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Fatalf("want malformed payload, got %v", err)
	}
	err = f.svc.PlayGame(ctx, "carol@x.io", "5")
	if !errors.Is(err, domain.ErrInvalidTimeLimit) {
		t.Fatalf("want invalid time limit, got %v", err)
	}
	if msg := f.svc.Message(err); msg != "Time limit must be between 10000 and 3600000 ms." {
		t.Fatalf("message %q", msg)
	}
}

func TestDeleteUsers(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	admin := f.connect(t, "root@x.io")
	f.pair(t)
	drain(t, admin)

	if err := f.svc.DeleteUsers(ctx, "carol@x.io", []string{"bob@x.io"}); !errors.Is(err, domain.ErrNotAdmin) {
		t.Fatalf("non admin delete: %v", err)
	}
	if err := f.svc.DeleteUsers(ctx, "root@x.io", []string{"alice@x.io"}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("deleting a player in game: %v", err)
	}
	if err := f.svc.DeleteUsers(ctx, "root@x.io", []string{"root@x.io"}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("deleting an admin: %v", err)
	}
	if err := f.svc.DeleteUsers(ctx, "root@x.io", []string{"nobody@x.io"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("deleting unknown user: %v", err)
	}
	if err := f.svc.DeleteUsers(ctx, "root@x.io", []string{"carol@x.io"}); err != nil {
		t.Fatalf("DeleteUsers: %v", err)
	}
	frames := drain(t, admin)
	fr := lastOf(t, frames)
	if fr.Event != arenadto.EventUsers || strings.Contains(string(fr.Data), "carol@x.io") {
		t.Fatalf("roster must drop carol: %s", fr.Data)
	}
	err := f.svc.PlayGame(ctx, "carol@x.io", "60000")
	if !errors.Is(err, domain.ErrUserDeleted) {
		t.Fatalf("deleted users cannot enqueue: %v", err)
	}
	if msg := f.svc.Message(err); msg != "This account has been deleted." {
		t.Fatalf("message = %q", msg)
	}
	if _, err := f.svc.Connect(ctx, "carol@x.io"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("deleted users cannot connect: %v", err)
	}
	if f.svc.hub.Connected("carol@x.io") {
		t.Fatalf("refused connection must not be subscribed")
	}
}

func TestConnectSendsRosterToAdminsOnly(t *testing.T) {
	f := newFixture(t, time.Minute)
	admin := drain(t, f.connect(t, "root@x.io"))
	user := drain(t, f.connect(t, "carol@x.io"))
	if len(admin) != 2 || admin[0].Event != arenadto.EventUser || admin[1].Event != arenadto.EventUsers {
		t.Fatalf("admin frames %+v", admin)
	}
	if len(user) != 1 || user[0].Event != arenadto.EventUser {
		t.Fatalf("user frames %+v", user)
	}
	if _, err := f.svc.Connect(context.Background(), "ghost@x.io"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("unknown users cannot connect: %v", err)
	}
}

func TestFailedPairingTellsWaitingPartner(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	alice, bob := f.connect(t, "alice@x.io"), f.connect(t, "bob@x.io")
	if err := f.svc.PlayGame(ctx, "alice@x.io", "60000"); err != nil {
		t.Fatalf("PlayGame alice: %v", err)
	}
	drain(t, alice)
	drain(t, bob)

	// Alice's row changes behind the matchmaker's back, so pairing cannot
	// move her into a game.
	if err := f.repo.SetState(ctx, "alice@x.io", domain.StateNone); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := f.svc.PlayGame(ctx, "bob@x.io", "60000"); err == nil {
		t.Fatalf("expected pairing error")
	}

	for _, c := range []*broadcast.Client{alice, bob} {
		fr := lastOf(t, drain(t, c))
		var u arenadto.User
		if fr.Event != arenadto.EventUser {
			t.Fatalf("%s: last frame %s", c.Email(), fr.Event)
		}
		if err := json.Unmarshal(fr.Data, &u); err != nil {
			t.Fatalf("decode user: %v", err)
		}
		if u.State != string(domain.StateNone) {
			t.Fatalf("%s pushed as %s", c.Email(), u.State)
		}
	}
	if f.svc.Sessions().Len() != 0 || f.svc.Matchmaker().Queued("alice@x.io") {
		t.Fatalf("nothing should be queued or running")
	}
}
