package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/rules"
)

// Observer is called with the session lock held, once per new version, so
// notifications leave a session in version order. Implementations must not
// call back into the same session.
type Observer interface {
	SessionChanged(snap Snapshot)
	// SessionEnded is called exactly once, with the terminal snapshot.
	SessionEnded(snap Snapshot)
}

// Session is one game between two players. All state is guarded by mu.
type Session struct {
	mu sync.Mutex

	id        string
	white     domain.User
	black     domain.User
	timeLimit time.Duration
	startedAt time.Time
	endedAt   time.Time

	game      rules.Game
	turn      domain.Color
	remaining map[domain.Color]time.Duration
	turnStart time.Time
	outcome   domain.Outcome
	version   uint64

	clock Clock
	obs   Observer
	timer Timer
	gen   uint64 // invalidates timers armed for an earlier turn
	done  chan struct{}
}

func newSession(id string, white, black domain.User, limit time.Duration, game rules.Game, clock Clock, obs Observer) *Session {
	now := clock.Now()
	return &Session{
		id:        id,
		white:     white,
		black:     black,
		timeLimit: limit,
		startedAt: now,
		game:      game,
		turn:      game.Turn(),
		remaining: map[domain.Color]time.Duration{domain.White: limit, domain.Black: limit},
		turnStart: now,
		clock:     clock,
		obs:       obs,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Done is closed when the session reaches its terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arm()
	s.publish()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Observe calls fn with the current snapshot while holding the session lock,
// so no later version can be published ahead of what fn delivers.
func (s *Session) Observe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshotLocked())
}

func (s *Session) colorOf(email string) (domain.Color, bool) {
	switch domain.NormalizeEmail(email) {
	case s.white.Email:
		return domain.White, true
	case s.black.Email:
		return domain.Black, true
	}
	return "", false
}

// SubmitMove validates and applies a move on behalf of email.
func (s *Session) SubmitMove(email string, in domain.MoveInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != nil {
		return domain.ErrWrongPhase
	}
	color, ok := s.colorOf(email)
	if !ok {
		return domain.ErrNotInGame
	}
	if color != s.turn {
		return domain.ErrNotYourTurn
	}
	now := s.clock.Now()
	// The timer may not have taken the lock yet; a flag that has fallen
	// still ends the game.
	if now.Sub(s.turnStart) >= s.remaining[color] {
		s.debit(now)
		s.remaining[color] = 0
		s.end(domain.Decisive{Why: domain.ReasonTimeout, Winner: color.Opponent()})
		return domain.ErrWrongPhase
	}
	mv, err := s.game.Apply(in)
	if errors.Is(err, rules.ErrIllegal) {
		return fmt.Errorf("%w: %s%s", domain.ErrIllegalMove, in.From, in.To)
	}
	if err != nil {
		obslog.L().Error("session_rules_fault",
			zap.String("session_id", s.id),
			zap.String("email", domain.NormalizeEmail(email)),
			zap.Error(err),
		)
		s.end(domain.Decisive{Why: domain.ReasonForfeit, Winner: color.Opponent()})
		return fmt.Errorf("session %s: %w", s.id, err)
	}

	s.remaining[color] = clampZero(s.remaining[color] - now.Sub(s.turnStart))
	s.turnStart = now
	s.turn = s.game.Turn()

	obslog.L().Debug("session_move",
		zap.String("session_id", s.id),
		zap.String("color", string(color)),
		zap.String("san", mv.SAN),
		zap.Duration("remaining", s.remaining[color]),
	)

	if o := outcomeFor(s.game.Status(), color); o != nil {
		s.end(o)
		return nil
	}
	s.arm()
	s.publish()
	return nil
}

// Forfeit ends the session in favour of email's opponent. Forfeiting an
// already finished session is a no-op.
func (s *Session) Forfeit(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	color, ok := s.colorOf(email)
	if !ok {
		return domain.ErrNotInGame
	}
	if s.outcome != nil {
		return nil
	}
	s.debit(s.clock.Now())
	s.end(domain.Decisive{Why: domain.ReasonForfeit, Winner: color.Opponent()})
	return nil
}

// expire is the timer callback. A stale generation means the turn already
// changed or the session ended.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != nil || gen != s.gen {
		return
	}
	loser := s.turn
	s.debit(s.clock.Now())
	s.remaining[loser] = 0
	s.end(domain.Decisive{Why: domain.ReasonTimeout, Winner: loser.Opponent()})
}

func (s *Session) debit(now time.Time) {
	s.remaining[s.turn] = clampZero(s.remaining[s.turn] - now.Sub(s.turnStart))
	s.turnStart = now
}

// arm cancels any running timer and starts one for the side to move.
func (s *Session) arm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.remaining[s.turn], func() { s.expire(gen) })
}

func (s *Session) end(o domain.Outcome) {
	if s.outcome != nil {
		return
	}
	s.outcome = o
	s.endedAt = s.clock.Now()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.version++
	snap := s.snapshotLocked()
	obslog.L().Info("session_end",
		zap.String("session_id", s.id),
		zap.String("reason", o.Reason()),
		zap.Int("plies", len(snap.History)),
	)
	s.obs.SessionEnded(snap)
	close(s.done)
}

func (s *Session) publish() {
	s.version++
	s.obs.SessionChanged(s.snapshotLocked())
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		Version:        s.version,
		White:          s.white,
		Black:          s.black,
		TimeLimit:      s.timeLimit,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		FEN:            s.game.FEN(),
		History:        s.game.History(),
		Turn:           s.turn,
		WhiteRemaining: s.remaining[domain.White],
		BlackRemaining: s.remaining[domain.Black],
		TurnStart:      s.turnStart,
		ServerTime:     s.clock.Now(),
		Outcome:        s.outcome,
	}
	if s.outcome == nil {
		snap.LegalMoves = s.game.LegalMoves()
	}
	return snap
}

// outcomeFor maps a rules status reached by mover's move to an Outcome.
func outcomeFor(st rules.Status, mover domain.Color) domain.Outcome {
	switch st {
	case rules.Checkmate:
		return domain.Decisive{Why: domain.ReasonCheckmate, Winner: mover}
	case rules.Stalemate:
		return domain.Draw{Why: domain.ReasonStalemate}
	case rules.InsufficientMaterial:
		return domain.Draw{Why: domain.ReasonInsufficientMaterial}
	case rules.ThreefoldRepetition:
		return domain.Draw{Why: domain.ReasonThreefoldRepetition}
	case rules.FiftyMoveRule:
		return domain.Draw{Why: domain.ReasonFiftyMove}
	default:
		return nil
	}
}
