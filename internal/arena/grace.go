package arena

import (
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/session"
)

// armGrace starts the forfeit countdown for a player that lost its last
// connection during a game.
func (a *Service) armGrace(email string, s *session.Session) {
	if a.grace <= 0 {
		a.forfeitAbsent(email, s.ID())
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if prev, ok := a.graces[email]; ok {
		prev.timer.Stop()
	}
	g := &graceTimer{session: s.ID()}
	g.timer = a.clock.AfterFunc(a.grace, func() { a.graceExpired(email, g) })
	a.graces[email] = g
	obslog.L().Info("arena_grace_start",
		zap.String("email", email),
		zap.String("session_id", s.ID()),
		zap.Duration("grace", a.grace),
	)
}

func (a *Service) cancelGrace(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.graces[email]; ok {
		g.timer.Stop()
		delete(a.graces, email)
	}
}

func (a *Service) graceExpired(email string, g *graceTimer) {
	a.mu.Lock()
	cur, ok := a.graces[email]
	if !ok || cur != g {
		a.mu.Unlock()
		return
	}
	delete(a.graces, email)
	a.mu.Unlock()

	if a.hub.Connected(email) {
		return
	}
	a.forfeitAbsent(email, g.session)
}

// forfeitAbsent must be called without a.mu held: ending the session calls
// back into SessionEnded.
func (a *Service) forfeitAbsent(email, sessionID string) {
	s, ok := a.engine.Registry().ByID(sessionID)
	if !ok {
		return
	}
	obslog.L().Info("arena_forfeit_absent", zap.String("email", email), zap.String("session_id", sessionID))
	if err := s.Forfeit(email); err != nil {
		obslog.L().Warn("arena_forfeit_failed", zap.String("email", email), zap.Error(err))
	}
}
