package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/rules"
)

// Engine creates sessions and keeps the registry of live ones.
type Engine struct {
	rules rules.Engine
	clock Clock
	obs   Observer
	reg   *Registry
	newID func() string
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithIDs(f func() string) Option { return func(e *Engine) { e.newID = f } }

func NewEngine(r rules.Engine, obs Observer, opts ...Option) *Engine {
	e := &Engine{
		rules: r,
		clock: RealClock(),
		obs:   obs,
		reg:   NewRegistry(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.reg }

// Start creates a session for an already paired couple, registers it, arms
// white's clock and publishes version 1.
func (e *Engine) Start(white, black domain.User, limit time.Duration) (*Session, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidTimeLimit
	}
	if white.Email == "" || white.Email == black.Email {
		return nil, fmt.Errorf("start session: invalid players %q vs %q", white.Email, black.Email)
	}
	s := newSession(e.newID(), white, black, limit, e.rules.NewGame(), e.clock, &registryObserver{reg: e.reg, next: e.obs})
	e.reg.Add(s)
	obslog.L().Info("session_start",
		zap.String("session_id", s.id),
		zap.String("white", white.Email),
		zap.String("black", black.Email),
		zap.Int64("time_limit_ms", limit.Milliseconds()),
	)
	s.start()
	return s, nil
}

// registryObserver drops the session from the registry after the final
// notification has been handled.
type registryObserver struct {
	reg  *Registry
	next Observer
}

func (o *registryObserver) SessionChanged(snap Snapshot) { o.next.SessionChanged(snap) }

func (o *registryObserver) SessionEnded(snap Snapshot) {
	o.next.SessionEnded(snap)
	o.reg.Remove(snap.ID)
}
