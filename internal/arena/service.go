// Package arena is the application layer: it turns push channel requests into
// matchmaker and session calls and turns session notifications into frames,
// rating updates and history records.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/broadcast"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/history"
	"github.com/park285/chess-arena/internal/matchmaking"
	"github.com/park285/chess-arena/internal/metrics"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/rules"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/internal/snapshot"
	"github.com/park285/chess-arena/internal/store"
	"github.com/park285/chess-arena/pkg/arenadto"
)

const (
	storeTimeout   = 5 * time.Second
	recordAttempts = 3
)

type Deps struct {
	Directory store.Directory
	Recorder  *history.Recorder
	Hub       *broadcast.Hub
	Finals    snapshot.Store
	Messages  *msgcat.Catalog
	Rules     rules.Engine
	Limits    matchmaking.Limits

	// ForfeitGrace is how long a player may stay disconnected from a running
	// game before forfeiting. Zero forfeits immediately.
	ForfeitGrace time.Duration

	Clock session.Clock
	IDs   func() string
}

type Service struct {
	dir      store.Directory
	recorder *history.Recorder
	hub      *broadcast.Hub
	finals   snapshot.Store
	msgs     *msgcat.Catalog
	limits   matchmaking.Limits
	grace    time.Duration
	clock    session.Clock

	engine *session.Engine
	mm     *matchmaking.Manager

	mu     sync.Mutex
	graces map[string]*graceTimer // email -> pending forfeit
	closed bool
}

type graceTimer struct {
	session string
	timer   session.Timer
}

func New(d Deps) (*Service, error) {
	if d.Directory == nil || d.Recorder == nil || d.Hub == nil || d.Finals == nil || d.Messages == nil || d.Rules == nil {
		return nil, errors.New("arena: missing dependency")
	}
	if d.Clock == nil {
		d.Clock = session.RealClock()
	}
	a := &Service{
		dir:      d.Directory,
		recorder: d.Recorder,
		hub:      d.Hub,
		finals:   d.Finals,
		msgs:     d.Messages,
		limits:   d.Limits,
		grace:    d.ForfeitGrace,
		clock:    d.Clock,
		graces:   make(map[string]*graceTimer),
	}
	opts := []session.Option{session.WithClock(d.Clock)}
	if d.IDs != nil {
		opts = append(opts, session.WithIDs(d.IDs))
	}
	a.engine = session.NewEngine(d.Rules, a, opts...)
	a.mm = matchmaking.NewManager(d.Directory, a.startSession, d.Limits)
	return a, nil
}

func (a *Service) Sessions() *session.Registry { return a.engine.Registry() }

func (a *Service) Matchmaker() *matchmaking.Manager { return a.mm }

func (a *Service) startSession(white, black domain.User, limit time.Duration) error {
	if _, err := a.engine.Start(white, black, limit); err != nil {
		return err
	}
	metrics.GamesStartedTotal.WithLabelValues(strconv.FormatInt(limit.Milliseconds(), 10)).Inc()
	metrics.ActiveSessions.Inc()
	return nil
}

// Connect registers a new push channel connection for email and sends the
// initial frames: the user record, the roster for admins, then the running
// game or the last finished one.
func (a *Service) Connect(ctx context.Context, email string) (*broadcast.Client, error) {
	u, err := a.dir.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.State == domain.StateDeleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, u.Email)
	}
	c := a.hub.Subscribe(u.Email, u.IsAdmin)
	a.cancelGrace(u.Email)

	_ = a.hub.SendClient(c, arenadto.EventUser, arenadto.FromUser(u))
	if u.IsAdmin {
		if list, err := a.dir.ListActive(ctx); err == nil {
			_ = a.hub.SendClient(c, arenadto.EventUsers, arenadto.FromUsers(list))
		} else {
			obslog.L().Warn("arena_roster_failed", zap.Error(err))
		}
	}
	if s, ok := a.engine.Registry().ByUser(u.Email); ok {
		s.Observe(func(snap session.Snapshot) {
			_ = a.hub.SendClient(c, arenadto.EventGame, arenadto.FromSnapshot(snap, u.Email))
		})
	} else if st, ok, err := a.finals.LastFinal(ctx, u.Email); err != nil {
		obslog.L().Warn("arena_final_snapshot_failed", zap.String("email", u.Email), zap.Error(err))
	} else if ok {
		_ = a.hub.SendClient(c, arenadto.EventGame, st)
	}
	obslog.L().Info("arena_connect", zap.String("email", u.Email), zap.Bool("admin", u.IsAdmin))
	return c, nil
}

// Disconnect removes c. When it was the user's last connection a queue entry
// is cancelled and a running game starts its forfeit grace period.
func (a *Service) Disconnect(ctx context.Context, c *broadcast.Client) {
	if left := a.hub.Unsubscribe(c); left > 0 {
		return
	}
	email := c.Email()
	if _, ok, err := a.mm.Cancel(ctx, email); err != nil {
		obslog.L().Warn("arena_cancel_failed", zap.String("email", email), zap.Error(err))
	} else if ok {
		a.queueChanged(ctx)
		return
	}
	if s, ok := a.engine.Registry().ByUser(email); ok {
		a.armGrace(email, s)
	}
}

// PlayGame handles play_game. raw is the stringified time limit in ms.
func (a *Service) PlayGame(ctx context.Context, email, raw string) error {
	ms, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(raw), `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: time limit %q", domain.ErrMalformedPayload, raw)
	}
	u, p, err := a.mm.Enqueue(ctx, email, ms)
	var pf *matchmaking.PairingFailed
	if errors.As(err, &pf) {
		// The waiting partner lost its entry too; it gets no error frame.
		for _, r := range pf.Released {
			_ = a.hub.SendTo(r.Email, arenadto.EventUser, arenadto.FromUser(r))
		}
		a.queueChanged(ctx)
	}
	if err != nil {
		return err
	}
	if p == nil {
		_ = a.hub.SendTo(u.Email, arenadto.EventUser, arenadto.FromUser(u))
	} else {
		_ = a.hub.SendTo(p.White.Email, arenadto.EventUser, arenadto.FromUser(p.White))
		_ = a.hub.SendTo(p.Black.Email, arenadto.EventUser, arenadto.FromUser(p.Black))
	}
	a.queueChanged(ctx)
	return nil
}

// MakeMove handles make_move for the session email is playing in.
func (a *Service) MakeMove(_ context.Context, email string, in domain.MoveInput) error {
	s, ok := a.engine.Registry().ByUser(email)
	if !ok {
		return domain.ErrNotInGame
	}
	return s.SubmitMove(email, in)
}

// Forfeit ends email's running game in favour of the opponent.
func (a *Service) Forfeit(_ context.Context, email string) error {
	s, ok := a.engine.Registry().ByUser(email)
	if !ok {
		return domain.ErrNotInGame
	}
	return s.Forfeit(email)
}

// DeleteUsers handles delete_users. Only admins may delete, and only idle
// non-admin users can be deleted.
func (a *Service) DeleteUsers(ctx context.Context, actor string, emails []string) error {
	admin, err := a.dir.GetUser(ctx, actor)
	if err != nil {
		return err
	}
	if !admin.IsAdmin || admin.State == domain.StateDeleted {
		return domain.ErrNotAdmin
	}
	deleted, err := a.dir.MarkDeleted(ctx, emails)
	if err != nil {
		return err
	}
	for _, u := range deleted {
		_ = a.hub.SendTo(u.Email, arenadto.EventUser, arenadto.FromUser(u))
	}
	obslog.L().Info("arena_delete_users", zap.String("actor", admin.Email), zap.Int("count", len(deleted)))
	a.pushRoster(ctx)
	return nil
}

// PreviousGames lists the viewer's finished games, oldest first.
func (a *Service) PreviousGames(ctx context.Context, email string) ([]domain.HistoricalGame, error) {
	return a.recorder.Collect(ctx, domain.NormalizeEmail(email))
}

// PreviousGame returns a finished game the viewer took part in.
func (a *Service) PreviousGame(ctx context.Context, viewer, id string) (domain.HistoricalGame, error) {
	g, err := a.recorder.Game(ctx, id)
	if err != nil {
		return domain.HistoricalGame{}, err
	}
	if !g.Involves(domain.NormalizeEmail(viewer)) {
		return domain.HistoricalGame{}, domain.ErrGameNotFound
	}
	return g, nil
}

// Reject reports a failed client action on c as an input_error frame.
func (a *Service) Reject(c *broadcast.Client, err error) {
	code := domain.CodeOf(err)
	if code == "internal" {
		obslog.L().Error("arena_internal_error", zap.String("email", c.Email()), zap.Error(err))
	}
	metrics.InputErrorsTotal.WithLabelValues(code).Inc()
	_ = a.hub.SendClient(c, arenadto.EventInputError, a.Message(err))
}

// Message renders err for clients.
func (a *Service) Message(err error) string {
	code := domain.CodeOf(err)
	data := map[string]any{"Detail": detailOf(err)}
	if code == domain.ErrInvalidTimeLimit.Code {
		data["Min"], data["Max"] = a.limits.MinMs, a.limits.MaxMs
	}
	return a.msgs.Error(code, data)
}

// detailOf returns what a wrapping error added after the domain message.
func detailOf(err error) string {
	var de *domain.Error
	if !errors.As(err, &de) {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(err.Error(), de.Error()), ": ")
}

// Close stops pending forfeit timers. Running sessions are dropped with the
// process.
func (a *Service) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for email, g := range a.graces {
		g.timer.Stop()
		delete(a.graces, email)
	}
}

func (a *Service) queueChanged(ctx context.Context) {
	metrics.QueueDepth.Reset()
	for ms, n := range a.mm.Depths() {
		metrics.QueueDepth.WithLabelValues(strconv.FormatInt(ms, 10)).Set(float64(n))
	}
	a.pushRoster(ctx)
}

// pushRoster sends the non-deleted roster to every admin connection.
func (a *Service) pushRoster(ctx context.Context) {
	list, err := a.dir.ListActive(ctx)
	if err != nil {
		obslog.L().Warn("arena_roster_failed", zap.Error(err))
		return
	}
	_ = a.hub.SendAdmins(arenadto.EventUsers, arenadto.FromUsers(list))
}
