package arena

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/history"
	"github.com/park285/chess-arena/internal/metrics"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/internal/store"
	"github.com/park285/chess-arena/pkg/arenadto"
)

// SessionChanged runs under the session lock; frames therefore enter each
// connection's buffer in version order.
func (a *Service) SessionChanged(snap session.Snapshot) {
	if len(snap.History) > 0 {
		metrics.MovesTotal.Inc()
	}
	a.pushGame(snap)
}

// SessionEnded persists ratings and the game record, then pushes the final
// state. It runs once per session, under the session lock.
func (a *Service) SessionEnded(snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout*recordAttempts)
	defer cancel()

	res, _ := domain.ResultOf(snap.Outcome)
	metrics.ActiveSessions.Dec()
	metrics.GamesFinishedTotal.WithLabelValues(snap.Outcome.Reason(), string(res)).Inc()

	white, black, err := a.record(ctx, snap)
	if err != nil {
		obslog.L().Error("arena_record_failed",
			zap.String("session_id", snap.ID),
			zap.String("reason", snap.Outcome.Reason()),
			zap.Error(err),
		)
		white = a.resetAfterFailure(ctx, snap.White)
		black = a.resetAfterFailure(ctx, snap.Black)
	}

	a.pushGame(snap)
	_ = a.hub.SendTo(white.Email, arenadto.EventUser, arenadto.FromUser(white))
	_ = a.hub.SendTo(black.Email, arenadto.EventUser, arenadto.FromUser(black))
	a.pushRoster(ctx)

	if err := a.finals.SaveFinal(ctx, arenadto.FromSnapshot(snap, ""), snap.Players()...); err != nil {
		obslog.L().Warn("arena_final_snapshot_failed", zap.String("session_id", snap.ID), zap.Error(err))
	}
	a.cancelGrace(snap.White.Email)
	a.cancelGrace(snap.Black.Email)
}

func (a *Service) pushGame(snap session.Snapshot) {
	for _, email := range snap.Players() {
		if err := a.hub.SendTo(email, arenadto.EventGame, arenadto.FromSnapshot(snap, email)); err != nil {
			obslog.L().Error("arena_push_failed", zap.String("session_id", snap.ID), zap.Error(err))
		}
	}
}

// record retries transient store failures. A duplicate means an earlier
// attempt committed without us seeing the reply.
func (a *Service) record(ctx context.Context, snap session.Snapshot) (domain.User, domain.User, error) {
	start := time.Now()
	defer func() { metrics.GameCompletionDuration.Observe(time.Since(start).Seconds()) }()

	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		var rec history.Recorded
		actx, cancel := context.WithTimeout(ctx, storeTimeout)
		rec, err = a.recorder.Record(actx, snap)
		cancel()
		if err == nil {
			return rec.White, rec.Black, nil
		}
		if errors.Is(err, store.ErrDuplicateGame) {
			w, werr := a.dir.GetUser(ctx, snap.White.Email)
			b, berr := a.dir.GetUser(ctx, snap.Black.Email)
			if werr == nil && berr == nil {
				return w, b, nil
			}
			return domain.User{}, domain.User{}, errors.Join(err, werr, berr)
		}
		obslog.L().Warn("arena_record_retry", zap.String("session_id", snap.ID), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return domain.User{}, domain.User{}, errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return domain.User{}, domain.User{}, err
}

// resetAfterFailure frees a player whose game could not be recorded so the
// account is not stuck in StateGame.
func (a *Service) resetAfterFailure(ctx context.Context, u domain.User) domain.User {
	got, err := a.dir.CompareAndSetState(ctx, u.Email, domain.StateGame, domain.StateNone)
	if err != nil {
		obslog.L().Error("arena_reset_failed", zap.String("email", u.Email), zap.Error(err))
		u.State = domain.StateNone
		return u
	}
	return got
}
