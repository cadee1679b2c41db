// Package history turns finished sessions into permanent records and serves
// them back per user.
package history

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/rating"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/internal/store"
)

type Recorder struct {
	log     store.GameLog
	ratings rating.Calculator
}

func NewRecorder(log store.GameLog, ratings rating.Calculator) *Recorder {
	return &Recorder{log: log, ratings: ratings}
}

// Recorded is the outcome of Record: the stored game and both players as
// they are after the completion.
type Recorded struct {
	Game  domain.HistoricalGame
	White domain.User
	Black domain.User
}

// Build derives the history record from a terminal snapshot. Ratings before
// are the ones captured when the session started.
func Build(snap session.Snapshot, whiteAfter, blackAfter int) (domain.HistoricalGame, error) {
	res, ok := domain.ResultOf(snap.Outcome)
	if !ok {
		return domain.HistoricalGame{}, fmt.Errorf("session %s has not ended", snap.ID)
	}
	san := make([]string, len(snap.History))
	for i, m := range snap.History {
		san[i] = m.SAN
	}
	pgn := buildPGN(pgnHeader{
		White:       snap.White.Username,
		Black:       snap.Black.Username,
		WhiteElo:    snap.White.Elo,
		BlackElo:    snap.Black.Elo,
		Date:        snap.StartedAt,
		TimeLimit:   snap.TimeLimit,
		Termination: snap.Outcome.Reason(),
		Result:      res,
	}, san)
	return domain.HistoricalGame{
		ID:             snap.ID,
		WhitePlayer:    snap.White.Email,
		BlackPlayer:    snap.Black.Email,
		WhiteUsername:  snap.White.Username,
		BlackUsername:  snap.Black.Username,
		Winner:         res,
		Reason:         snap.Outcome.Reason(),
		StartTime:      snap.StartedAt,
		EndTime:        snap.EndedAt,
		TimeLimitMs:    snap.TimeLimit.Milliseconds(),
		PGN:            pgn,
		FinalFEN:       snap.FEN,
		WhiteEloBefore: snap.White.Elo,
		BlackEloBefore: snap.Black.Elo,
		WhiteEloAfter:  whiteAfter,
		BlackEloAfter:  blackAfter,
	}, nil
}

// Record computes new ratings and stores them together with the game record
// and the reset of both players, as one atomic completion.
func (r *Recorder) Record(ctx context.Context, snap session.Snapshot) (Recorded, error) {
	wa, ba := r.ratings.Update(snap.White.Elo, snap.Black.Elo, snap.Outcome)
	g, err := Build(snap, wa, ba)
	if err != nil {
		return Recorded{}, err
	}
	w, b, err := r.log.CompleteGame(ctx, domain.Completion{
		Game:           g,
		WhiteEloBefore: g.WhiteEloBefore,
		BlackEloBefore: g.BlackEloBefore,
		WhiteEloAfter:  wa,
		BlackEloAfter:  ba,
	})
	if err != nil {
		return Recorded{}, fmt.Errorf("complete game %s: %w", g.ID, err)
	}
	obslog.L().Info("history_record",
		zap.String("game_id", g.ID),
		zap.String("winner", string(g.Winner)),
		zap.String("reason", g.Reason),
		zap.Int("white_elo", wa),
		zap.Int("black_elo", ba),
	)
	return Recorded{Game: g, White: w, Black: b}, nil
}

// QueryByUser yields the user's games oldest first. The sequence is lazy and
// can be ranged over again.
func (r *Recorder) QueryByUser(ctx context.Context, email string) iter.Seq2[domain.HistoricalGame, error] {
	return r.log.GamesByUser(ctx, email)
}

// Collect drains QueryByUser into a slice.
func (r *Recorder) Collect(ctx context.Context, email string) ([]domain.HistoricalGame, error) {
	out := []domain.HistoricalGame{}
	for g, err := range r.QueryByUser(ctx, email) {
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *Recorder) Game(ctx context.Context, id string) (domain.HistoricalGame, error) {
	return r.log.Game(ctx, id)
}
