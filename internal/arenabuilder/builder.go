// Package arenabuilder assembles the arena server from configuration.
package arenabuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/internal/auth"
	"github.com/park285/chess-arena/internal/broadcast"
	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/gateway"
	"github.com/park285/chess-arena/internal/history"
	"github.com/park285/chess-arena/internal/httpapi"
	"github.com/park285/chess-arena/internal/matchmaking"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/rating"
	"github.com/park285/chess-arena/internal/rules"
	"github.com/park285/chess-arena/internal/snapshot"
	"github.com/park285/chess-arena/internal/store"
)

type Deps struct {
	Repo    store.Repository
	Finals  snapshot.Store
	Arena   *arena.Service
	Gateway *gateway.Server
	Router  *echo.Echo
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d := &Deps{Repo: repo}

	if cfg.RedisURL != "" {
		finals, err := snapshot.OpenRedis(ctx, cfg.RedisURL, cfg.SnapshotTTL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init snapshots: %w", err)
		}
		d.Finals = finals
	} else {
		logger.Warn("REDIS_URL not set, final snapshots kept in memory")
		d.Finals = snapshot.NewMemoryStore(cfg.SnapshotTTL)
	}

	// Queues and sessions do not survive a restart.
	n, err := repo.ResetTransient(ctx)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("reset transient states: %w", err)
	}
	if n > 0 {
		logger.Info("arena_reset_transient", zap.Int("users", n))
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	resolver, err := auth.New(cfg.Auth)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init auth: %w", err)
	}

	d.Arena, err = arena.New(arena.Deps{
		Directory:    repo,
		Recorder:     history.NewRecorder(repo, rating.New(cfg.Game.KFactor)),
		Hub:          broadcast.NewHub(cfg.OutboundBuffer),
		Finals:       d.Finals,
		Messages:     msgs,
		Rules:        rules.NewEngine(),
		Limits:       matchmaking.Limits{MinMs: cfg.Game.MinTimeLimitMs, MaxMs: cfg.Game.MaxTimeLimitMs},
		ForfeitGrace: cfg.Game.ForfeitGrace,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Gateway = gateway.NewServer(d.Arena, resolver, validator.New(), gateway.WithOrigins(cfg.AllowedOrigins))
	d.Router = httpapi.NewRouter(httpapi.Deps{
		Games:  d.Arena,
		Auth:   resolver,
		Socket: d.Gateway,
		Checks: map[string]httpapi.Check{
			"store":     repo.Ping,
			"snapshots": d.Finals.Ping,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})
	return d, nil
}

func openRepository(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (store.Repository, error) {
	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		r, err := store.OpenPostgres(pctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		repo = r
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		repo = store.NewMemory()
	}
	for _, raw := range cfg.DevUsers {
		u, err := ParseDevUser(raw)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		if _, err := repo.GetUser(ctx, u.Email); err == nil {
			continue
		}
		if err := repo.CreateUser(ctx, u); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("seed %s: %w", u.Email, err)
		}
		logger.Info("arena_seed_user", zap.String("email", u.Email), zap.Bool("admin", u.IsAdmin))
	}
	return repo, nil
}

// ParseDevUser reads "email:username[:admin]".
func ParseDevUser(raw string) (domain.User, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.User{}, fmt.Errorf("dev user %q: want email:username[:admin]", raw)
	}
	u := domain.User{Email: domain.NormalizeEmail(parts[0]), Username: strings.TrimSpace(parts[1])}
	if u.Email == "" || u.Username == "" {
		return domain.User{}, fmt.Errorf("dev user %q: empty email or username", raw)
	}
	if len(parts) == 3 {
		if !strings.EqualFold(strings.TrimSpace(parts[2]), "admin") {
			return domain.User{}, fmt.Errorf("dev user %q: unknown flag %q", raw, parts[2])
		}
		u.IsAdmin = true
	}
	return u, nil
}

// Close releases everything New opened. The gateway is shut down by the caller.
func (d *Deps) Close() error {
	var errs []error
	if d.Arena != nil {
		d.Arena.Close()
	}
	if d.Finals != nil {
		errs = append(errs, d.Finals.Close())
	}
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	return errors.Join(errs...)
}
