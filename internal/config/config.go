package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/park285/chess-arena/internal/obslog"
)

type AppConfig struct {
	HTTPAddr       string   `env:"HTTP_ADDR, default=:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	Auth AuthConfig

	Game GameConfig

	SnapshotTTL    time.Duration `env:"SNAPSHOT_TTL, default=24h"`
	OutboundBuffer int           `env:"WS_OUTBOUND_BUFFER, default=64"`
	MessagesDir    string        `env:"MESSAGES_DIR"`

	Log LogConfig

	// DevUsers seeds the in-memory directory: "email:username[:admin]".
	DevUsers []string `env:"DEV_USERS"`
}

type AuthConfig struct {
	Mode          string        `env:"AUTH_MODE, default=jwt"` // jwt | remote
	JWTSecret     string        `env:"JWT_SECRET"`
	EmailClaim    string        `env:"JWT_EMAIL_CLAIM, default=email"`
	SessionCookie string        `env:"SESSION_COOKIE, default=session"`
	BaseURL       string        `env:"AUTH_BASE_URL"`
	Timeout       time.Duration `env:"AUTH_TIMEOUT, default=3s"`
}

type GameConfig struct {
	MinTimeLimitMs int64         `env:"MIN_TIME_LIMIT_MS, default=10000"`
	MaxTimeLimitMs int64         `env:"MAX_TIME_LIMIT_MS, default=10800000"`
	KFactor        float64       `env:"ELO_K_FACTOR, default=32"`
	ForfeitGrace   time.Duration `env:"FORFEIT_GRACE, default=30s"`
}

type LogConfig struct {
	Level   string `env:"LOG_LEVEL, default=info"`
	Format  string `env:"LOG_FORMAT, default=legacy"`
	Console bool   `env:"LOG_TO_CONSOLE, default=true"`
	ToFile  bool   `env:"LOG_TO_FILE, default=false"`
	File    string `env:"LOG_FILE, default=logs/arena.log"`
	Caller  bool   `env:"LOG_CALLER, default=false"`
}

func (l LogConfig) Options() obslog.Options {
	return obslog.Options{
		Level:   l.Level,
		Format:  l.Format,
		Console: l.Console,
		ToFile:  l.ToFile,
		File:    l.File,
		Caller:  l.Caller,
	}
}

// Load reads the process environment.
func Load(ctx context.Context) (*AppConfig, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l, which tests back with a map.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Auth.Mode {
	case "jwt":
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "remote":
		if strings.TrimSpace(c.Auth.BaseURL) == "" {
			return errors.New("AUTH_BASE_URL is required when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.Auth.Mode)
	}
	if c.Game.MinTimeLimitMs <= 0 || c.Game.MaxTimeLimitMs < c.Game.MinTimeLimitMs {
		return fmt.Errorf("invalid time limit range [%d, %d]", c.Game.MinTimeLimitMs, c.Game.MaxTimeLimitMs)
	}
	if c.OutboundBuffer <= 0 {
		return errors.New("WS_OUTBOUND_BUFFER must be positive")
	}
	if c.SnapshotTTL <= 0 {
		return errors.New("SNAPSHOT_TTL must be positive")
	}
	return nil
}
