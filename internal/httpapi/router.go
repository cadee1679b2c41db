// Package httpapi is the HTTP surface of the arena server: the websocket
// upgrade, game history, thumbnails, health probes and metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/auth"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
)

// Games serves finished games to their participants.
type Games interface {
	PreviousGames(ctx context.Context, email string) ([]domain.HistoricalGame, error)
	PreviousGame(ctx context.Context, viewer, id string) (domain.HistoricalGame, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Deps struct {
	Games  Games
	Auth   auth.Resolver
	Socket http.Handler
	// Checks are run by /health/ready, keyed by dependency name.
	Checks         map[string]Check
	AllowedOrigins []string
}

// NewRouter builds the echo instance with every route registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler()

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger())
	if len(d.AllowedOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     d.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	if d.Socket != nil {
		e.GET("/ws", echo.WrapHandler(d.Socket))
	}

	games := NewGamesHandler(d.Games)
	viewer := RequireViewer(d.Auth)
	e.GET("/previousGames", games.List, viewer)
	e.GET("/previousGames/:id/board.png", games.Board, viewer)

	health := NewHealthHandler(d.Checks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func requestLogger() echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			obslog.L().Debug("http_request", fields...)
			return nil
		},
	})
}
