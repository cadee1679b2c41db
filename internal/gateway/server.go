// Package gateway serves the push channel: one websocket per browser tab,
// JSON frames of the form {"event": ..., "data": ...} in both directions.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-arena/internal/auth"
	"github.com/park285/chess-arena/internal/broadcast"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/arenadto"
)

// App is the application surface the gateway drives.
type App interface {
	Connect(ctx context.Context, email string) (*broadcast.Client, error)
	Disconnect(ctx context.Context, c *broadcast.Client)
	PlayGame(ctx context.Context, email, raw string) error
	MakeMove(ctx context.Context, email string, in domain.MoveInput) error
	DeleteUsers(ctx context.Context, actor string, emails []string) error
	Reject(c *broadcast.Client, err error)
}

type Server struct {
	app      App
	auth     auth.Resolver
	validate *validator.Validate

	origins      []string
	pingInterval time.Duration
	writeTimeout time.Duration
	readLimit    int64

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

type Option func(*Server)

// WithOrigins sets the accepted Origin host patterns. Same-origin requests are
// always accepted.
func WithOrigins(patterns []string) Option { return func(s *Server) { s.origins = patterns } }

func WithPingInterval(d time.Duration) Option { return func(s *Server) { s.pingInterval = d } }

func NewServer(app App, resolver auth.Resolver, v *validator.Validate, opts ...Option) *Server {
	if v == nil {
		v = validator.New()
	}
	s := &Server{
		app:          app,
		auth:         resolver,
		validate:     v,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		readLimit:    64 << 10,
	}
	s.base, s.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email, err := s.auth.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("email", email), zap.Error(err))
		return
	}
	conn.SetReadLimit(s.readLimit)

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	client, err := s.app.Connect(ctx, email)
	if err != nil {
		reason := "connect failed"
		if errors.Is(err, domain.ErrUserNotFound) {
			reason = "unknown user"
		}
		_ = conn.Close(websocket.StatusPolicyViolation, reason)
		return
	}
	s.serve(ctx, cancel, conn, client)
}

func (s *Server) serve(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *broadcast.Client) {
	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		s.writeLoop(ctx, cancel, conn, c)
	}()
	go func() {
		defer loops.Done()
		s.pingLoop(ctx, cancel, conn)
	}()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if st := websocket.CloseStatus(err); st != websocket.StatusNormalClosure && st != websocket.StatusGoingAway && ctx.Err() == nil {
				obslog.L().Debug("ws_read_closed", zap.String("email", c.Email()), zap.Error(err))
			}
			break
		}
		// A bad frame is the client's mistake, not a reason to drop the socket.
		var fr arenadto.Frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			s.app.Reject(c, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err))
			continue
		}
		if err := s.handle(ctx, c, fr); err != nil {
			s.app.Reject(c, err)
		}
	}
	cancel()
	s.app.Disconnect(context.Background(), c)
	loops.Wait()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

// writeLoop is the only writer of conn. A closed outbound channel means the
// hub dropped the client.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *broadcast.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.Outbound():
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
				cancel()
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, s.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				obslog.L().Debug("ws_write_failed", zap.String("email", c.Email()), zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	if s.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			pcancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				cancel()
				return
			}
		}
	}
}

// Shutdown closes every open connection and waits for their handlers to
// return or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(arenadto.ErrorBody{Error: msg})
}
