package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/obslog"
)

// SessionPath is queried on the account service with the caller's cookie.
const SessionPath = "/api/auth/session"

type sessionResponse struct {
	User *struct {
		Email string `json:"email"`
	} `json:"user"`
}

// Remote asks the account service who owns the session cookie.
type Remote struct {
	baseURL string
	cookie  string
	http    *fasthttp.Client
	timeout time.Duration
}

type Option func(*Remote)

func WithTimeout(d time.Duration) Option {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(r *Remote) { r.http.MaxConnsPerHost = n }
}

func NewRemote(baseURL, cookie string, opts ...Option) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		cookie:  cookie,
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		timeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) Resolve(ctx context.Context, in *http.Request) (string, error) {
	cookies := in.Header.Get("Cookie")
	tok, hasBearer := bearer(in)
	if cookies == "" && !hasBearer {
		return "", notLoggedIn("no credentials")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(r.baseURL + SessionPath)
	req.Header.Set("Accept", "application/json")
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
	if hasBearer {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	if err := r.http.DoDeadline(req, resp, r.deadline(ctx)); err != nil {
		obslog.L().Warn("auth_remote_failed", zap.String("url", r.baseURL+SessionPath), zap.Error(err))
		return "", fmt.Errorf("auth request: %w", err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return "", notLoggedIn(fmt.Sprintf("status %d", status))
	}
	var body sessionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", notLoggedIn("unparsable session")
	}
	if body.User == nil || domain.NormalizeEmail(body.User.Email) == "" {
		return "", notLoggedIn("no session")
	}
	return domain.NormalizeEmail(body.User.Email), nil
}

func (r *Remote) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(r.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}
