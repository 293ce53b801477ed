// Package backend is the HTTP client for the hdbPilot backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	HTTPClient *http.Client
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics
	logger  *slog.Logger
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: base url %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q has no host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		timeout: timeout,
		http:    hc,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}, nil
}

// request describes one backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// response is a completed backend call with a 2xx status.
type response struct {
	status  int
	body    []byte
	cookies []*http.Cookie
}

// send performs req and returns the raw 2xx response. Transport failures
// are NetworkErrors; non-2xx statuses are ApplicationErrors carrying the
// envelope message when one decodes.
func (c *Client) send(ctx context.Context, req request) (*response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	c.metrics.observe(req.op, outcome(err), time.Since(start))

	attrs := []any{
		slog.String("op", req.op),
		slog.Duration("latency", time.Since(start)),
	}
	if resp != nil {
		attrs = append(attrs, slog.Int("status", resp.status))
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	c.logger.DebugContext(ctx, "backend call", attrs...)
	return resp, err
}

func (c *Client) do(ctx context.Context, req request) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewNetworkError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, domain.NewAppError(domain.CodeInternal, "encode request body", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFrom(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	jar := jarFrom(ctx)
	cookies := CookiesFrom(ctx)
	if jar != nil {
		cookies = MergeCookies(cookies, jar.pending())
	}
	for _, ck := range cookies {
		httpReq.AddCookie(ck)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.NewNetworkError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNetworkError(err)
	}

	resp := &response{status: httpResp.StatusCode, body: raw, cookies: httpResp.Cookies()}
	if jar != nil {
		jar.add(resp.cookies)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, statusError(httpResp.StatusCode, raw)
	}
	return resp, nil
}

func statusError(status int, body []byte) error {
	msg := ""
	if env, err := DecodeEnvelope(body); err == nil {
		msg = env.Message
	}
	if status == http.StatusUnauthorized {
		if msg == "" {
			return domain.ErrUnauthorized
		}
		return domain.NewAppError(domain.CodeUnauthorized, msg, nil)
	}
	if msg == "" {
		msg = fmt.Sprintf("backend returned status %d", status)
	}
	return domain.NewApplicationError(msg)
}

// call sends req and decodes a successful envelope's data into out, which
// may be nil.
func (c *Client) call(ctx context.Context, req request, out any) (*Envelope, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(resp.body)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return env, env.Err()
	}
	if out != nil && !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, domain.NewResponseFormatError(err)
		}
	}
	return env, nil
}

// confirm sends req and requires a successful envelope whose data is
// literally true. A refusal carries the backend message.
func (c *Client) confirm(ctx context.Context, req request) error {
	env, err := c.call(ctx, req, nil)
	if err != nil {
		return err
	}
	if string(bytes.TrimSpace(env.Data)) != "true" {
		return env.Err()
	}
	return nil
}

// acknowledge is confirm with any truthy data accepted.
func (c *Client) acknowledge(ctx context.Context, req request) error {
	env, err := c.call(ctx, req, nil)
	if err != nil {
		return err
	}
	if !env.Acknowledged() {
		return env.Err()
	}
	return nil
}

// accept sends req and treats any 2xx response as success, unless the body
// is an envelope reporting failure.
func (c *Client) accept(ctx context.Context, req request) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if env, err := DecodeEnvelope(resp.body); err == nil && !env.OK() {
		return env.Err()
	}
	return nil
}

// Ping reports whether the backend answers HTTP at all. Any status counts
// as reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, request{op: "ping", method: http.MethodGet, path: "/api/user/current"})
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Code != domain.CodeNetwork {
		return nil
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsNetwork(err):
		return "network_error"
	case domain.IsUnauthorized(err):
		return "unauthorized"
	case domain.IsResponseFormat(err):
		return "bad_response"
	default:
		return "error"
	}
}
