// Package gateway is the single outbound channel to the course backend.
// It attaches the caller's bearer token, decodes response envelopes and turns
// a 401 into a cleared session plus an Unauthorized event.
package gateway

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

	"github.com/coursedesk/coursedesk/internal/domain/nav"
	"github.com/coursedesk/coursedesk/internal/observability/metrics"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// DefaultTimeout bounds each outbound request.
const DefaultTimeout = 10 * time.Second

// DefaultAPIPrefix is prepended to every request path.
const DefaultAPIPrefix = "/api"

const maxBodyBytes = 4 << 20

// Sessions is the slice of the session store the gateway needs.
// *service.SessionService satisfies it.
type Sessions interface {
	Token(ctx context.Context, key string) string
	Clear(ctx context.Context, key string) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIPrefix  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Sessions   Sessions
	Bus        *Bus
	Logger     *slog.Logger
}

// Client sends requests to the course backend.
type Client struct {
	base     *url.URL
	prefix   string
	http     *http.Client
	sessions Sessions
	bus      *Bus
	logger   *slog.Logger
}

var _ ports.DataBackend = (*Client)(nil)

// New constructs a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway: unsupported base URL scheme %q", base.Scheme)
	}

	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	// Copy so the caller's client keeps its own timeout.
	clone := *hc
	clone.Timeout = timeout

	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}

	return &Client{
		base:     base,
		prefix:   prefix,
		http:     &clone,
		sessions: opts.Sessions,
		bus:      bus,
		logger:   opts.Logger,
	}, nil
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// Bus returns the bus Unauthorized events are published on.
func (c *Client) Bus() *Bus { return c.bus }

// Subscribe is shorthand for c.Bus().Subscribe.
func (c *Client) Subscribe(fn func(Unauthorized)) func() { return c.bus.Subscribe(fn) }

// Request describes one call. Path is relative to the API prefix.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a decoded 2xx reply.
type Response struct {
	StatusCode int
	Envelope   Envelope
	Raw        []byte
}

// Do sends req and decodes the envelope. Failures other than 401 are returned
// as-is: transport errors, *StatusError and *EnvelopeError. Nothing is retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)

	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, ErrCredentialRejected):
		result = metrics.ResultUnauthorized
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveGateway(metrics.GatewayMetric{
		Method:   req.Method,
		Path:     req.Path,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := c.newRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	key, _ := SessionKeyFrom(ctx)
	token := ""
	if key != "" && c.sessions != nil {
		token = c.sessions.Token(ctx, key)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, req.Path, err)
	}

	if httpResp.StatusCode == http.StatusUnauthorized {
		c.rejectCredential(ctx, key, token, req.Path)
		return nil, ErrCredentialRejected
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       req.Path,
			StatusCode: httpResp.StatusCode,
			Message:    envelopeMessage(raw),
		}
	}

	out := &Response{StatusCode: httpResp.StatusCode, Raw: raw}
	if len(bytes.TrimSpace(raw)) == 0 {
		out.Envelope.Code = CodeOK
		return out, nil
	}
	if err := json.Unmarshal(raw, &out.Envelope); err != nil {
		return nil, fmt.Errorf("%s %s: decode envelope: %w", method, req.Path, err)
	}
	if out.Envelope.Code != CodeOK {
		return nil, &EnvelopeError{Path: req.Path, Code: out.Envelope.Code, Message: out.Envelope.Message}
	}
	return out, nil
}

// rejectCredential clears the session and notifies subscribers, once per 401.
// A request that carried no token has no credential to reject.
func (c *Client) rejectCredential(ctx context.Context, key, token, path string) {
	if token == "" {
		c.log().DebugContext(ctx, "unauthenticated request rejected", "component", "gateway", "path", path)
		return
	}

	// The clear must happen even if the caller's context is already done.
	clearCtx := context.WithoutCancel(ctx)
	if err := c.sessions.Clear(clearCtx, key); err != nil {
		c.log().WarnContext(ctx, "clear session after 401 failed", "component", "gateway", "error", err)
	}
	c.log().InfoContext(ctx, "credential rejected; session cleared", "component", "gateway", "path", path)

	c.bus.Publish(Unauthorized{Key: key, Path: path, LoginPath: nav.LoginPath})
}

func (c *Client) newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	u := *c.base
	p := req.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = strings.TrimRight(c.base.Path, "/") + c.prefix + p
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func envelopeMessage(raw []byte) string {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return ""
}

// GetData fetches path and returns the envelope's data member.
func (c *Client) GetData(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Envelope.Data, nil
}

// PostData posts body as JSON to path and returns the envelope's data member.
func (c *Client) PostData(ctx context.Context, path string, body any) (json.RawMessage, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Envelope.Data, nil
}
