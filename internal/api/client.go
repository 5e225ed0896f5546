// Package api is the JSON transport shared by every backend collaborator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxResponseBytes  = 4 << 20
	maxMessageLength  = 300
)

// Policy bounds every outbound call.
type Policy struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for retryable requests.
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{Timeout: 10 * time.Second, MaxRetries: 2, Backoff: 200 * time.Millisecond}
}

// TokenSource supplies the bearer token and is told when the backend rejects it.
type TokenSource interface {
	Token() string
	Invalidate(ctx context.Context, reason string)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Body   any
	// Public requests never trigger session invalidation (login, register).
	Public bool
	// IdempotencyKey is sent as a header and makes non-GET requests retryable.
	IdempotencyKey string
}

// Client performs JSON requests against the marketplace REST API.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	logger    *zap.Logger
	policy    Policy
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource attaches the session that provides bearer tokens.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPolicy overrides timeout and retry behaviour.
func WithPolicy(p Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithTracerProvider sets the provider used for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = observability.Tracer(tp)
	}
}

// New constructs a Client for baseURL (e.g. http://localhost:8081/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{},
		logger:    zap.NewNop(),
		policy:    DefaultPolicy(),
		tracer:    observability.Tracer(nil),
		sanitizer: bluemonday.StrictPolicy(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.Timeout <= 0 {
		c.policy.Timeout = DefaultPolicy().Timeout
	}
	if c.policy.MaxRetries < 0 {
		c.policy.MaxRetries = 0
	}
	return c, nil
}

// WithSession returns a shallow copy bound to a different token source. The
// HTTP client and policy are shared.
func (c *Client) WithSession(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// Get decodes GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// Post sends body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch sends body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// Do executes req, retrying per the policy, and decodes a successful body into out.
//
// Errors are *domain.Error values: KindNetwork for transport failures,
// KindSessionExpired for 401/403 on non-public requests and KindRemote for
// any other non-2xx status, the latter two wrapping a *StatusError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path

	var payload []byte
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("api: encode %s: %w", op, err)
		}
		payload = raw
	}

	retryable := method == http.MethodGet || strings.TrimSpace(req.IdempotencyKey) != ""
	maxAttempts := 1
	if retryable {
		maxAttempts += c.policy.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.policy.Backoff*time.Duration(attempt-1)); err != nil {
				return domain.Wrap(domain.KindNetwork, op, err)
			}
		}
		status, body, err := c.attempt(ctx, method, req, payload, attempt)
		if err != nil {
			lastErr = domain.Wrap(domain.KindNetwork, op, err)
			if ctx.Err() != nil {
				return lastErr
			}
			c.logger.Warn("api: transport failure",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		if status >= 200 && status < 300 {
			return decodeBody(op, body, out)
		}

		statusErr := &StatusError{
			Method:  method,
			Path:    req.Path,
			Status:  status,
			Message: c.errorMessage(body),
		}
		switch {
		case (status == http.StatusUnauthorized || status == http.StatusForbidden) && !req.Public:
			if c.tokens != nil {
				c.tokens.Invalidate(ctx, fmt.Sprintf("%d from %s", status, op))
			}
			return &domain.Error{Kind: domain.KindSessionExpired, Op: op, Message: statusErr.Message, Err: statusErr}
		case retryableStatus(status):
			lastErr = &domain.Error{Kind: domain.KindRemote, Op: op, Message: statusErr.Message, Err: statusErr}
			c.logger.Warn("api: upstream unavailable",
				zap.String("op", op),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			return &domain.Error{Kind: domain.KindRemote, Op: op, Message: statusErr.Message, Err: statusErr}
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method string, req Request, payload []byte, attempt int) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "storefront.api "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", req.Path),
			attribute.Int("storefront.attempt", attempt),
		),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return 0, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set(idempotencyHeader, key)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return 0, nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, strconv.Itoa(resp.StatusCode))
	}
	return resp.StatusCode, raw, nil
}

func decodeBody(op string, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.Error{Kind: domain.KindRemote, Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

// errorMessage extracts a readable message from the backend error body,
// stripping any markup.
func (c *Client) errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	msg := ""
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		msg = envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
	} else {
		msg = string(body)
	}
	msg = html.UnescapeString(c.sanitizer.Sanitize(msg))
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength]
	}
	return msg
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// UpstreamStatus returns the backend HTTP status.
func (e *StatusError) UpstreamStatus() int { return e.Status }

// UpstreamMessage returns the sanitized message from the backend body.
func (e *StatusError) UpstreamMessage() string { return e.Message }

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// PathEscape joins escaped segments into an absolute path.
func PathEscape(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(strings.Trim(s, "/")))
	}
	return b.String()
}
