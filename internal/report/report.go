// Package report delivers snapshots to the collector over HTTP.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dicklesworthstone/agent_monitor/internal/model"
)

const (
	Timeout = 10 * time.Second

	maxErrorBody = 512
)

// DeliveryError is any failed report: transport errors carry Err, HTTP
// failures carry the status code and the start of the response body.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivering metrics: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("delivering metrics: server returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("delivering metrics: server returned %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// WithRequestID attaches the id sent as X-Request-ID by Report.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Reporter posts snapshots with bearer authentication. One request at a time;
// there is no retry and nothing is queued.
type Reporter struct {
	endpoint  string
	token     string
	userAgent string
	client    *http.Client
}

type Option func(*Reporter)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reporter) { r.client = c }
}

func WithUserAgent(ua string) Option {
	return func(r *Reporter) { r.userAgent = ua }
}

func New(endpoint, token string, opts ...Option) *Reporter {
	r := &Reporter{
		endpoint:  endpoint,
		token:     token,
		userAgent: "agent-monitor",
		client:    &http.Client{Timeout: Timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) Endpoint() string { return r.endpoint }

// Report sends snap. Any transport failure or non-2xx answer is returned as a
// *DeliveryError.
func (r *Reporter) Report(ctx context.Context, snap model.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("X-Request-ID", requestID(ctx))

	resp, err := r.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
