package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request is a fully-resolved outbound call.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   any
}

// HTTPClient is the raw transport capability the client is built on. It
// returns the response body of a 2xx response and an error for anything else.
type HTTPClient interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

// TransportConfig tunes the resty-backed transport.
type TransportConfig struct {
	Timeout    time.Duration
	RetryCount int
	Debug      bool
}

// RestyTransport is an HTTPClient backed by resty.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport creates a new RestyTransport.
func NewRestyTransport(cfg TransportConfig) *RestyTransport {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetDebug(cfg.Debug)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.RetryCount > 0 {
		client.
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(retryCondition)
	}
	return &RestyTransport{client: client}
}

// retryCondition retries idempotent reads on network errors and throttling
// or gateway statuses. Job starts are never replayed.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

// Do performs the request and returns the body of a successful response.
func (t *RestyTransport) Do(ctx context.Context, req *Request) ([]byte, error) {
	r := t.client.R().SetContext(ctx).SetHeaders(req.Header)
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	if resp.IsError() {
		return nil, &StatusError{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return resp.Body(), nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 256))
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
