// Package fetch implements the bounded-retry HTTP GET wrapper used by every
// chain adapter and the price client. Transport errors and 5xx responses are
// retried with exponential backoff up to the configured budget; 4xx responses
// are permanent. All calls are context-scoped so a hung upstream cannot stall
// a query beyond its deadline.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrUpstream is returned once the retry budget for a call is exhausted.
var ErrUpstream = errors.New("upstream request failed")

// HTTPError is a non-2xx upstream response. 4xx codes are not retried.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var he *HTTPError

	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anthem_upstream_requests_total",
		Help: "Upstream HTTP requests issued, by host and outcome.",
	}, []string{"host", "outcome"})
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anthem_upstream_retries_total",
		Help: "Upstream HTTP request retries.",
	})
)

// Modes for development fixtures: record writes every response body to the
// fixture dir, mock serves bodies from it without touching the network.
const (
	ModeLive   = ""
	ModeRecord = "record"
	ModeMock   = "mock"
)

// Client is the retrying GET wrapper.
type Client struct {
	hc         *http.Client
	log        *zap.Logger
	budget     int
	mode       string
	fixtureDir string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithBudget sets the default retry budget.
func WithBudget(n int) Option {
	return func(c *Client) { c.budget = n }
}

// WithFixtures enables mock or record mode against dir.
func WithFixtures(mode, dir string) Option {
	return func(c *Client) {
		c.mode = mode
		c.fixtureDir = dir
	}
}

// New returns a Client with a 10s per-attempt timeout and a budget of 3
// retries unless overridden.
func New(log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{Timeout: 10 * time.Second},
		log:    log,
		budget: 3,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get fetches rawURL and decodes the JSON body into out using the client's
// default retry budget.
func (c *Client) Get(ctx context.Context, rawURL string, out interface{}) error {
	return c.GetWithRetry(ctx, rawURL, c.budget, out)
}

// GetWithRetry fetches rawURL with an explicit retry budget. The call gives
// up early when ctx is done.
func (c *Client) GetWithRetry(ctx context.Context, rawURL string, retries int, out interface{}) error {
	if c.mode == ModeMock {
		return c.fromFixture(rawURL, out)
	}

	var body []byte

	op := func() error {
		b, err := c.getOnce(ctx, rawURL)
		if err == nil {
			body = b

			return nil
		}

		var he *HTTPError
		if errors.As(err, &he) && he.Status < http.StatusInternalServerError {
			// client errors will not get better on retry
			return backoff.Permanent(err)
		}

		retriesTotal.Inc()
		c.log.Debug("retrying upstream request", zap.String("url", rawURL), zap.Error(err))

		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		var he *HTTPError
		if errors.As(err, &he) {
			return err
		}

		return fmt.Errorf("%w: GET %s: %v", ErrUpstream, rawURL, err)
	}

	if c.mode == ModeRecord {
		c.record(rawURL, body)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding GET %s: %v", ErrUpstream, rawURL, err)
	}

	return nil
}

// Post sends body to rawURL and decodes the JSON response into out. Posts
// are not retried: broadcasting a transaction twice is worse than failing.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(hostLabel(rawURL), "error").Inc()

		return fmt.Errorf("%w: POST %s: %v", ErrUpstream, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		requestsTotal.WithLabelValues(hostLabel(rawURL), fmt.Sprintf("%d", resp.StatusCode)).Inc()

		return &HTTPError{Status: resp.StatusCode, URL: rawURL}
	}

	requestsTotal.WithLabelValues(hostLabel(rawURL), "ok").Inc()

	if out == nil {
		return nil
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrUpstream, rawURL, err)
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decoding POST %s: %v", ErrUpstream, rawURL, err)
	}

	return nil
}

func (c *Client) getOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(hostLabel(rawURL), "error").Inc()

		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		requestsTotal.WithLabelValues(hostLabel(rawURL), fmt.Sprintf("%d", resp.StatusCode)).Inc()

		return nil, &HTTPError{Status: resp.StatusCode, URL: rawURL}
	}

	requestsTotal.WithLabelValues(hostLabel(rawURL), "ok").Inc()

	return io.ReadAll(resp.Body)
}

// fixtureName keys a fixture file by the hash of the full request URL.
func fixtureName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))

	return hex.EncodeToString(sum[:8]) + ".json"
}

func (c *Client) record(rawURL string, body []byte) {
	if err := os.MkdirAll(c.fixtureDir, 0o755); err != nil {
		c.log.Warn("cannot create fixture dir", zap.Error(err))

		return
	}

	path := filepath.Join(c.fixtureDir, fixtureName(rawURL))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		c.log.Warn("cannot record fixture", zap.String("url", rawURL), zap.Error(err))
	}
}

func (c *Client) fromFixture(rawURL string, out interface{}) error {
	body, err := os.ReadFile(filepath.Join(c.fixtureDir, fixtureName(rawURL)))
	if err != nil {
		return fmt.Errorf("%w: no fixture for GET %s", ErrUpstream, rawURL)
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(body, out)
}

func hostLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}

	return u.Host
}
