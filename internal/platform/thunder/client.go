package thunder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/imamik/tnrctl/internal/config"
)

const (
	// DefaultBaseURL is the production lifecycle endpoint.
	DefaultBaseURL = config.DefaultAPIBaseURL

	// DefaultCacheTTL is how long an instance list is served from cache.
	DefaultCacheTTL = 30 * time.Second

	defaultHTTPTimeout = 30 * time.Second
)

// Client talks to the lifecycle API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        logr.Logger
	clock      clockwork.Clock
	metrics    *Metrics
	cacheTTL   time.Duration
	cache      *listCache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithClock sets the clock used for the cache TTL and status polling.
func WithClock(clk clockwork.Clock) ClientOption {
	return func(c *Client) { c.clock = clk }
}

// WithMetrics enables API call metrics.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.cacheTTL = ttl }
}

// NewClient returns a Client authenticating with token.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, config.NewConfigurationError("api_key",
			"set "+config.EnvAPIKey+" or write api_key.txt to the secrets directory",
			errors.New("API token is empty"))
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		log:        logr.Discard(),
		clock:      clockwork.NewRealClock(),
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = newListCache(c.cacheTTL, c.clock)
	return c, nil
}

// InvalidateCache drops the cached instance list.
func (c *Client) InvalidateCache() {
	c.cache.invalidate()
}

// do performs one API call, decoding a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := c.clock.Now()
	err := c.roundTrip(ctx, op, method, path, in, out)
	elapsed := c.clock.Since(start)
	c.metrics.RecordAPICall(op, err, elapsed)

	if err != nil {
		c.log.V(1).Info("API call failed", "operation", op, "path", path, "error", err.Error())
	} else {
		c.log.V(2).Info("API call", "operation", op, "path", path, "elapsed", elapsed)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
