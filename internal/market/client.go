// Package market provides a CoinGecko client used as quote and price-history provider.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cryptoPortfolioBot/internal/common"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultCacheTTL  = 5 * time.Minute
)

// Client talks to the CoinGecko v3 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	backoffs   []time.Duration
	cache      *responseCache
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIKey sets the demo API key sent as x-cg-demo-api-key
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBackoffs sets the waits between retries; its length is the retry count.
func WithBackoffs(backoffs ...time.Duration) ClientOption {
	return func(c *Client) {
		c.backoffs = backoffs
	}
}

// WithCacheTTL sets how long responses are served from cache.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = newResponseCache(ttl)
	}
}

// NewClient creates a new CoinGecko client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   common.NewSilentLogger(),
		backoffs: []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
		cache:    newResponseCache(DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-success reply from CoinGecko
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// get decodes a cached or freshly fetched response into result. When the
// request fails, a stale cached body is used if one exists.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	key := path + "?" + params.Encode()
	body, ok := c.cache.fresh(key)
	if !ok {
		fetched, err := c.fetch(ctx, path, params)
		if err != nil {
			stale, found := c.cache.stale(key)
			if !found {
				return err
			}
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Serving stale cached response")
			fetched = stale
		} else {
			c.cache.set(key, fetched)
		}
		body = fetched
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < len(c.backoffs)+1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoffs[attempt-1]):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read coingecko response: %w", readErr)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: preview(body), Endpoint: path}
			if !retryable(resp.StatusCode) {
				return nil, apiErr
			}
			lastErr = apiErr
			c.logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Str("endpoint", path).Msg("Retrying coingecko request")
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
			lastErr = fmt.Errorf("coingecko returned non-json body: %s", preview(body))
			continue
		}
		return body, nil
	}
	if lastErr == nil {
		lastErr = errors.New("coingecko request failed")
	}
	return nil, lastErr
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
