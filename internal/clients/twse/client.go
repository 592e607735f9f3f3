// Package twse provides the main-board daily quote client.
package twse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/marketgrid/harvester/internal/common"
)

const (
	DefaultBaseURL   = "https://www.twse.com.tw"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client fetches monthly daily-quote reports from the main board.
// Responses are returned as raw text; the payload-embedded success signal
// ("stat":"OK") is evaluated by the caller.
type Client struct {
	http    *resty.Client
	logger  *common.Logger
	limiter *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.http.SetBaseURL(baseURL)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the request-per-second cap.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// NewClient creates a main-board client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    resty.New().SetBaseURL(DefaultBaseURL).SetTimeout(DefaultTimeout),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMonth retrieves the daily quote report for one security and month.
// periodKey is "YYYYMM"; seed is appended as a cache-buster.
func (c *Client) FetchMonth(ctx context.Context, securityCode, periodKey string, seed int64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug().
		Str("security", securityCode).
		Str("period", periodKey).
		Msg("Main board request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"response": "json",
			"date":     periodKey + "01",
			"stockNo":  securityCode,
			"_":        strconv.FormatInt(seed, 10),
		}).
		Get("/exchangeReport/STOCK_DAY")
	if err != nil {
		return "", common.Transient(fmt.Errorf("main board request for %s/%s: %w", securityCode, periodKey, err))
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", common.Transient(fmt.Errorf("main board request for %s/%s: status %d", securityCode, periodKey, resp.StatusCode()))
	}

	return resp.String(), nil
}
