// Package tpex provides the over-the-counter and emerging board daily
// quote clients. Both boards share one upstream host with separate report
// endpoints.
package tpex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

const (
	DefaultBaseURL   = "https://www.tpex.org.tw"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second

	otcPath      = "/web/stock/aftertrading/daily_trading_info/st43_result.php"
	emergingPath = "/web/emergingstock/historical/daily/EMdaily_stk_result.php"
)

// Client fetches monthly daily-quote reports from one of the two
// OTC-adjacent boards. The payload-embedded success signal (a positive
// record count) is evaluated by the caller.
type Client struct {
	http    *resty.Client
	logger  *common.Logger
	limiter *rate.Limiter
	market  models.MarketType
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

// NewClient creates a client for the given board. market must be
// MarketOTC or MarketEmerging.
func NewClient(market models.MarketType, opts ...ClientOption) *Client {
	c := &Client{
		http:    resty.New().SetBaseURL(DefaultBaseURL).SetTimeout(DefaultTimeout),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		market:  market,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rocPeriod converts a "YYYYMM" period key into the republic-era "YYY/MM"
// form the report endpoints expect.
func rocPeriod(periodKey string) (string, error) {
	if len(periodKey) != 6 {
		return "", fmt.Errorf("invalid period key %q", periodKey)
	}
	year, err := strconv.Atoi(periodKey[:4])
	if err != nil {
		return "", fmt.Errorf("invalid period key %q: %w", periodKey, err)
	}
	return fmt.Sprintf("%d/%s", year-1911, periodKey[4:]), nil
}

// FetchMonth retrieves the daily quote report for one security and month.
func (c *Client) FetchMonth(ctx context.Context, securityCode, periodKey string, seed int64) (string, error) {
	d, err := rocPeriod(periodKey)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	path := otcPath
	if c.market == models.MarketEmerging {
		path = emergingPath
	}

	c.logger.Debug().
		Str("security", securityCode).
		Str("period", periodKey).
		Str("market", string(c.market)).
		Msg("OTC board request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":     "zh-tw",
			"d":     d,
			"stkno": securityCode,
			"_":     strconv.FormatInt(seed, 10),
		}).
		Get(path)
	if err != nil {
		return "", common.Transient(fmt.Errorf("%s request for %s/%s: %w", c.market, securityCode, periodKey, err))
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", common.Transient(fmt.Errorf("%s request for %s/%s: status %d", c.market, securityCode, periodKey, resp.StatusCode()))
	}

	return resp.String(), nil
}
