// Package isin provides the security-master client over the exchange ISIN
// registry pages.
package isin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

const (
	DefaultBaseURL   = "https://isin.twse.com.tw"
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 1 // requests per second

	registryPath = "/isin/C_public.jsp"
	issueLayout  = "2006/01/02"
)

// registryMode maps a market type to the registry page mode parameter.
var registryMode = map[models.MarketType]string{
	models.MarketMain:     "2",
	models.MarketOTC:      "4",
	models.MarketEmerging: "5",
}

// Client fetches and parses the ISIN registry listing pages.
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

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// NewClient creates a registry client.
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

// FetchSecurities retrieves the registry page for a market and returns the
// equity-class securities listed on it.
func (c *Client) FetchSecurities(ctx context.Context, market models.MarketType) ([]models.Security, error) {
	mode, ok := registryMode[market]
	if !ok {
		return nil, fmt.Errorf("unsupported market %q", market)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("strMode", mode).
		Get(registryPath)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("registry request for %s: %w", market, err))
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, common.Transient(fmt.Errorf("registry request for %s: status %d", market, resp.StatusCode()))
	}

	securities, err := parseRegistry(strings.NewReader(resp.String()), market)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry for %s: %w", market, err)
	}

	c.logger.Debug().
		Str("market", string(market)).
		Int("securities", len(securities)).
		Msg("Registry page parsed")

	return securities, nil
}

// parseRegistry extracts equity rows from a registry listing table.
// Data rows carry at least six cells: "code name", ISIN, issue date,
// market, industry, CFI code. Header and section rows have fewer cells or
// an unsplittable first cell and are skipped.
func parseRegistry(r io.Reader, market models.MarketType) ([]models.Security, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var securities []models.Security

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}

		fields := strings.Fields(strings.TrimSpace(cells.Eq(0).Text()))
		if len(fields) < 2 {
			return
		}
		code := fields[0]
		name := strings.Join(fields[1:], " ")

		class := strings.TrimSpace(cells.Eq(5).Text())
		if class != models.EquityClassCode {
			return
		}

		issued, err := time.Parse(issueLayout, strings.TrimSpace(cells.Eq(2).Text()))
		if err != nil {
			return
		}

		securities = append(securities, models.Security{
			Code:          code,
			Name:          name,
			MarketType:    market,
			SecurityClass: class,
			IssueDate:     issued.UTC(),
			SyncedAt:      now,
		})
	})

	return securities, nil
}
