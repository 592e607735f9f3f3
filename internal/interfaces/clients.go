package interfaces

import (
	"context"

	"github.com/marketgrid/harvester/internal/models"
)

// QuoteClient fetches one month of daily quotes for a security and returns
// the raw response body. Transport failures are reported as transient
// errors; a successful return may still carry a payload that signals zero
// records, and that judgement belongs to the caller.
type QuoteClient interface {
	FetchMonth(ctx context.Context, securityCode, periodKey string, seed int64) (string, error)
}

// MasterClient fetches the security master registry for one market,
// filtered to equity-class instruments.
type MasterClient interface {
	FetchSecurities(ctx context.Context, market models.MarketType) ([]models.Security, error)
}
