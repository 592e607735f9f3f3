package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResponsePayload is one successfully fetched raw body for a
// (security, period) pair. Rows are append-only and written exclusively by
// the fetch orchestrator.
type ResponsePayload struct {
	ID           string
	SecurityCode string `badgerhold:"index"`
	Period       string `badgerhold:"index"` // "YYYYMM"
	MarketType   MarketType
	RawContent   string
	FetchedAt    time.Time
}

// SecurityPriceStat is the per-day closing price for a security, with the
// monthly aggregate columns filled in by the price aggregator once the full
// month has been parsed. All amounts are 4-decimal fixed point.
type SecurityPriceStat struct {
	ID           string
	SecurityCode string `badgerhold:"index"`
	Period       string `badgerhold:"index"` // "YYYYMM"
	PriceDate    string `badgerhold:"index"` // "2006-01-02"
	Close        decimal.Decimal
	Average      decimal.Decimal
	HighAvg      decimal.Decimal
	LowAvg       decimal.Decimal
	UpdatedAt    time.Time
}
