// Package aggregate derives per-security monthly price statistics from
// persisted raw payloads.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Service parses raw payloads into per-day price rows and fills in the
// monthly aggregate columns. All arithmetic is fixed-point decimal; prices
// carry contractual 4-decimal precision.
type Service struct {
	payloads interfaces.PayloadStore
	stats    interfaces.PriceStatStore
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates a price aggregator.
func NewService(payloads interfaces.PayloadStore, stats interfaces.PriceStatStore, logger *common.Logger) *Service {
	return &Service{
		payloads: payloads,
		stats:    stats,
		logger:   logger,
		now:      time.Now,
	}
}

// AggregatePeriod processes every payload persisted for the period.
// Returns the number of securities aggregated. A malformed payload is
// logged and skipped; it never blocks the rest of the period.
func (s *Service) AggregatePeriod(ctx context.Context, period string) (int, error) {
	payloads, err := s.payloads.ListByPeriod(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("failed to list payloads for %s: %w", period, err)
	}

	aggregated := 0
	for _, payload := range payloads {
		closes, err := parseCloses(payload.MarketType, payload.RawContent)
		if err != nil {
			s.logger.Warn().
				Str("security", payload.SecurityCode).
				Str("period", payload.Period).
				Err(err).
				Msg("Skipping unparsable payload")
			continue
		}
		if len(closes) == 0 {
			continue
		}

		if err := s.upsertDailyRows(ctx, &payload, closes); err != nil {
			return aggregated, err
		}
		if err := s.fillAggregates(ctx, &payload, closes); err != nil {
			return aggregated, err
		}
		aggregated++
	}

	s.logger.Info().
		Str("period", period).
		Int("securities", aggregated).
		Msg("Price statistics aggregated")
	return aggregated, nil
}

// upsertDailyRows writes one price row per valid close, creating missing
// rows and refreshing the close on existing ones.
func (s *Service) upsertDailyRows(ctx context.Context, payload *models.ResponsePayload, closes []dailyClose) error {
	for _, dc := range closes {
		priceDate := models.DateKey(dc.date)
		existing, err := s.stats.Find(ctx, payload.SecurityCode, priceDate)
		if err != nil {
			return fmt.Errorf("price stat lookup %s/%s: %w", payload.SecurityCode, priceDate, err)
		}
		if existing == nil {
			row := &models.SecurityPriceStat{
				ID:           uuid.NewString(),
				SecurityCode: payload.SecurityCode,
				Period:       payload.Period,
				PriceDate:    priceDate,
				Close:        dc.close,
				UpdatedAt:    s.now().UTC(),
			}
			if err := s.stats.Insert(ctx, row); err != nil {
				return fmt.Errorf("price stat insert %s/%s: %w", payload.SecurityCode, priceDate, err)
			}
			continue
		}
		existing.Close = dc.close
		existing.Period = payload.Period
		existing.UpdatedAt = s.now().UTC()
		if err := s.stats.Update(ctx, existing); err != nil {
			return fmt.Errorf("price stat update %s/%s: %w", payload.SecurityCode, priceDate, err)
		}
	}
	return nil
}

// fillAggregates computes the monthly statistics and writes them onto
// every row of the (security, period) pair.
func (s *Service) fillAggregates(ctx context.Context, payload *models.ResponsePayload, closes []dailyClose) error {
	average, highAvg, lowAvg := monthlyStats(closes)

	rows, err := s.stats.ListBySecurityPeriod(ctx, payload.SecurityCode, payload.Period)
	if err != nil {
		return fmt.Errorf("price stat list %s/%s: %w", payload.SecurityCode, payload.Period, err)
	}
	for i := range rows {
		row := rows[i]
		row.Average = average
		row.HighAvg = highAvg
		row.LowAvg = lowAvg
		row.UpdatedAt = s.now().UTC()
		if err := s.stats.Update(ctx, &row); err != nil {
			return fmt.Errorf("price stat aggregate update %s/%s: %w", row.SecurityCode, row.PriceDate, err)
		}
	}
	return nil
}
