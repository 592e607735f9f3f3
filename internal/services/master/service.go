// Package master syncs the security master from the exchange registry.
package master

import (
	"context"
	"fmt"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Service fetches the registry listing for each market and upserts the
// securities, so downstream generation works offline from the last sync.
type Service struct {
	client     interfaces.MasterClient
	securities interfaces.SecurityStore
	logger     *common.Logger
}

// NewService creates a security master sync service.
func NewService(client interfaces.MasterClient, securities interfaces.SecurityStore, logger *common.Logger) *Service {
	return &Service{
		client:     client,
		securities: securities,
		logger:     logger,
	}
}

// Sync refreshes all three markets. Returns the number of securities
// upserted; a failure on one market aborts the sync with partial progress
// already persisted.
func (s *Service) Sync(ctx context.Context) (int, error) {
	synced := 0
	for _, market := range []models.MarketType{models.MarketMain, models.MarketOTC, models.MarketEmerging} {
		securities, err := s.client.FetchSecurities(ctx, market)
		if err != nil {
			return synced, fmt.Errorf("failed to fetch %s registry: %w", market, err)
		}
		for i := range securities {
			if err := s.securities.Upsert(ctx, &securities[i]); err != nil {
				return synced, fmt.Errorf("failed to save security %s: %w", securities[i].Code, err)
			}
			synced++
		}
		s.logger.Info().
			Str("market", string(market)).
			Int("securities", len(securities)).
			Msg("Security master synced")
	}
	return synced, nil
}
