package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type securityStorage struct {
	store  *Store
	logger *common.Logger
}

// NewSecurityStorage creates a SecurityStore backed by BadgerHold.
func NewSecurityStorage(store *Store, logger *common.Logger) *securityStorage {
	return &securityStorage{store: store, logger: logger}
}

func (s *securityStorage) Upsert(_ context.Context, security *models.Security) error {
	if err := s.store.db.Upsert(security.Code, security); err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", security.Code, err)
	}
	return nil
}

func (s *securityStorage) ListByMarkets(_ context.Context, markets ...models.MarketType) ([]models.Security, error) {
	var rows []models.Security
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to list securities: %w", err)
	}

	wanted := make(map[models.MarketType]bool, len(markets))
	for _, m := range markets {
		wanted[m] = true
	}

	filtered := rows[:0]
	for _, row := range rows {
		if wanted[row.MarketType] {
			filtered = append(filtered, row)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Code < filtered[j].Code
	})
	return filtered, nil
}

func (s *securityStorage) Count(_ context.Context) (int, error) {
	var rows []models.Security
	if err := s.store.db.Find(&rows, nil); err != nil {
		return 0, fmt.Errorf("failed to count securities: %w", err)
	}
	return len(rows), nil
}
