package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type priceStatStorage struct {
	store  *Store
	logger *common.Logger
}

// NewPriceStatStorage creates a PriceStatStore backed by BadgerHold.
func NewPriceStatStorage(store *Store, logger *common.Logger) *priceStatStorage {
	return &priceStatStorage{store: store, logger: logger}
}

func (s *priceStatStorage) Find(_ context.Context, securityCode, priceDate string) (*models.SecurityPriceStat, error) {
	var rows []models.SecurityPriceStat
	query := badgerhold.Where("SecurityCode").Eq(securityCode).And("PriceDate").Eq(priceDate)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to find price stat %s/%s: %w", securityCode, priceDate, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *priceStatStorage) Insert(_ context.Context, stat *models.SecurityPriceStat) error {
	if err := s.store.db.Insert(stat.ID, stat); err != nil {
		return fmt.Errorf("failed to insert price stat %s/%s: %w", stat.SecurityCode, stat.PriceDate, err)
	}
	return nil
}

func (s *priceStatStorage) Update(_ context.Context, stat *models.SecurityPriceStat) error {
	if err := s.store.db.Update(stat.ID, stat); err != nil {
		return fmt.Errorf("failed to update price stat %s/%s: %w", stat.SecurityCode, stat.PriceDate, err)
	}
	return nil
}

func (s *priceStatStorage) ListBySecurityPeriod(_ context.Context, securityCode, period string) ([]models.SecurityPriceStat, error) {
	var rows []models.SecurityPriceStat
	query := badgerhold.Where("SecurityCode").Eq(securityCode).And("Period").Eq(period)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list price stats %s/%s: %w", securityCode, period, err)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].PriceDate < rows[j].PriceDate
	})
	return rows, nil
}
