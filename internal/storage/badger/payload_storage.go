package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type payloadStorage struct {
	store  *Store
	logger *common.Logger
}

// NewPayloadStorage creates a PayloadStore backed by BadgerHold.
func NewPayloadStorage(store *Store, logger *common.Logger) *payloadStorage {
	return &payloadStorage{store: store, logger: logger}
}

func (s *payloadStorage) Exists(_ context.Context, securityCode, period string) (bool, error) {
	var rows []models.ResponsePayload
	query := badgerhold.Where("SecurityCode").Eq(securityCode).And("Period").Eq(period)
	if err := s.store.db.Find(&rows, query); err != nil {
		return false, fmt.Errorf("failed to check payload %s/%s: %w", securityCode, period, err)
	}
	return len(rows) > 0, nil
}

func (s *payloadStorage) Insert(_ context.Context, payload *models.ResponsePayload) error {
	if err := s.store.db.Insert(payload.ID, payload); err != nil {
		return fmt.Errorf("failed to insert payload %s/%s: %w", payload.SecurityCode, payload.Period, err)
	}
	return nil
}

func (s *payloadStorage) ListByPeriod(_ context.Context, period string) ([]models.ResponsePayload, error) {
	var rows []models.ResponsePayload
	query := badgerhold.Where("Period").Eq(period)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list payloads for %s: %w", period, err)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SecurityCode < rows[j].SecurityCode
	})
	return rows, nil
}
