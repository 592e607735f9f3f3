package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type securityTaskStorage struct {
	store  *Store
	logger *common.Logger
}

// NewSecurityTaskStorage creates a SecurityTaskStore backed by BadgerHold.
func NewSecurityTaskStorage(store *Store, logger *common.Logger) *securityTaskStorage {
	return &securityTaskStorage{store: store, logger: logger}
}

func (s *securityTaskStorage) Exists(_ context.Context, securityCode, periodKey string) (bool, error) {
	var rows []models.SecurityTask
	query := badgerhold.Where("SecurityCode").Eq(securityCode).And("FetchPeriodKey").Eq(periodKey)
	if err := s.store.db.Find(&rows, query); err != nil {
		return false, fmt.Errorf("failed to check security task %s/%s: %w", securityCode, periodKey, err)
	}
	return len(rows) > 0, nil
}

func (s *securityTaskStorage) Insert(_ context.Context, task *models.SecurityTask) error {
	if err := s.store.db.Insert(task.ID, task); err != nil {
		return fmt.Errorf("failed to insert security task %s/%s: %w", task.SecurityCode, task.FetchPeriodKey, err)
	}
	return nil
}

func (s *securityTaskStorage) Update(_ context.Context, task *models.SecurityTask) error {
	if err := s.store.db.Update(task.ID, task); err != nil {
		return fmt.Errorf("failed to update security task %s/%s: %w", task.SecurityCode, task.FetchPeriodKey, err)
	}
	return nil
}

func (s *securityTaskStorage) ListPending(_ context.Context, year, maxRetries int) ([]models.SecurityTask, error) {
	var rows []models.SecurityTask
	prefix := fmt.Sprintf("%04d", year)
	query := badgerhold.Where("FetchPeriodKey").Ge(prefix + "01").
		And("FetchPeriodKey").Le(prefix + "12").
		And("Enabled").Eq(true).
		And("RetryCount").Lt(maxRetries)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pending security tasks for %d: %w", year, err)
	}

	// Most recent period first; within a period the generator's interleave
	// order is preserved via SortOrder.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FetchPeriodKey != rows[j].FetchPeriodKey {
			return rows[i].FetchPeriodKey > rows[j].FetchPeriodKey
		}
		return rows[i].SortOrder < rows[j].SortOrder
	})
	return rows, nil
}

func (s *securityTaskStorage) Get(_ context.Context, id string) (*models.SecurityTask, error) {
	var row models.SecurityTask
	err := s.store.db.Get(id, &row)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security task %s: %w", id, err)
	}
	return &row, nil
}
