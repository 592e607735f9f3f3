package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type dailyTaskStorage struct {
	store  *Store
	logger *common.Logger
}

// NewDailyTaskStorage creates a DailyTaskStore backed by BadgerHold.
func NewDailyTaskStorage(store *Store, logger *common.Logger) *dailyTaskStorage {
	return &dailyTaskStorage{store: store, logger: logger}
}

func (s *dailyTaskStorage) Find(_ context.Context, openDate, jobCode string) (*models.DailyTask, error) {
	var rows []models.DailyTask
	query := badgerhold.Where("OpenDate").Eq(openDate).And("JobCode").Eq(jobCode)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to find daily task %s/%s: %w", openDate, jobCode, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *dailyTaskStorage) Insert(_ context.Context, task *models.DailyTask) error {
	if err := s.store.db.Insert(task.ID, task); err != nil {
		return fmt.Errorf("failed to insert daily task %s/%s: %w", task.OpenDate, task.JobCode, err)
	}
	return nil
}

func (s *dailyTaskStorage) Update(_ context.Context, task *models.DailyTask) error {
	if err := s.store.db.Update(task.ID, task); err != nil {
		return fmt.Errorf("failed to update daily task %s/%s: %w", task.OpenDate, task.JobCode, err)
	}
	return nil
}

func (s *dailyTaskStorage) ListByDate(_ context.Context, openDate string) ([]models.DailyTask, error) {
	var rows []models.DailyTask
	query := badgerhold.Where("OpenDate").Eq(openDate)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list daily tasks for %s: %w", openDate, err)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SortOrder < rows[j].SortOrder
	})
	return rows, nil
}
