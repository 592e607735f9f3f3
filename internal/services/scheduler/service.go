// Package scheduler generates the daily task queue by crossing the job
// configuration with open calendar dates.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Service produces pending daily tasks. Completed (EXIT) work is never
// re-queued; an interrupted task is reset to WAIT so the next run picks it
// up again.
type Service struct {
	calendar interfaces.CalendarStore
	tasks    interfaces.DailyTaskStore
	jobs     []common.JobDefinition
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates a scheduler over the given job definitions. The job
// list is configuration input and is treated as read-only.
func NewService(calendar interfaces.CalendarStore, tasks interfaces.DailyTaskStore, jobs []common.JobDefinition, logger *common.Logger) *Service {
	return &Service{
		calendar: calendar,
		tasks:    tasks,
		jobs:     jobs,
		logger:   logger,
		now:      time.Now,
	}
}

// ScheduleDaily walks every open calendar date up to today and ensures one
// active task exists per (date, job) pair that has not already completed.
// Returns the number of tasks created or refreshed.
func (s *Service) ScheduleDaily(ctx context.Context) (int, error) {
	today := s.now().UTC()
	dates, err := s.calendar.ListOpenThrough(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to list open dates: %w", err)
	}

	queued := 0
	for _, date := range dates {
		openDate := date.Key()
		for _, job := range s.jobs {
			existing, err := s.tasks.Find(ctx, openDate, job.JobCode)
			if err != nil {
				return queued, fmt.Errorf("daily task lookup %s/%s: %w", openDate, job.JobCode, err)
			}
			if existing != nil && existing.ExecStatus.Terminal() {
				continue
			}

			if existing == nil {
				task := &models.DailyTask{
					ID:         uuid.NewString(),
					OpenDate:   openDate,
					JobCode:    job.JobCode,
					GroupCode:  job.GroupCode,
					SortOrder:  job.SortOrder,
					ExecStatus: models.ExecStatusWait,
					CreatedAt:  s.now().UTC(),
					UpdatedAt:  s.now().UTC(),
				}
				if err := s.tasks.Insert(ctx, task); err != nil {
					return queued, fmt.Errorf("daily task insert %s/%s: %w", openDate, job.JobCode, err)
				}
			} else {
				existing.GroupCode = job.GroupCode
				existing.SortOrder = job.SortOrder
				existing.ExecStatus = models.ExecStatusWait
				existing.UpdatedAt = s.now().UTC()
				if err := s.tasks.Update(ctx, existing); err != nil {
					return queued, fmt.Errorf("daily task update %s/%s: %w", openDate, job.JobCode, err)
				}
			}
			queued++
		}
	}

	s.logger.Info().
		Int("queued", queued).
		Int("open_dates", len(dates)).
		Msg("Daily schedule generated")
	return queued, nil
}
