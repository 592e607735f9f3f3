package app

import (
	"context"
	"fmt"
	"time"

	"github.com/marketgrid/harvester/internal/models"
)

// RunDaily executes one full pipeline pass: extend the calendar, generate
// the daily queue, then work through today's tasks in sort order. A failed
// task is marked STOP and later tasks still run; the first failure is
// returned so the process exits non-zero.
func (a *App) RunDaily(ctx context.Context) error {
	if _, err := a.Calendar.Extend(ctx); err != nil {
		return fmt.Errorf("calendar extension: %w", err)
	}
	if _, err := a.Scheduler.ScheduleDaily(ctx); err != nil {
		return fmt.Errorf("daily scheduling: %w", err)
	}

	today := models.DateKey(a.now().UTC())
	tasks, err := a.Storage.DailyTaskStore().ListByDate(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to list daily tasks: %w", err)
	}

	var firstErr error
	for i := range tasks {
		task := tasks[i]
		if task.ExecStatus.Terminal() {
			continue
		}

		task.ExecStatus = models.ExecStatusExec
		task.UpdatedAt = a.now().UTC()
		if err := a.Storage.DailyTaskStore().Update(ctx, &task); err != nil {
			a.Logger.Error().Str("job", task.JobCode).Err(err).Msg("Failed to claim daily task")
			continue
		}

		start := a.now()
		jobErr := a.runJob(ctx, task.JobCode)

		if jobErr != nil {
			task.ExecStatus = models.ExecStatusStop
			a.Logger.Error().
				Str("job", task.JobCode).
				Dur("elapsed", time.Since(start)).
				Err(jobErr).
				Msg("Daily task failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("job %s: %w", task.JobCode, jobErr)
			}
		} else {
			task.ExecStatus = models.ExecStatusExit
			a.Logger.Info().
				Str("job", task.JobCode).
				Dur("elapsed", time.Since(start)).
				Msg("Daily task completed")
		}

		task.UpdatedAt = a.now().UTC()
		if err := a.Storage.DailyTaskStore().Update(ctx, &task); err != nil {
			a.Logger.Error().Str("job", task.JobCode).Err(err).Msg("Failed to finalize daily task")
		}
	}

	return firstErr
}

// runJob dispatches a daily task to the service behind its job code.
func (a *App) runJob(ctx context.Context, jobCode string) error {
	switch jobCode {
	case "sync-securities":
		_, err := a.Master.Sync(ctx)
		return err
	case "expand-tasks":
		_, err := a.TaskGen.Expand(ctx)
		return err
	case "fetch-pending":
		return a.Fetcher.Run(ctx)
	case "aggregate-prices":
		_, err := a.Aggregator.AggregatePeriod(ctx, a.CurrentPeriod())
		return err
	default:
		return fmt.Errorf("unknown job code: %s", jobCode)
	}
}

// CurrentPeriod returns the fetch period key for the current month.
func (a *App) CurrentPeriod() string {
	n := a.now().UTC()
	return models.PeriodKey(n.Year(), n.Month())
}
