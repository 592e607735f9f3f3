package interfaces

import "context"

// CalendarService builds and extends the classified trading calendar.
type CalendarService interface {
	// Backfill creates rows from the epoch through today. Idempotent.
	Backfill(ctx context.Context) (int, error)
	// Extend creates any missing rows through today. Idempotent.
	Extend(ctx context.Context) (int, error)
}

// SchedulerService generates the daily task queue.
type SchedulerService interface {
	// ScheduleDaily creates or refreshes pending daily tasks for every open
	// calendar date up to today that has not already completed.
	ScheduleDaily(ctx context.Context) (int, error)
}

// TaskGenService expands the security master into monthly fetch tasks.
type TaskGenService interface {
	Expand(ctx context.Context) (int, error)
}

// FetchService runs pending security tasks through the data-source
// adapters.
type FetchService interface {
	Run(ctx context.Context) error
}

// AggregateService derives monthly price statistics from raw payloads.
type AggregateService interface {
	// AggregatePeriod parses all payloads for the period and computes the
	// monthly statistics. Returns the number of securities aggregated.
	AggregatePeriod(ctx context.Context, period string) (int, error)
}

// MasterService syncs the security master from the registry.
type MasterService interface {
	Sync(ctx context.Context) (int, error)
}
