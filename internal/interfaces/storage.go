// Package interfaces defines the service, client, and storage contracts
// that wire the Harvester components together.
package interfaces

import (
	"context"
	"time"

	"github.com/marketgrid/harvester/internal/models"
)

// StorageManager coordinates all entity stores over the shared keyed store.
type StorageManager interface {
	CalendarStore() CalendarStore
	DailyTaskStore() DailyTaskStore
	SecurityStore() SecurityStore
	SecurityTaskStore() SecurityTaskStore
	PayloadStore() PayloadStore
	PriceStatStore() PriceStatStore

	// CommitFetchResult finalizes one fetch attempt atomically. When payload
	// is non-nil the payload row is inserted and the task is disabled; either
	// way the task's retry counter is incremented and persisted. The whole
	// write happens in a single transaction.
	CommitFetchResult(ctx context.Context, task *models.SecurityTask, payload *models.ResponsePayload) error

	Close() error
}

// CalendarStore persists classified calendar dates.
type CalendarStore interface {
	// Exists reports whether a row exists for the (year, month, day) triple.
	Exists(ctx context.Context, year, month, day int) (bool, error)
	Insert(ctx context.Context, date *models.CalendarDate) error
	Get(ctx context.Context, year, month, day int) (*models.CalendarDate, error)
	// ListOpenThrough returns OPEN dates from the epoch through the given
	// date, ascending.
	ListOpenThrough(ctx context.Context, through time.Time) ([]models.CalendarDate, error)
	// Latest returns the most recent row, or nil when the calendar is empty.
	Latest(ctx context.Context) (*models.CalendarDate, error)
	Count(ctx context.Context) (int, error)
}

// DailyTaskStore persists per-date pipeline tasks.
type DailyTaskStore interface {
	// Find returns the task for (openDate, jobCode), or nil when absent.
	Find(ctx context.Context, openDate, jobCode string) (*models.DailyTask, error)
	Insert(ctx context.Context, task *models.DailyTask) error
	Update(ctx context.Context, task *models.DailyTask) error
	// ListByDate returns all tasks for one open date ordered by SortOrder.
	ListByDate(ctx context.Context, openDate string) ([]models.DailyTask, error)
}

// SecurityStore persists the synced security master.
type SecurityStore interface {
	Upsert(ctx context.Context, security *models.Security) error
	// ListByMarkets returns securities whose market is one of the given
	// types, ordered by code.
	ListByMarkets(ctx context.Context, markets ...models.MarketType) ([]models.Security, error)
	Count(ctx context.Context) (int, error)
}

// SecurityTaskStore persists per-(security, month) fetch tasks.
type SecurityTaskStore interface {
	// Exists reports whether a task exists for (securityCode, periodKey).
	Exists(ctx context.Context, securityCode, periodKey string) (bool, error)
	Insert(ctx context.Context, task *models.SecurityTask) error
	Update(ctx context.Context, task *models.SecurityTask) error
	// ListPending returns enabled tasks under the retry ceiling whose period
	// falls in the given year, ordered period descending then sort order
	// ascending.
	ListPending(ctx context.Context, year, maxRetries int) ([]models.SecurityTask, error)
	Get(ctx context.Context, id string) (*models.SecurityTask, error)
}

// PayloadStore persists fetched raw payloads.
type PayloadStore interface {
	Exists(ctx context.Context, securityCode, period string) (bool, error)
	Insert(ctx context.Context, payload *models.ResponsePayload) error
	// ListByPeriod returns all payloads for a fetch period.
	ListByPeriod(ctx context.Context, period string) ([]models.ResponsePayload, error)
}

// PriceStatStore persists per-day price rows and their monthly aggregates.
type PriceStatStore interface {
	// Find returns the row for (securityCode, priceDate), or nil when absent.
	Find(ctx context.Context, securityCode, priceDate string) (*models.SecurityPriceStat, error)
	Insert(ctx context.Context, stat *models.SecurityPriceStat) error
	Update(ctx context.Context, stat *models.SecurityPriceStat) error
	// ListBySecurityPeriod returns the rows for one security in one period,
	// ordered by price date ascending.
	ListBySecurityPeriod(ctx context.Context, securityCode, period string) ([]models.SecurityPriceStat, error)
}
