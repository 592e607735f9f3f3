// Package calendar builds the classified trading calendar that drives all
// downstream scheduling.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Service generates calendar rows from the epoch through today. Every
// entry point routes through a per-date existence check, so repeated runs
// never duplicate rows. An insert failure aborts the run: calendar
// integrity is a prerequisite for everything downstream.
type Service struct {
	store  interfaces.CalendarStore
	logger *common.Logger
	epoch  time.Time
	now    func() time.Time
}

// NewService creates a calendar service.
func NewService(store interfaces.CalendarStore, logger *common.Logger, epoch time.Time) *Service {
	return &Service{
		store:  store,
		logger: logger,
		epoch:  epoch.UTC().Truncate(24 * time.Hour),
		now:    time.Now,
	}
}

// Backfill creates rows for every date from the epoch through today.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	return s.generate(ctx, s.epoch)
}

// Extend creates any missing rows through today, starting from the most
// recent existing row. Falls back to a full backfill when the calendar is
// empty.
func (s *Service) Extend(ctx context.Context) (int, error) {
	latest, err := s.store.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find calendar frontier: %w", err)
	}
	if latest == nil {
		return s.generate(ctx, s.epoch)
	}
	return s.generate(ctx, latest.Date().AddDate(0, 0, 1))
}

func (s *Service) generate(ctx context.Context, from time.Time) (int, error) {
	today := s.today()
	created := 0

	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		exists, err := s.store.Exists(ctx, d.Year(), int(d.Month()), d.Day())
		if err != nil {
			return created, fmt.Errorf("calendar lookup for %s: %w", models.DateKey(d), err)
		}
		if exists {
			continue
		}

		status, group := Classify(d, today)
		row := &models.CalendarDate{
			Year:      d.Year(),
			Month:     int(d.Month()),
			Day:       d.Day(),
			Status:    status,
			TaskGroup: group,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.Insert(ctx, row); err != nil {
			// Unrecoverable: downstream scheduling cannot trust a calendar
			// with holes in it.
			return created, fmt.Errorf("calendar insert for %s: %w", row.Key(), err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info().
			Int("created", created).
			Str("through", models.DateKey(today)).
			Msg("Calendar extended")
	}
	return created, nil
}

func (s *Service) today() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// Classify assigns the trading status and task group for one date.
// Weekends are closed with group STOP. The month-end branch currently
// yields the same group as the default branch; it is kept separate because
// month-end-only job groups are an expected future distinction.
func Classify(d, today time.Time) (models.DateStatus, models.TaskGroup) {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return models.DateStatusClosed, models.TaskGroupStop
	}
	switch {
	case !d.After(today):
		return models.DateStatusOpen, models.TaskGroupInit
	case isMonthEnd(d):
		return models.DateStatusOpen, models.TaskGroupSecurity
	default:
		return models.DateStatusOpen, models.TaskGroupSecurity
	}
}

func isMonthEnd(d time.Time) bool {
	return d.AddDate(0, 0, 1).Day() == 1
}
