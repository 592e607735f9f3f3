package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
)

type calendarStorage struct {
	store  *Store
	logger *common.Logger
}

// NewCalendarStorage creates a CalendarStore backed by BadgerHold.
func NewCalendarStorage(store *Store, logger *common.Logger) *calendarStorage {
	return &calendarStorage{store: store, logger: logger}
}

func calendarKey(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func (s *calendarStorage) Exists(_ context.Context, year, month, day int) (bool, error) {
	var row models.CalendarDate
	err := s.store.db.Get(calendarKey(year, month, day), &row)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check calendar date %s: %w", calendarKey(year, month, day), err)
	}
	return true, nil
}

func (s *calendarStorage) Insert(_ context.Context, date *models.CalendarDate) error {
	if err := s.store.db.Insert(date.Key(), date); err != nil {
		return fmt.Errorf("failed to insert calendar date %s: %w", date.Key(), err)
	}
	return nil
}

func (s *calendarStorage) Get(_ context.Context, year, month, day int) (*models.CalendarDate, error) {
	var row models.CalendarDate
	err := s.store.db.Get(calendarKey(year, month, day), &row)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar date %s: %w", calendarKey(year, month, day), err)
	}
	return &row, nil
}

func (s *calendarStorage) ListOpenThrough(_ context.Context, through time.Time) ([]models.CalendarDate, error) {
	var rows []models.CalendarDate
	query := badgerhold.Where("Year").Le(through.Year()).And("Status").Eq(models.DateStatusOpen)
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list open calendar dates: %w", err)
	}

	cutoff := through.Truncate(24 * time.Hour)
	filtered := rows[:0]
	for _, row := range rows {
		if !row.Date().After(cutoff) {
			filtered = append(filtered, row)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Key() < filtered[j].Key()
	})
	return filtered, nil
}

func (s *calendarStorage) Latest(_ context.Context) (*models.CalendarDate, error) {
	var rows []models.CalendarDate
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to scan calendar dates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[0]
	for _, row := range rows[1:] {
		if row.Key() > latest.Key() {
			latest = row
		}
	}
	return &latest, nil
}

func (s *calendarStorage) Count(_ context.Context) (int, error) {
	var rows []models.CalendarDate
	if err := s.store.db.Find(&rows, nil); err != nil {
		return 0, fmt.Errorf("failed to count calendar dates: %w", err)
	}
	return len(rows), nil
}
