// Package taskgen expands the security master into one fetch task per
// security per calendar month.
package taskgen

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Seed bounds for the outbound cache-buster, 13 to 14 digits.
const (
	seedMin = int64(1_000_000_000_000)
	seedMax = int64(100_000_000_000_000)
)

// Service generates security fetch tasks. The (securityCode, periodKey)
// existence check bounds growth to one row per security per month no
// matter how often the generator runs. Sort order interleaves the main
// board with the OTC/emerging partition so consecutive tasks rarely hit
// the same upstream host.
type Service struct {
	securities interfaces.SecurityStore
	tasks      interfaces.SecurityTaskStore
	logger     *common.Logger
	now        func() time.Time
	rnd        *rand.Rand
}

// NewService creates a task generator.
func NewService(securities interfaces.SecurityStore, tasks interfaces.SecurityTaskStore, logger *common.Logger) *Service {
	return &Service{
		securities: securities,
		tasks:      tasks,
		logger:     logger,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Expand creates missing tasks for every known security, one per month
// from its issue month through the current month. Returns the number of
// tasks created.
func (s *Service) Expand(ctx context.Context) (int, error) {
	mains, err := s.securities.ListByMarkets(ctx, models.MarketMain)
	if err != nil {
		return 0, fmt.Errorf("failed to list main board securities: %w", err)
	}
	others, err := s.securities.ListByMarkets(ctx, models.MarketOTC, models.MarketEmerging)
	if err != nil {
		return 0, fmt.Errorf("failed to list OTC/emerging securities: %w", err)
	}

	created := 0
	// Odd sort orders for the main board, even for the OTC partition: each
	// partition steps by 2, interleaving the execution queue.
	nextMain, nextOther := 1, 2

	n, err := s.expandPartition(ctx, mains, &nextMain)
	created += n
	if err != nil {
		return created, err
	}
	n, err = s.expandPartition(ctx, others, &nextOther)
	created += n
	if err != nil {
		return created, err
	}

	s.logger.Info().
		Int("created", created).
		Int("main_securities", len(mains)).
		Int("otc_securities", len(others)).
		Msg("Security tasks expanded")
	return created, nil
}

func (s *Service) expandPartition(ctx context.Context, securities []models.Security, nextSort *int) (int, error) {
	current := s.currentMonth()
	created := 0

	for _, sec := range securities {
		issue := monthStart(sec.IssueDate)
		// Most recent month first, back to the issue month inclusive.
		for m := current; !m.Before(issue); m = m.AddDate(0, -1, 0) {
			key := models.PeriodKey(m.Year(), m.Month())
			exists, err := s.tasks.Exists(ctx, sec.Code, key)
			if err != nil {
				return created, fmt.Errorf("security task lookup %s/%s: %w", sec.Code, key, err)
			}
			if exists {
				continue
			}

			task := &models.SecurityTask{
				ID:             uuid.NewString(),
				SecurityCode:   sec.Code,
				MarketType:     sec.MarketType,
				IssueDate:      sec.IssueDate,
				FetchPeriodKey: key,
				RandomSeed:     s.seed(),
				Enabled:        true,
				SortOrder:      *nextSort,
				RetryCount:     0,
				CreatedAt:      s.now().UTC(),
				UpdatedAt:      s.now().UTC(),
			}
			if err := s.tasks.Insert(ctx, task); err != nil {
				return created, fmt.Errorf("security task insert %s/%s: %w", sec.Code, key, err)
			}
			*nextSort += 2
			created++
		}
	}
	return created, nil
}

func (s *Service) seed() int64 {
	return seedMin + s.rnd.Int63n(seedMax-seedMin)
}

func (s *Service) currentMonth() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
