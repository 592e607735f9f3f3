// Package fetcher walks pending security tasks, fetches raw payloads from
// the market adapters, and commits outcomes with retry and pacing.
package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
)

// Service is the fetch-and-commit state machine. Tasks run strictly
// sequentially: the pacing policy depends on the previous task's market,
// which requires total ordering.
type Service struct {
	storage   interfaces.StorageManager
	clients   map[models.MarketType]interfaces.QuoteClient
	logger    *common.Logger
	config    common.FetcherConfig
	epochYear int

	now   func() time.Time
	sleep func(time.Duration)
	rnd   *rand.Rand
}

// NewService creates a fetch orchestrator. clients maps each market to its
// data-source adapter.
func NewService(
	storage interfaces.StorageManager,
	clients map[models.MarketType]interfaces.QuoteClient,
	logger *common.Logger,
	config common.FetcherConfig,
	epoch time.Time,
) *Service {
	return &Service{
		storage:   storage,
		clients:   clients,
		logger:    logger,
		config:    config,
		epochYear: epoch.Year(),
		now:       time.Now,
		sleep:     time.Sleep,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes all pending tasks, most recent year first. Persistence
// failures are logged and the loop continues; exhausted adapter retries
// abort the remaining run. Progress already committed stays durable either
// way.
func (s *Service) Run(ctx context.Context) error {
	prev := models.MarketType("")

	for year := s.now().UTC().Year(); year >= s.epochYear; year-- {
		tasks, err := s.storage.SecurityTaskStore().ListPending(ctx, year, s.config.MaxTaskRetries)
		if err != nil {
			return fmt.Errorf("failed to select pending tasks for %d: %w", year, err)
		}
		if len(tasks) == 0 {
			continue
		}

		s.logger.Info().
			Int("year", year).
			Int("tasks", len(tasks)).
			Msg("Processing pending security tasks")

		for i := range tasks {
			task := tasks[i]

			done, err := s.storage.PayloadStore().Exists(ctx, task.SecurityCode, task.FetchPeriodKey)
			if err != nil {
				s.logger.Error().
					Str("security", task.SecurityCode).
					Str("period", task.FetchPeriodKey).
					Err(err).
					Msg("Payload lookup failed, skipping task")
				continue
			}
			if done {
				// A payload already exists from an earlier run; nothing to do.
				continue
			}

			raw, err := s.fetchWithRetry(ctx, &task)
			if err != nil {
				// Retry attempts exhausted: the remaining run is aborted. One
				// persistently failing task starving later tasks is a known
				// weakness of this policy, preserved deliberately.
				return fmt.Errorf("fetch for %s/%s: %w", task.SecurityCode, task.FetchPeriodKey, err)
			}

			accepted := PayloadAccepted(task.MarketType, raw)
			task.RetryCount++
			task.UpdatedAt = s.now().UTC()

			var payload *models.ResponsePayload
			if accepted {
				task.Enabled = false
				payload = &models.ResponsePayload{
					ID:           uuid.NewString(),
					SecurityCode: task.SecurityCode,
					Period:       task.FetchPeriodKey,
					MarketType:   task.MarketType,
					RawContent:   raw,
					FetchedAt:    s.now().UTC(),
				}
			}

			if err := s.storage.CommitFetchResult(ctx, &task, payload); err != nil {
				// Rolled back inside the transaction; the task stays pending
				// for the next run.
				s.logger.Error().
					Str("security", task.SecurityCode).
					Str("period", task.FetchPeriodKey).
					Err(err).
					Msg("Failed to commit fetch result")
			} else {
				s.logger.Debug().
					Str("security", task.SecurityCode).
					Str("period", task.FetchPeriodKey).
					Bool("accepted", accepted).
					Int("retry_count", task.RetryCount).
					Msg("Task committed")
			}

			s.pause(prev, task.MarketType)
			prev = task.MarketType
		}
	}

	return nil
}

// fetchWithRetry wraps one adapter call in exponential backoff with
// jitter. Only transient failures are retried; payload-level outcomes are
// not errors and pass straight through.
func (s *Service) fetchWithRetry(ctx context.Context, task *models.SecurityTask) (string, error) {
	client, ok := s.clients[task.MarketType]
	if !ok {
		return "", fmt.Errorf("no adapter for market %q", task.MarketType)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(s.config.InitialBackoffMS) * time.Millisecond
	bo.MaxInterval = time.Duration(s.config.MaxBackoffSeconds) * time.Second
	bo.MaxElapsedTime = 0

	var raw string
	op := func() error {
		body, err := client.FetchMonth(ctx, task.SecurityCode, task.FetchPeriodKey, task.RandomSeed)
		if err != nil {
			if common.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = body
		return nil
	}

	attempts := uint64(s.config.MaxFetchAttempts)
	if attempts == 0 {
		attempts = 1
	}
	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), attempts-1))
	if err != nil {
		return "", err
	}
	return raw, nil
}

// pause sleeps a randomized duration between tasks. Same-host transitions
// (same market, or the two OTC-adjacent boards) get the longer band so the
// shared upstream sees fewer back-to-back requests.
func (s *Service) pause(prev, cur models.MarketType) {
	lo, hi := s.pauseBand(prev, cur)
	span := hi - lo
	d := lo
	if span > 0 {
		d += time.Duration(s.rnd.Int63n(int64(span)))
	}
	s.sleep(d)
}

// pauseBand returns the [min, max) sleep range for a market transition.
func (s *Service) pauseBand(prev, cur models.MarketType) (time.Duration, time.Duration) {
	same := time.Duration(s.config.SameHostPauseMin) * time.Second
	sameMax := time.Duration(s.config.SameHostPauseMax) * time.Second
	cross := time.Duration(s.config.CrossHostPauseMin) * time.Second
	crossMax := time.Duration(s.config.CrossHostPauseMax) * time.Second

	if prev != "" && sameHost(prev, cur) {
		return same, sameMax
	}
	return cross, crossMax
}

// sameHost reports whether two markets are served by the same upstream.
// The OTC and emerging boards share a host.
func sameHost(a, b models.MarketType) bool {
	if a == b {
		return true
	}
	return a != models.MarketMain && b != models.MarketMain
}
