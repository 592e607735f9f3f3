// Package storage wires the entity stores over the shared keyed store.
package storage

import (
	"context"
	"fmt"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
	"github.com/marketgrid/harvester/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a BadgerHold store.
type Manager struct {
	store  *badger.Store
	logger *common.Logger

	calendar      interfaces.CalendarStore
	dailyTasks    interfaces.DailyTaskStore
	securities    interfaces.SecurityStore
	securityTasks interfaces.SecurityTaskStore
	payloads      interfaces.PayloadStore
	priceStats    interfaces.PriceStatStore
}

// NewStorageManager opens the keyed store at the configured path and builds
// the entity stores.
func NewStorageManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %w", config.Storage.Path, err)
	}
	return newManager(store, logger), nil
}

// NewStorageManagerAt opens the keyed store at an explicit path. Used by
// tests with t.TempDir().
func NewStorageManagerAt(logger *common.Logger, path string) (*Manager, error) {
	store, err := badger.NewStore(logger, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %w", path, err)
	}
	return newManager(store, logger), nil
}

func newManager(store *badger.Store, logger *common.Logger) *Manager {
	return &Manager{
		store:         store,
		logger:        logger,
		calendar:      badger.NewCalendarStorage(store, logger),
		dailyTasks:    badger.NewDailyTaskStorage(store, logger),
		securities:    badger.NewSecurityStorage(store, logger),
		securityTasks: badger.NewSecurityTaskStorage(store, logger),
		payloads:      badger.NewPayloadStorage(store, logger),
		priceStats:    badger.NewPriceStatStorage(store, logger),
	}
}

func (m *Manager) CalendarStore() interfaces.CalendarStore         { return m.calendar }
func (m *Manager) DailyTaskStore() interfaces.DailyTaskStore       { return m.dailyTasks }
func (m *Manager) SecurityStore() interfaces.SecurityStore         { return m.securities }
func (m *Manager) SecurityTaskStore() interfaces.SecurityTaskStore { return m.securityTasks }
func (m *Manager) PayloadStore() interfaces.PayloadStore           { return m.payloads }
func (m *Manager) PriceStatStore() interfaces.PriceStatStore       { return m.priceStats }

// CommitFetchResult delegates to the shared store's transactional commit.
func (m *Manager) CommitFetchResult(ctx context.Context, task *models.SecurityTask, payload *models.ResponsePayload) error {
	return m.store.CommitFetchResult(ctx, task, payload)
}

// Close closes the underlying keyed store.
func (m *Manager) Close() error {
	return m.store.Close()
}
