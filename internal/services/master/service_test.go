package master

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/models"
	"github.com/marketgrid/harvester/internal/storage"
)

type fakeRegistry struct {
	byMarket map[models.MarketType][]models.Security
	err      error
}

func (f *fakeRegistry) FetchSecurities(_ context.Context, market models.MarketType) ([]models.Security, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byMarket[market], nil
}

func security(code string, market models.MarketType) models.Security {
	return models.Security{
		Code:          code,
		Name:          "Test " + code,
		MarketType:    market,
		SecurityClass: models.EquityClassCode,
		IssueDate:     time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		SyncedAt:      time.Now().UTC(),
	}
}

func newTestManager(t *testing.T) *storage.Manager {
	t.Helper()
	manager, err := storage.NewStorageManagerAt(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestSync_AllMarkets(t *testing.T) {
	manager := newTestManager(t)
	registry := &fakeRegistry{byMarket: map[models.MarketType][]models.Security{
		models.MarketMain:     {security("2330", models.MarketMain), security("2317", models.MarketMain)},
		models.MarketOTC:      {security("5483", models.MarketOTC)},
		models.MarketEmerging: {security("6547", models.MarketEmerging)},
	}}
	svc := NewService(registry, manager.SecurityStore(), common.NewSilentLogger())

	synced, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, synced)

	count, err := manager.SecurityStore().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSync_UpsertRefreshesExisting(t *testing.T) {
	manager := newTestManager(t)
	registry := &fakeRegistry{byMarket: map[models.MarketType][]models.Security{
		models.MarketMain: {security("2330", models.MarketMain)},
	}}
	svc := NewService(registry, manager.SecurityStore(), common.NewSilentLogger())
	ctx := context.Background()

	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	renamed := security("2330", models.MarketMain)
	renamed.Name = "Renamed"
	registry.byMarket[models.MarketMain] = []models.Security{renamed}

	_, err = svc.Sync(ctx)
	require.NoError(t, err)

	count, err := manager.SecurityStore().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-sync does not duplicate rows")

	rows, err := manager.SecurityStore().ListByMarkets(ctx, models.MarketMain)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Renamed", rows[0].Name)
}

func TestSync_RegistryFailureAborts(t *testing.T) {
	manager := newTestManager(t)
	registry := &fakeRegistry{err: errors.New("registry unavailable")}
	svc := NewService(registry, manager.SecurityStore(), common.NewSilentLogger())

	synced, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.Zero(t, synced)
}
