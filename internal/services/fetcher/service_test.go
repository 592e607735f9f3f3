package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
	"github.com/marketgrid/harvester/internal/storage"
)

const mainOKBody = `{"stat":"OK","date":"20240501","data":[["113/05/02","1000","2000","10.00","10.50","9.80","10.20","0.10","5"]]}`

type fakeClient struct {
	calls   int
	respond func(call int) (string, error)
}

func (f *fakeClient) FetchMonth(_ context.Context, _ string, _ string, _ int64) (string, error) {
	f.calls++
	return f.respond(f.calls)
}

func staticClient(body string) *fakeClient {
	return &fakeClient{respond: func(int) (string, error) { return body, nil }}
}

func testConfig() common.FetcherConfig {
	return common.FetcherConfig{
		MaxTaskRetries:    10,
		MaxFetchAttempts:  3,
		InitialBackoffMS:  1,
		MaxBackoffSeconds: 1,
		SameHostPauseMin:  4,
		SameHostPauseMax:  8,
		CrossHostPauseMin: 3,
		CrossHostPauseMax: 6,
	}
}

func newTestService(t *testing.T, clients map[models.MarketType]interfaces.QuoteClient) (*Service, *storage.Manager) {
	t.Helper()
	manager, err := storage.NewStorageManagerAt(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(manager, clients, common.NewSilentLogger(), testConfig(), epoch)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }
	svc.sleep = func(time.Duration) {}
	svc.rnd = rand.New(rand.NewSource(1))
	return svc, manager
}

func seedTask(t *testing.T, manager *storage.Manager, code string, market models.MarketType, period string, sortOrder int) *models.SecurityTask {
	t.Helper()
	task := &models.SecurityTask{
		ID:             code + "-" + period,
		SecurityCode:   code,
		MarketType:     market,
		IssueDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		FetchPeriodKey: period,
		RandomSeed:     1_234_567_890_123,
		Enabled:        true,
		SortOrder:      sortOrder,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, manager.SecurityTaskStore().Insert(context.Background(), task))
	return task
}

func TestRun_AcceptedPayloadDisablesTask(t *testing.T) {
	client := staticClient(mainOKBody)
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
	})
	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, 1, client.calls)

	after, err := manager.SecurityTaskStore().Get(ctx, "2330-202405")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.False(t, after.Enabled)
	assert.Equal(t, 1, after.RetryCount)

	exists, err := manager.PayloadStore().Exists(ctx, "2330", "202405")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_RejectedPayloadKeepsTaskPending(t *testing.T) {
	client := staticClient(`{"iTotalRecords":0,"aaData":[]}`)
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketOTC: client,
	})
	seedTask(t, manager, "5483", models.MarketOTC, "202405", 2)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx))

	after, err := manager.SecurityTaskStore().Get(ctx, "5483-202405")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after.Enabled, "rejected fetch leaves the task pending")
	assert.Equal(t, 1, after.RetryCount)

	exists, err := manager.PayloadStore().Exists(ctx, "5483", "202405")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_SkipsTaskWithExistingPayload(t *testing.T) {
	client := staticClient(mainOKBody)
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
	})
	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)
	ctx := context.Background()

	require.NoError(t, manager.PayloadStore().Insert(ctx, &models.ResponsePayload{
		ID:           "existing",
		SecurityCode: "2330",
		Period:       "202405",
		MarketType:   models.MarketMain,
		RawContent:   mainOKBody,
		FetchedAt:    time.Now().UTC(),
	}))

	require.NoError(t, svc.Run(ctx))
	assert.Zero(t, client.calls, "no fetch when the payload already exists")
}

func TestRun_TransientErrorsRetryThenSucceed(t *testing.T) {
	client := &fakeClient{respond: func(call int) (string, error) {
		if call < 3 {
			return "", common.Transient(errors.New("upstream 503"))
		}
		return mainOKBody, nil
	}}
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
	})
	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 3, client.calls)

	exists, err := manager.PayloadStore().Exists(context.Background(), "2330", "202405")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_RetryExhaustionAbortsRun(t *testing.T) {
	client := &fakeClient{respond: func(int) (string, error) {
		return "", common.Transient(errors.New("upstream 503"))
	}}
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
	})
	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)
	seedTask(t, manager, "2317", models.MarketMain, "202405", 3)

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, client.calls, "attempts stop at the configured ceiling")

	// The second task was never reached.
	after, err2 := manager.SecurityTaskStore().Get(context.Background(), "2317-202405")
	require.NoError(t, err2)
	require.NotNil(t, after)
	assert.Zero(t, after.RetryCount)
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	client := &fakeClient{respond: func(int) (string, error) {
		return "", errors.New("malformed request")
	}}
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
	})
	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestRun_PacingBands(t *testing.T) {
	client := staticClient(mainOKBody)
	otcClient := staticClient(`{"iTotalRecords":1,"aaData":[["113/05/02","1000","2000","10.00","10.50","9.80","10.20","0.10","5"]]}`)
	svc, manager := newTestService(t, map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain: client,
		models.MarketOTC:  otcClient,
	})

	var pauses []time.Duration
	svc.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	seedTask(t, manager, "2330", models.MarketMain, "202405", 1)
	seedTask(t, manager, "5483", models.MarketOTC, "202405", 2)
	seedTask(t, manager, "2317", models.MarketMain, "202405", 3)

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, pauses, 3)

	// First task has no predecessor: cross-host band.
	assert.GreaterOrEqual(t, pauses[0], 3*time.Second)
	assert.Less(t, pauses[0], 6*time.Second)
	// MAIN to OTC and OTC to MAIN cross hosts.
	assert.GreaterOrEqual(t, pauses[1], 3*time.Second)
	assert.Less(t, pauses[1], 6*time.Second)
	assert.GreaterOrEqual(t, pauses[2], 3*time.Second)
	assert.Less(t, pauses[2], 6*time.Second)
}

func TestPauseBand_SameHost(t *testing.T) {
	svc := &Service{config: testConfig()}

	lo, hi := svc.pauseBand(models.MarketMain, models.MarketMain)
	assert.Equal(t, 4*time.Second, lo)
	assert.Equal(t, 8*time.Second, hi)

	// The OTC and emerging boards share an upstream.
	lo, hi = svc.pauseBand(models.MarketOTC, models.MarketEmerging)
	assert.Equal(t, 4*time.Second, lo)
	assert.Equal(t, 8*time.Second, hi)

	lo, hi = svc.pauseBand(models.MarketMain, models.MarketOTC)
	assert.Equal(t, 3*time.Second, lo)
	assert.Equal(t, 6*time.Second, hi)
}

func TestSameHost(t *testing.T) {
	assert.True(t, sameHost(models.MarketMain, models.MarketMain))
	assert.True(t, sameHost(models.MarketOTC, models.MarketOTC))
	assert.True(t, sameHost(models.MarketOTC, models.MarketEmerging))
	assert.True(t, sameHost(models.MarketEmerging, models.MarketOTC))
	assert.False(t, sameHost(models.MarketMain, models.MarketOTC))
	assert.False(t, sameHost(models.MarketEmerging, models.MarketMain))
}
