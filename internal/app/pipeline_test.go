package app

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

type fakeCalendar struct{ calls int }

func (f *fakeCalendar) Backfill(context.Context) (int, error) { f.calls++; return 0, nil }
func (f *fakeCalendar) Extend(context.Context) (int, error)   { f.calls++; return 0, nil }

type fakeScheduler struct{ calls int }

func (f *fakeScheduler) ScheduleDaily(context.Context) (int, error) { f.calls++; return 0, nil }

type fakeMaster struct {
	calls int
	err   error
}

func (f *fakeMaster) Sync(context.Context) (int, error) { f.calls++; return 0, f.err }

type fakeTaskGen struct{ calls int }

func (f *fakeTaskGen) Expand(context.Context) (int, error) { f.calls++; return 0, nil }

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Run(context.Context) error { f.calls++; return f.err }

type fakeAggregator struct {
	calls  int
	period string
}

func (f *fakeAggregator) AggregatePeriod(_ context.Context, period string) (int, error) {
	f.calls++
	f.period = period
	return 0, nil
}

type testApp struct {
	app        *App
	manager    *storage.Manager
	calendar   *fakeCalendar
	scheduler  *fakeScheduler
	master     *fakeMaster
	taskGen    *fakeTaskGen
	fetcher    *fakeFetcher
	aggregator *fakeAggregator
}

func newTestApp(t *testing.T, today time.Time) *testApp {
	t.Helper()
	manager, err := storage.NewStorageManagerAt(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	ta := &testApp{
		manager:    manager,
		calendar:   &fakeCalendar{},
		scheduler:  &fakeScheduler{},
		master:     &fakeMaster{},
		taskGen:    &fakeTaskGen{},
		fetcher:    &fakeFetcher{},
		aggregator: &fakeAggregator{},
	}
	ta.app = &App{
		Logger:     common.NewSilentLogger(),
		Storage:    manager,
		Calendar:   ta.calendar,
		Scheduler:  ta.scheduler,
		Master:     ta.master,
		TaskGen:    ta.taskGen,
		Fetcher:    ta.fetcher,
		Aggregator: ta.aggregator,
		now:        func() time.Time { return today },
	}
	return ta
}

func seedDailyTask(t *testing.T, manager *storage.Manager, openDate, jobCode string, sortOrder int, status models.ExecStatus) {
	t.Helper()
	require.NoError(t, manager.DailyTaskStore().Insert(context.Background(), &models.DailyTask{
		ID:         openDate + "-" + jobCode,
		OpenDate:   openDate,
		JobCode:    jobCode,
		GroupCode:  "INIT",
		SortOrder:  sortOrder,
		ExecStatus: status,
	}))
}

func TestRunDaily_SuccessfulTaskExits(t *testing.T) {
	today := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	ta := newTestApp(t, today)
	seedDailyTask(t, ta.manager, "2024-05-10", "sync-securities", 1, models.ExecStatusWait)

	require.NoError(t, ta.app.RunDaily(context.Background()))

	assert.Equal(t, 1, ta.calendar.calls)
	assert.Equal(t, 1, ta.scheduler.calls)
	assert.Equal(t, 1, ta.master.calls)

	task, err := ta.manager.DailyTaskStore().Find(context.Background(), "2024-05-10", "sync-securities")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, models.ExecStatusExit, task.ExecStatus)
	assert.Equal(t, today, task.UpdatedAt)
}

func TestRunDaily_FailedTaskStopsButLaterTasksRun(t *testing.T) {
	today := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	ta := newTestApp(t, today)
	ta.fetcher.err = errors.New("upstream down")
	seedDailyTask(t, ta.manager, "2024-05-10", "fetch-pending", 1, models.ExecStatusWait)
	seedDailyTask(t, ta.manager, "2024-05-10", "aggregate-prices", 2, models.ExecStatusWait)

	err := ta.app.RunDaily(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch-pending")

	failed, err2 := ta.manager.DailyTaskStore().Find(context.Background(), "2024-05-10", "fetch-pending")
	require.NoError(t, err2)
	require.NotNil(t, failed)
	assert.Equal(t, models.ExecStatusStop, failed.ExecStatus)

	// The failure does not block the rest of the day's queue.
	later, err2 := ta.manager.DailyTaskStore().Find(context.Background(), "2024-05-10", "aggregate-prices")
	require.NoError(t, err2)
	require.NotNil(t, later)
	assert.Equal(t, models.ExecStatusExit, later.ExecStatus)
	assert.Equal(t, 1, ta.aggregator.calls)
	assert.Equal(t, "202405", ta.aggregator.period)
}

func TestRunDaily_SkipsCompletedTasks(t *testing.T) {
	today := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	ta := newTestApp(t, today)
	seedDailyTask(t, ta.manager, "2024-05-10", "sync-securities", 1, models.ExecStatusExit)

	require.NoError(t, ta.app.RunDaily(context.Background()))
	assert.Zero(t, ta.master.calls)
}

func TestRunDaily_UnknownJobCodeStops(t *testing.T) {
	today := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	ta := newTestApp(t, today)
	seedDailyTask(t, ta.manager, "2024-05-10", "mystery-job", 1, models.ExecStatusWait)

	err := ta.app.RunDaily(context.Background())
	require.Error(t, err)

	task, err2 := ta.manager.DailyTaskStore().Find(context.Background(), "2024-05-10", "mystery-job")
	require.NoError(t, err2)
	require.NotNil(t, task)
	assert.Equal(t, models.ExecStatusStop, task.ExecStatus)
}

func TestCurrentPeriod(t *testing.T) {
	ta := newTestApp(t, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "202412", ta.app.CurrentPeriod())
}
