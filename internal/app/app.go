// Package app wires configuration, storage, clients, and services into a
// runnable application. It is the shared core used by every subcommand.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/marketgrid/harvester/internal/clients/isin"
	"github.com/marketgrid/harvester/internal/clients/tpex"
	"github.com/marketgrid/harvester/internal/clients/twse"
	"github.com/marketgrid/harvester/internal/common"
	"github.com/marketgrid/harvester/internal/interfaces"
	"github.com/marketgrid/harvester/internal/models"
	"github.com/marketgrid/harvester/internal/services/aggregate"
	"github.com/marketgrid/harvester/internal/services/calendar"
	"github.com/marketgrid/harvester/internal/services/fetcher"
	"github.com/marketgrid/harvester/internal/services/master"
	"github.com/marketgrid/harvester/internal/services/scheduler"
	"github.com/marketgrid/harvester/internal/services/taskgen"
	"github.com/marketgrid/harvester/internal/storage"
)

// App holds all initialized services and storage.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager

	Calendar   interfaces.CalendarService
	Scheduler  interfaces.SchedulerService
	Master     interfaces.MasterService
	TaskGen    interfaces.TaskGenService
	Fetcher    interfaces.FetchService
	Aggregator interfaces.AggregateService

	Epoch time.Time

	now func() time.Time
}

// NewApp initializes the application. configPath may be empty, in which
// case HARVESTER_CONFIG and then the default location are tried; a missing
// config file falls back to built-in defaults.
func NewApp(configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("HARVESTER_CONFIG")
	}
	if configPath == "" {
		configPath = "config/harvester.toml"
	}

	var config *common.Config
	if _, err := os.Stat(configPath); err == nil {
		config, err = common.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		config = common.DefaultConfig()
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	epoch, err := config.EpochDate()
	if err != nil {
		return nil, err
	}

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	mainClient := twse.NewClient(
		twse.WithBaseURL(config.Clients.Main.BaseURL),
		twse.WithTimeout(config.Clients.Main.ClientTimeout()),
		twse.WithRateLimit(config.Clients.Main.RateLimit),
		twse.WithLogger(logger),
	)
	otcClient := tpex.NewClient(models.MarketOTC,
		tpex.WithBaseURL(config.Clients.OTC.BaseURL),
		tpex.WithTimeout(config.Clients.OTC.ClientTimeout()),
		tpex.WithRateLimit(config.Clients.OTC.RateLimit),
		tpex.WithLogger(logger),
	)
	emergingClient := tpex.NewClient(models.MarketEmerging,
		tpex.WithBaseURL(config.Clients.Emerging.BaseURL),
		tpex.WithTimeout(config.Clients.Emerging.ClientTimeout()),
		tpex.WithRateLimit(config.Clients.Emerging.RateLimit),
		tpex.WithLogger(logger),
	)
	masterClient := isin.NewClient(
		isin.WithBaseURL(config.Clients.Master.BaseURL),
		isin.WithTimeout(config.Clients.Master.ClientTimeout()),
		isin.WithLogger(logger),
	)

	quoteClients := map[models.MarketType]interfaces.QuoteClient{
		models.MarketMain:     mainClient,
		models.MarketOTC:      otcClient,
		models.MarketEmerging: emergingClient,
	}

	a := &App{
		Config:     config,
		Logger:     logger,
		Storage:    storageManager,
		Calendar:   calendar.NewService(storageManager.CalendarStore(), logger, epoch),
		Scheduler:  scheduler.NewService(storageManager.CalendarStore(), storageManager.DailyTaskStore(), config.Jobs, logger),
		Master:     master.NewService(masterClient, storageManager.SecurityStore(), logger),
		TaskGen:    taskgen.NewService(storageManager.SecurityStore(), storageManager.SecurityTaskStore(), logger),
		Fetcher:    fetcher.NewService(storageManager, quoteClients, logger, config.Fetcher, epoch),
		Aggregator: aggregate.NewService(storageManager.PayloadStore(), storageManager.PriceStatStore(), logger),
		Epoch:      epoch,
		now:        time.Now,
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("storage", config.Storage.Path).
		Str("version", common.GetFullVersion()).
		Msg("Harvester initialized")

	return a, nil
}

// Close releases storage resources.
func (a *App) Close() {
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
}
