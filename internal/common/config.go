package common

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// epochLayout is the date layout used for config dates.
const epochLayout = "2006-01-02"

// Config holds all configuration for Harvester.
type Config struct {
	Environment string          `toml:"environment"`
	Epoch       string          `toml:"epoch"` // first calendar date, YYYY-MM-DD
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Clients     ClientsConfig   `toml:"clients"`
	Fetcher     FetcherConfig   `toml:"fetcher"`
	Daemon      DaemonConfig    `toml:"daemon"`
	Jobs        []JobDefinition `toml:"jobs"`
}

// StorageConfig holds the keyed-store location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `toml:"level"`
	FilePath string `toml:"file_path"`
}

// ClientConfig holds settings for one upstream data source.
type ClientConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RateLimit      int    `toml:"rate_limit"` // requests per second
}

// ClientsConfig holds per-source client configuration.
type ClientsConfig struct {
	Main     ClientConfig `toml:"main"`
	OTC      ClientConfig `toml:"otc"`
	Emerging ClientConfig `toml:"emerging"`
	Master   ClientConfig `toml:"master"`
}

// FetcherConfig tunes the retry and pacing behaviour of the fetch run.
type FetcherConfig struct {
	MaxTaskRetries    int `toml:"max_task_retries"`    // selection ceiling per task
	MaxFetchAttempts  int `toml:"max_fetch_attempts"`  // attempts per adapter call
	InitialBackoffMS  int `toml:"initial_backoff_ms"`  // first retry delay
	MaxBackoffSeconds int `toml:"max_backoff_seconds"` // per-attempt delay cap
	SameHostPauseMin  int `toml:"same_host_pause_min"` // seconds
	SameHostPauseMax  int `toml:"same_host_pause_max"`
	CrossHostPauseMin int `toml:"cross_host_pause_min"`
	CrossHostPauseMax int `toml:"cross_host_pause_max"`
}

// DaemonConfig holds the cron schedule for daemon mode.
type DaemonConfig struct {
	Schedule string `toml:"schedule"`
}

// JobDefinition is the read-only job configuration consumed by the daily
// task scheduler. It is external input, not owned by the core.
type JobDefinition struct {
	GroupCode string `toml:"group_code"`
	JobCode   string `toml:"job_code"`
	SortOrder int    `toml:"sort_order"`
}

// LoadConfig reads configuration from a TOML file, applies defaults, and
// then applies environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	if _, err := config.EpochDate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a configuration with all defaults applied and no
// file input. Used by tests and by commands that can run without a file.
func DefaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	config.applyEnvOverrides()
	return config
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Epoch == "" {
		c.Epoch = "2004-02-11"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/harvester"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Clients.Main.BaseURL == "" {
		c.Clients.Main.BaseURL = "https://www.twse.com.tw"
	}
	if c.Clients.OTC.BaseURL == "" {
		c.Clients.OTC.BaseURL = "https://www.tpex.org.tw"
	}
	if c.Clients.Emerging.BaseURL == "" {
		c.Clients.Emerging.BaseURL = "https://www.tpex.org.tw"
	}
	if c.Clients.Master.BaseURL == "" {
		c.Clients.Master.BaseURL = "https://isin.twse.com.tw"
	}
	for _, cc := range []*ClientConfig{&c.Clients.Main, &c.Clients.OTC, &c.Clients.Emerging, &c.Clients.Master} {
		if cc.TimeoutSeconds <= 0 {
			cc.TimeoutSeconds = 30
		}
		if cc.RateLimit <= 0 {
			cc.RateLimit = 2
		}
	}
	if c.Fetcher.MaxTaskRetries <= 0 {
		c.Fetcher.MaxTaskRetries = 10
	}
	if c.Fetcher.MaxFetchAttempts <= 0 {
		c.Fetcher.MaxFetchAttempts = 5
	}
	if c.Fetcher.InitialBackoffMS <= 0 {
		c.Fetcher.InitialBackoffMS = 100
	}
	if c.Fetcher.MaxBackoffSeconds <= 0 {
		c.Fetcher.MaxBackoffSeconds = 10
	}
	if c.Fetcher.SameHostPauseMin <= 0 {
		c.Fetcher.SameHostPauseMin = 4
	}
	if c.Fetcher.SameHostPauseMax <= 0 {
		c.Fetcher.SameHostPauseMax = 8
	}
	if c.Fetcher.CrossHostPauseMin <= 0 {
		c.Fetcher.CrossHostPauseMin = 3
	}
	if c.Fetcher.CrossHostPauseMax <= 0 {
		c.Fetcher.CrossHostPauseMax = 6
	}
	if c.Daemon.Schedule == "" {
		c.Daemon.Schedule = "0 18 * * MON-FRI"
	}
	if len(c.Jobs) == 0 {
		c.Jobs = []JobDefinition{
			{GroupCode: "INIT", JobCode: "sync-securities", SortOrder: 1},
			{GroupCode: "INIT", JobCode: "expand-tasks", SortOrder: 2},
			{GroupCode: "INIT", JobCode: "fetch-pending", SortOrder: 3},
			{GroupCode: "INIT", JobCode: "aggregate-prices", SortOrder: 4},
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HARVESTER_DATA_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("HARVESTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HARVESTER_EPOCH"); v != "" {
		c.Epoch = v
	}
}

// EpochDate parses the configured epoch into a UTC date.
func (c *Config) EpochDate() (time.Time, error) {
	d, err := time.Parse(epochLayout, c.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q: %w", c.Epoch, err)
	}
	return d.UTC(), nil
}

// ClientTimeout returns the timeout for a client config as a duration.
func (cc ClientConfig) ClientTimeout() time.Duration {
	return time.Duration(cc.TimeoutSeconds) * time.Second
}
