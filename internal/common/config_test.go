package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvester.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "2004-02-11", config.Epoch)
	assert.Equal(t, "data/harvester", config.Storage.Path)
	assert.Equal(t, "info", config.Logging.Level)

	assert.Equal(t, "https://www.twse.com.tw", config.Clients.Main.BaseURL)
	assert.Equal(t, "https://www.tpex.org.tw", config.Clients.OTC.BaseURL)
	assert.Equal(t, "https://www.tpex.org.tw", config.Clients.Emerging.BaseURL)
	assert.Equal(t, "https://isin.twse.com.tw", config.Clients.Master.BaseURL)
	assert.Equal(t, 30*time.Second, config.Clients.Main.ClientTimeout())

	assert.Equal(t, 10, config.Fetcher.MaxTaskRetries)
	assert.Equal(t, 5, config.Fetcher.MaxFetchAttempts)
	assert.Equal(t, 100, config.Fetcher.InitialBackoffMS)
	assert.Equal(t, 10, config.Fetcher.MaxBackoffSeconds)
	assert.Equal(t, 4, config.Fetcher.SameHostPauseMin)
	assert.Equal(t, 8, config.Fetcher.SameHostPauseMax)
	assert.Equal(t, 3, config.Fetcher.CrossHostPauseMin)
	assert.Equal(t, 6, config.Fetcher.CrossHostPauseMax)

	require.Len(t, config.Jobs, 4)
	assert.Equal(t, "sync-securities", config.Jobs[0].JobCode)
	assert.Equal(t, "aggregate-prices", config.Jobs[3].JobCode)

	epoch, err := config.EpochDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2004, 2, 11, 0, 0, 0, 0, time.UTC), epoch)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
environment = "development"
epoch = "2010-01-04"

[storage]
path = "/tmp/harvester-test"

[logging]
level = "debug"

[fetcher]
max_fetch_attempts = 3

[[jobs]]
group_code = "INIT"
job_code = "fetch-pending"
sort_order = 1
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "2010-01-04", config.Epoch)
	assert.Equal(t, "/tmp/harvester-test", config.Storage.Path)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, 3, config.Fetcher.MaxFetchAttempts)

	// Unset values still get defaults.
	assert.Equal(t, 10, config.Fetcher.MaxTaskRetries)
	assert.Equal(t, "https://www.twse.com.tw", config.Clients.Main.BaseURL)

	// An explicit job list replaces the default one.
	require.Len(t, config.Jobs, 1)
	assert.Equal(t, "fetch-pending", config.Jobs[0].JobCode)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidEpoch(t *testing.T) {
	path := writeConfig(t, `epoch = "11-02-2004"`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_DATA_PATH", "/var/lib/harvester")
	t.Setenv("HARVESTER_LOG_LEVEL", "warn")
	t.Setenv("HARVESTER_EPOCH", "2015-06-01")

	config := DefaultConfig()

	assert.Equal(t, "/var/lib/harvester", config.Storage.Path)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "2015-06-01", config.Epoch)
}
