package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sud-bedwatch/bedwatch/internal/logger"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	return configPath
}

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://sapccis.ph.lacounty.gov/sbat/", cfg.URL)
	assert.Equal(t, "/var/lib/sud-bedwatch/data", cfg.OutputDir)
	assert.Equal(t, "sudhelpla", cfg.Dataset)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := createTempConfigFile(t, `
url: "https://example.org/sbat/"
output_dir: "/tmp/beds"
dataset: "test"
timeout: 45s
log_level: debug
history_db: "/tmp/beds/history.db"
schedule:
  cron: "*/15 * * * *"
`)

	// keep the environment out of this test
	for _, name := range []string{EnvURL, EnvOutputDir, EnvDataset, EnvTimeout, EnvHistoryDB, EnvLogLevel, EnvSchedule, EnvTimezone} {
		t.Setenv(name, "")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/sbat/", cfg.URL)
	assert.Equal(t, "/tmp/beds", cfg.OutputDir)
	assert.Equal(t, "test", cfg.Dataset)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, logger.LevelDebug, cfg.Level())
	assert.Equal(t, "/tmp/beds/history.db", cfg.HistoryDB)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
	assert.Equal(t, "America/Los_Angeles", cfg.Schedule.Timezone, "unset keys keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "url: [unterminated")

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := createTempConfigFile(t, `
url: "https://example.org/sbat/"
dataset: "from-file"
`)
	t.Setenv(EnvDataset, "from-env")
	t.Setenv(EnvTimeout, "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Dataset)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvURL:       "http://localhost:8080/",
		EnvOutputDir: "  /srv/data  ",
		EnvLogLevel:  "warn",
		EnvTimeout:   "1m30s",
		EnvDataset:   "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/", cfg.URL)
	assert.Equal(t, "/srv/data", cfg.OutputDir)
	assert.Equal(t, logger.LevelWarn, cfg.Level())
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "sudhelpla", cfg.Dataset, "blank variables are ignored")
}

func TestApplyEnv_BadTimeout(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{EnvTimeout: "soon"}))
	assert.ErrorContains(t, err, EnvTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing url", func(c *Config) { c.URL = "" }, ErrMissingURL},
		{"relative url", func(c *Config) { c.URL = "/sbat/" }, ErrInvalidURL},
		{"ftp url", func(c *Config) { c.URL = "ftp://example.org/" }, ErrInvalidURL},
		{"missing output dir", func(c *Config) { c.OutputDir = " " }, ErrMissingOutputDir},
		{"missing dataset", func(c *Config) { c.Dataset = "" }, ErrMissingDataset},
		{"dataset with slash", func(c *Config) { c.Dataset = "../x" }, ErrInvalidDataset},
		{"short timeout", func(c *Config) { c.Timeout = 500 * time.Millisecond }, ErrInvalidTimeout},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLevel_FallsBackToInfo(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "nonsense"

	assert.Equal(t, logger.LevelInfo, cfg.Level())
}
