// Package config provides configuration management for bedwatch.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sud-bedwatch/bedwatch/internal/logger"
	"github.com/sud-bedwatch/bedwatch/internal/scraper"
	"github.com/sud-bedwatch/bedwatch/internal/storage"
)

// Configuration validation errors.
var (
	ErrMissingURL       = errors.New("url is required")
	ErrInvalidURL       = errors.New("url must be an absolute http or https URL")
	ErrMissingOutputDir = errors.New("output_dir is required")
	ErrMissingDataset   = errors.New("dataset is required")
	ErrInvalidDataset   = errors.New("dataset must not contain path separators")
	ErrInvalidTimeout   = errors.New("timeout must be at least 1s")
	ErrInvalidLogLevel  = errors.New("log_level must be one of: debug, info, warn, error")
)

// Environment variables read by ApplyEnv
const (
	EnvURL       = "SBAT_URL"
	EnvOutputDir = "SBAT_OUTPUT_DIR"
	EnvDataset   = "SBAT_DATASET"
	EnvTimeout   = "SBAT_TIMEOUT"
	EnvHistoryDB = "SBAT_HISTORY_DB"
	EnvLogLevel  = "SBAT_LOG_LEVEL"
	EnvSchedule  = "SBAT_SCHEDULE"
	EnvTimezone  = "SBAT_TIMEZONE"
)

// Config represents the complete scraper configuration.
type Config struct {
	URL       string        `yaml:"url"`
	OutputDir string        `yaml:"output_dir"`
	Dataset   string        `yaml:"dataset"`
	Timeout   time.Duration `yaml:"timeout"`
	LogLevel  string        `yaml:"log_level"`

	// HistoryDB is an optional SQLite file recording bed availability per run
	HistoryDB string `yaml:"history_db"`

	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig is used by the schedule command only
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		URL:       scraper.DefaultURL,
		OutputDir: storage.DefaultDir,
		Dataset:   storage.DefaultDataset,
		Timeout:   scraper.Timeout,
		LogLevel:  "info",
		Schedule: ScheduleConfig{
			Cron:     "0 * * * *",
			Timezone: "America/Los_Angeles",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment (including .env files), in increasing order of precedence.
// Command-line flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	LoadEnvFiles()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFiles reads .env files without overriding variables already set
// by the runtime (cron, systemd, Docker).
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvURL:       &c.URL,
		EnvOutputDir: &c.OutputDir,
		EnvDataset:   &c.Dataset,
		EnvHistoryDB: &c.HistoryDB,
		EnvLogLevel:  &c.LogLevel,
		EnvSchedule:  &c.Schedule.Cron,
		EnvTimezone:  &c.Schedule.Timezone,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}

	return nil
}

// parseDuration accepts Go durations ("45s") or a bare number of seconds
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Level returns the parsed log level
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.LevelInfo
	}
	return level
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrMissingURL
	}

	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.URL)
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrMissingOutputDir
	}

	if strings.TrimSpace(c.Dataset) == "" {
		return ErrMissingDataset
	}

	if strings.ContainsAny(c.Dataset, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, c.Dataset)
	}

	if c.Timeout < time.Second {
		return ErrInvalidTimeout
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}

	return nil
}
