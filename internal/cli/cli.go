package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sud-bedwatch/bedwatch/internal/config"
	"github.com/sud-bedwatch/bedwatch/internal/history"
	"github.com/sud-bedwatch/bedwatch/internal/logger"
	"github.com/sud-bedwatch/bedwatch/internal/schedule"
	"github.com/sud-bedwatch/bedwatch/internal/scraper"
	"github.com/sud-bedwatch/bedwatch/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// options holds the flag values of one command tree
type options struct {
	configPath string
	outputDir  string
	url        string
	dataset    string
	historyDB  string
	format     string
	timeout    time.Duration
	verbose    bool

	cron     string
	timezone string
	sortBy   string
	limit    int
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "bedwatch",
		Short: "Scrape LA County SBAT treatment bed availability into CSV files",
		Long: `Fetches the LA County Service & Bed Availability Tool page once, extracts every
treatment agency listing, and writes timestamped agency and service CSV files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", storage.DefaultDir, "Directory for CSV files")
	flags.StringVarP(&opts.url, "url", "u", scraper.DefaultURL, "SBAT page URL")
	flags.StringVar(&opts.dataset, "dataset", storage.DefaultDataset, "File name prefix for CSV files")
	flags.StringVar(&opts.historyDB, "history-db", "", "SQLite file for run history (disabled when empty)")
	flags.DurationVar(&opts.timeout, "timeout", scraper.Timeout, "HTTP request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	cmd.AddCommand(newRunCmd(opts), newScheduleCmd(opts), newSummaryCmd(opts), newHistoryCmd(opts))

	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape the portal once (same as running bedwatch without a command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	return cmd
}

func newScheduleCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scrape repeatedly on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.cron, "cron", "", `Cron expression, e.g. "0 * * * *" (default from config)`)
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "Timezone for the cron expression (default from config)")
	return cmd
}

func newSummaryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <agencies.csv>",
		Short: "Print a bed availability table from a written agencies file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order := SortOrder(opts.sortBy)
			if order != SortByName && order != SortByBeds {
				return fmt.Errorf("invalid sort: %s (must be 'name' or 'beds')", opts.sortBy)
			}

			agencies, err := storage.ReadAgencies(args[0])
			if err != nil {
				return err
			}
			return WriteSummary(cmd.OutOrStdout(), agencies, order)
		},
	}
	cmd.Flags().StringVar(&opts.sortBy, "sort", string(SortByName), "Sort order: name or beds")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the runs stored in the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

// loadConfig layers flags that were set explicitly over the file and environment
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("url") {
		cfg.URL = opts.url
	}
	if flags.Changed("dataset") {
		cfg.Dataset = opts.dataset
	}
	if flags.Changed("history-db") {
		cfg.HistoryDB = opts.historyDB
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if opts.verbose {
		cfg.LogLevel = string(logger.LevelDebug)
	}
	if flags.Changed("cron") {
		cfg.Schedule.Cron = opts.cron
	}
	if flags.Changed("timezone") {
		cfg.Schedule.Timezone = opts.timezone
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	return logger.New(cfg.Level(), w).With(logger.Fields{"component": "bedwatch"})
}

// runScrape is the single-run command logic
func runScrape(cmd *cobra.Command, opts *options) error {
	format, err := ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	result, err := NewRunner(cfg, log).Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := WriteOutput(cmd.OutOrStdout(), result, format, opts.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// runHistory lists recorded runs, newest first
func runHistory(cmd *cobra.Command, opts *options) error {
	if opts.limit <= 0 {
		return fmt.Errorf("invalid limit: %d (must be positive)", opts.limit)
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return errors.New("history is disabled: set --history-db or " + config.EnvHistoryDB)
	}
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		return fmt.Errorf("opening history: %w", err)
	}

	store, err := history.Open(cmd.Context(), cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), opts.limit)
	if err != nil {
		return err
	}
	return WriteRuns(cmd.OutOrStdout(), runs)
}

// runSchedule repeats runScrape's work on a cron schedule until SIGINT or SIGTERM
func runSchedule(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log := newLogger(cfg, cmd.ErrOrStderr())

	loc, err := schedule.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return err
	}
	sched, err := schedule.New(cfg.Schedule.Cron, loc, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(cfg, log)
	return sched.Run(ctx, func(ctx context.Context) {
		// failures are already logged; the next tick retries
		_, _ = runner.Run(ctx)
	})
}

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return ExitError
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().ExecuteContext(context.Background())
	if err != nil {
		var netErr *scraper.NetworkError
		var writeErr *storage.WriteError
		// the runner has already logged these with context
		if !errors.As(err, &netErr) && !errors.As(err, &writeErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(ExitCode(err))
}
