package cli

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sud-bedwatch/bedwatch/internal/agency"
	"github.com/sud-bedwatch/bedwatch/internal/config"
	"github.com/sud-bedwatch/bedwatch/internal/history"
	"github.com/sud-bedwatch/bedwatch/internal/logger"
	"github.com/sud-bedwatch/bedwatch/internal/scraper"
	"github.com/sud-bedwatch/bedwatch/internal/storage"
)

// RunResult summarizes one scrape
type RunResult struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	URL       string                 `json:"url"`
	Agencies  int                    `json:"agencies"`
	Services  int                    `json:"services"`
	Warnings  int                    `json:"warnings"`
	Files     storage.Files          `json:"files"`
	Changes   *ChangeSummary         `json:"changes,omitempty"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// ChangeSummary is the difference against the previous run in the history database
type ChangeSummary struct {
	PreviousRunID string          `json:"previous_run_id"`
	Unchanged     bool            `json:"unchanged"`
	Added         []string        `json:"added"`
	Removed       []string        `json:"removed"`
	Changes       []agency.Change `json:"changes"`
}

// Runner performs scrapes with a fixed configuration
type Runner struct {
	cfg *config.Config
	log *logger.Logger
	now func() time.Time
}

// NewRunner creates a Runner. cfg must already be validated.
func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{cfg: cfg, log: log, now: time.Now}
}

// Run fetches the portal, extracts agencies and services, and writes both CSV
// files. A fetch failure leaves the output directory untouched.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		URL:       r.cfg.URL,
	}
	log := r.log.With(logger.Fields{"run_id": result.RunID})
	metrics := logger.NewMetrics()

	log.Info("Starting scrape", logger.Fields{
		"url":        r.cfg.URL,
		"output_dir": r.cfg.OutputDir,
		"dataset":    r.cfg.Dataset,
	})

	writer, err := storage.New(r.cfg.OutputDir)
	if err != nil {
		log.Error("Output directory unavailable", logger.Fields{"path": r.cfg.OutputDir}, err)
		return nil, err
	}

	fetcher := scraper.NewFetcher(r.cfg.URL, r.cfg.Timeout, log)
	var body []byte
	err = metrics.Time("fetch", func() error {
		var fetchErr error
		body, fetchErr = fetcher.Fetch(ctx)
		return fetchErr
	})
	if err != nil {
		log.Error("Fetch failed", logger.Fields{"url": fetcher.URL()}, err)
		return nil, err
	}
	metrics.SetGauge("page_bytes", float64(len(body)))

	var extracted *scraper.Result
	err = metrics.Time("extract", func() error {
		var extractErr error
		extracted, extractErr = scraper.NewExtractor(log).Extract(bytes.NewReader(body))
		return extractErr
	})
	if err != nil {
		log.Error("Parsing failed", logger.Fields{"url": r.cfg.URL}, err)
		return nil, fmt.Errorf("extracting %s: %w", r.cfg.URL, err)
	}

	logWarnings(log, metrics, extracted.Warnings)
	metrics.AddCounter("agencies", int64(len(extracted.Agencies)))
	metrics.AddCounter("services", int64(len(extracted.Services)))

	if len(extracted.Agencies) == 0 {
		log.Warn("No agencies found, writing header-only file", logger.Fields{
			"url":             r.cfg.URL,
			"container_found": extracted.ContainerFound,
		})
	}

	err = metrics.Time("write", func() error {
		var writeErr error
		result.Files, writeErr = writer.Write(r.cfg.Dataset, result.StartedAt, extracted.Agencies, extracted.Services)
		return writeErr
	})
	if err != nil {
		log.Error("Write failed", logger.Fields{"path": writer.Dir()}, err)
		return nil, err
	}

	result.Agencies = len(extracted.Agencies)
	result.Services = len(extracted.Services)
	result.Warnings = len(extracted.Warnings)

	if r.cfg.HistoryDB != "" {
		_ = metrics.Time("history", func() error {
			changes, histErr := r.recordHistory(ctx, log, result, extracted.Agencies)
			if histErr != nil {
				// CSV output already exists; history is best effort
				log.Error("History update failed", logger.Fields{"path": r.cfg.HistoryDB}, histErr)
			}
			result.Changes = changes
			return histErr
		})
	}

	result.Metrics = metrics.GetSnapshot()

	log.Info("Scrape complete", logger.Fields{
		"agencies":      result.Agencies,
		"services":      result.Services,
		"warnings":      result.Warnings,
		"agencies_file": result.Files.Agencies,
		"services_file": result.Files.Services,
		"metrics":       result.Metrics,
	})

	return result, nil
}

// recordHistory compares against the latest stored run, then stores this one
func (r *Runner) recordHistory(ctx context.Context, log *logger.Logger, result *RunResult, agencies []agency.Record) (*ChangeSummary, error) {
	store, err := history.Open(ctx, r.cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	previous, snapshot, err := store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	var summary *ChangeSummary
	if previous != nil {
		diff := agency.Diff(snapshot, agencies)
		summary = &ChangeSummary{
			PreviousRunID: previous.ID,
			Unchanged:     diff.Empty(),
			Added:         names(diff.Added),
			Removed:       names(diff.Removed),
			Changes:       diff.Changes,
		}
		if summary.Changes == nil {
			summary.Changes = []agency.Change{}
		}

		log.Info("Compared with previous run", logger.Fields{
			"previous_run_id": previous.ID,
			"added":           len(diff.Added),
			"removed":         len(diff.Removed),
			"changed":         len(diff.Changes),
		})
		for _, c := range diff.Changes {
			log.Debug("Availability changed", logger.Fields{
				"agency": c.Name,
				"field":  c.Field,
				"old":    c.OldValue,
				"new":    c.NewValue,
			})
		}
	}

	run := history.Run{
		ID:           result.RunID,
		StartedAt:    result.StartedAt,
		URL:          result.URL,
		Agencies:     len(agencies),
		AgenciesFile: result.Files.Agencies,
	}
	if err := store.Record(ctx, run, agencies); err != nil {
		return summary, err
	}

	return summary, nil
}

// logWarnings reports page-level problems at WARN and missing fields at DEBUG
func logWarnings(log *logger.Logger, metrics *logger.Metrics, warnings []scraper.ExtractionWarning) {
	missing := 0
	for _, w := range warnings {
		if w.Agency < 0 {
			metrics.IncrCounter("page_warnings")
			log.Warn("Page structure changed", logger.Fields{"missing": w.Field})
			continue
		}
		missing++
		metrics.IncrCounter("missing_fields")
		log.Debug("Field not found", logger.Fields{
			"agency_index": w.Agency,
			"agency":       w.Name,
			"field":        w.Field,
		})
	}
	if missing > 0 {
		log.Info("Some fields were missing", logger.Fields{"count": missing})
	}
}

func names(records []agency.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}
