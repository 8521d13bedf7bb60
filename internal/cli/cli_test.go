package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sud-bedwatch/bedwatch/internal/agency"
	"github.com/sud-bedwatch/bedwatch/internal/config"
	"github.com/sud-bedwatch/bedwatch/internal/scraper"
	"github.com/sud-bedwatch/bedwatch/internal/storage"
)

func loadPage(t *testing.T) []byte {
	t.Helper()
	page, err := os.ReadFile("../scraper/testdata/sbat_two_agencies.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return page
}

func servePage(t *testing.T, page []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}))
	t.Cleanup(server.Close)
	return server
}

// clearEnv keeps the caller's environment out of config loading
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvURL, config.EnvOutputDir, config.EnvDataset, config.EnvTimeout,
		config.EnvHistoryDB, config.EnvLogLevel, config.EnvSchedule, config.EnvTimezone,
	} {
		t.Setenv(name, "")
	}
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	clearEnv(t)

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_TwoAgencies(t *testing.T) {
	server := servePage(t, loadPage(t))
	dir := t.TempDir()

	stdout, _, err := execute(t, "--output-dir", dir, "--url", server.URL, "--format", "json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if code := ExitCode(err); code != ExitSuccess {
		t.Errorf("exit code = %d, want %d", code, ExitSuccess)
	}

	var result RunResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if result.Agencies != 2 {
		t.Errorf("Agencies = %d, want 2", result.Agencies)
	}
	if result.Services != 3 {
		t.Errorf("Services = %d, want 3", result.Services)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}

	if filepath.Dir(result.Files.Agencies) != dir {
		t.Errorf("agencies file %q not in %q", result.Files.Agencies, dir)
	}
	if !strings.HasPrefix(filepath.Base(result.Files.Agencies), "sudhelpla_agencies_") {
		t.Errorf("agencies file name = %q", filepath.Base(result.Files.Agencies))
	}

	rows := readCSV(t, result.Files.Agencies)
	if len(rows) != 3 {
		t.Fatalf("agencies file has %d rows, want header + 2", len(rows))
	}
	if rows[1][0] != "Tarzana Treatment Centers" {
		t.Errorf("first agency name = %q", rows[1][0])
	}
	if got := len(listDir(t, dir)); got != 2 {
		t.Errorf("output dir has %d files, want 2", got)
	}
}

func TestRun_TextOutput(t *testing.T) {
	server := servePage(t, loadPage(t))

	stdout, stderr, err := execute(t, "run", "-o", t.TempDir(), "-u", server.URL, "--dataset", "test")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(stdout, "Scraped 2 agencies and 3 service types.") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "test_agencies_") {
		t.Errorf("output does not name the agencies file:\n%s", stdout)
	}
	if !strings.Contains(stderr, `"message":"Scrape complete"`) {
		t.Errorf("missing completion log:\n%s", stderr)
	}
}

func TestRun_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	dir := t.TempDir()

	_, stderr, err := execute(t, "--output-dir", dir, "--url", server.URL)

	var netErr *scraper.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Execute() error = %v, want *scraper.NetworkError", err)
	}
	if netErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", netErr.StatusCode)
	}
	if code := ExitCode(err); code != ExitError {
		t.Errorf("exit code = %d, want %d", code, ExitError)
	}
	if files := listDir(t, dir); len(files) != 0 {
		t.Errorf("files written after fetch failure: %v", files)
	}
	if !strings.Contains(stderr, `"level":"ERROR"`) || !strings.Contains(stderr, server.URL) {
		t.Errorf("expected an error log naming the URL:\n%s", stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.URL = server.URL
	cfg.OutputDir = dir
	cfg.Timeout = 100 * time.Millisecond

	_, err := NewRunner(cfg, nil).Run(context.Background())

	var netErr *scraper.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Run() error = %v, want *scraper.NetworkError", err)
	}
	if files := listDir(t, dir); len(files) != 0 {
		t.Errorf("files written after timeout: %v", files)
	}
}

func TestRun_NoContainers(t *testing.T) {
	server := servePage(t, []byte(`<html><body><p>The tool is temporarily unavailable.</p></body></html>`))
	dir := t.TempDir()

	stdout, stderr, err := execute(t, "--output-dir", dir, "--url", server.URL, "--format", "json")
	if err != nil {
		t.Fatalf("Execute() error = %v, want success", err)
	}

	var result RunResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if result.Agencies != 0 {
		t.Errorf("Agencies = %d, want 0", result.Agencies)
	}

	rows := readCSV(t, result.Files.Agencies)
	if len(rows) != 1 || len(rows[0]) != len(agency.Columns()) {
		t.Errorf("agencies file = %v, want header only", rows)
	}
	if !strings.Contains(stderr, `"level":"WARN"`) || !strings.Contains(stderr, "No agencies found") {
		t.Errorf("expected a warning log:\n%s", stderr)
	}
}

func TestRun_UnwritableOutput(t *testing.T) {
	server := servePage(t, loadPage(t))
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "--output-dir", filepath.Join(blocker, "data"), "--url", server.URL)

	var writeErr *storage.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Execute() error = %v, want *storage.WriteError", err)
	}
	if ExitCode(err) != ExitError {
		t.Errorf("exit code = %d", ExitCode(err))
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "xml"}},
		{"bad url", []string{"--url", "not a url"}},
		{"short timeout", []string{"--timeout", "10ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--output-dir", t.TempDir()}, tt.args...)
			if _, _, err := execute(t, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRun_HistoryDiff(t *testing.T) {
	page := loadPage(t)
	current := page
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(current)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.URL = server.URL
	cfg.OutputDir = dir
	cfg.HistoryDB = filepath.Join(dir, "history.db")

	runner := NewRunner(cfg, nil)
	start := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return start }

	first, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.Changes != nil {
		t.Errorf("first run has no previous run, got %+v", first.Changes)
	}

	current = bytes.Replace(page, []byte("Residential: 4"), []byte("Residential: 1"), 1)
	runner.now = func() time.Time { return start.Add(time.Hour) }

	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Changes == nil {
		t.Fatal("second run should be compared with the first")
	}
	if second.Changes.PreviousRunID != first.RunID {
		t.Errorf("PreviousRunID = %q, want %q", second.Changes.PreviousRunID, first.RunID)
	}
	if len(second.Changes.Changes) != 1 {
		t.Fatalf("changes = %+v, want one", second.Changes.Changes)
	}
	c := second.Changes.Changes[0]
	if c.Field != agency.ChangeBeds || c.OldValue != "Residential: 4" || c.NewValue != "Residential: 1" {
		t.Errorf("change = %+v", c)
	}
	if len(second.Changes.Added) != 0 || len(second.Changes.Removed) != 0 {
		t.Errorf("unexpected added/removed: %+v", second.Changes)
	}
}

func TestRun_HistoryUnchanged(t *testing.T) {
	server := servePage(t, loadPage(t))
	dir := t.TempDir()

	cfg := config.Default()
	cfg.URL = server.URL
	cfg.OutputDir = dir
	cfg.HistoryDB = filepath.Join(dir, "history.db")

	runner := NewRunner(cfg, nil)
	start := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return start }
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	runner.now = func() time.Time { return start.Add(time.Hour) }
	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Changes == nil || !second.Changes.Unchanged {
		t.Fatalf("Changes = %+v, want unchanged", second.Changes)
	}

	var out bytes.Buffer
	if err := WriteOutput(&out, second, FormatText, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No changes since the previous run.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "added") {
		t.Errorf("unchanged run should not print counts:\n%s", out.String())
	}
}

func TestRun_WarningCounters(t *testing.T) {
	server := servePage(t, []byte(`<html><body><p>Maintenance</p></body></html>`))

	cfg := config.Default()
	cfg.URL = server.URL
	cfg.OutputDir = t.TempDir()

	result, err := NewRunner(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	counters, ok := result.Metrics["counters"].(map[string]int64)
	if !ok {
		t.Fatalf("metrics = %v, want counters", result.Metrics)
	}
	if counters["page_warnings"] != int64(result.Warnings) || result.Warnings == 0 {
		t.Errorf("page_warnings = %d, warnings = %d", counters["page_warnings"], result.Warnings)
	}
	if counters["missing_fields"] != 0 {
		t.Errorf("missing_fields = %d, want 0", counters["missing_fields"])
	}
}

func TestHistoryCommand(t *testing.T) {
	page := loadPage(t)
	server := servePage(t, page)
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")

	// separate output dirs so both runs can land in the same second
	for i := 0; i < 2; i++ {
		if _, _, err := execute(t, "run", "-o", t.TempDir(), "-u", server.URL, "--history-db", db); err != nil {
			t.Fatalf("run %d error = %v", i, err)
		}
	}

	stdout, _, err := execute(t, "history", "--history-db", db)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header and two runs, got:\n%s", stdout)
	}
	if !strings.HasPrefix(lines[0], "RUN ID") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "agencies_") {
		t.Errorf("row does not name the agencies file: %q", lines[1])
	}

	stdout, _, err = execute(t, "history", "--history-db", db, "-n", "1")
	if err != nil {
		t.Fatalf("history -n 1 error = %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(stdout), "\n")); n != 2 {
		t.Errorf("--limit 1 printed %d lines:\n%s", n, stdout)
	}
}

func TestHistoryCommand_Errors(t *testing.T) {
	if _, _, err := execute(t, "history"); err == nil || !strings.Contains(err.Error(), "history is disabled") {
		t.Errorf("error = %v, want history is disabled", err)
	}
	if _, _, err := execute(t, "history", "--history-db", filepath.Join(t.TempDir(), "none.db")); err == nil {
		t.Error("expected error for a missing database")
	}
	if _, _, err := execute(t, "history", "--history-db", "x.db", "-n", "0"); err == nil {
		t.Error("expected error for a zero limit")
	}
}

func TestRun_HistoryFailureIsNotFatal(t *testing.T) {
	server := servePage(t, loadPage(t))
	dir := t.TempDir()

	cfg := config.Default()
	cfg.URL = server.URL
	cfg.OutputDir = dir
	cfg.HistoryDB = filepath.Join(dir, "missing", "dir", "history.db")

	result, err := NewRunner(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want success", err)
	}
	if result.Agencies != 2 {
		t.Errorf("Agencies = %d", result.Agencies)
	}
}

func TestRun_FlagsOverrideEnvironment(t *testing.T) {
	server := servePage(t, loadPage(t))
	dir := t.TempDir()

	clearEnv(t)
	t.Setenv(config.EnvURL, server.URL)
	t.Setenv(config.EnvDataset, "from-env")
	t.Setenv(config.EnvOutputDir, dir)

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--dataset", "from-flag", "-v"})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	names := listDir(t, dir)
	if len(names) != 2 {
		t.Fatalf("output dir = %v, want 2 files", names)
	}
	for _, name := range names {
		if !strings.HasPrefix(name, "from-flag_") {
			t.Errorf("file %q does not use the flag's dataset", name)
		}
	}
	if !strings.Contains(errOut.String(), `"level":"DEBUG"`) {
		t.Error("--verbose did not enable debug logging")
	}
}

func TestSummaryCommand(t *testing.T) {
	w, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files, err := w.Write("test", time.Now(), []agency.Record{
		{Name: "Zeta House", AvailableBeds: "Residential: 1"},
		{Name: "Alpha Recovery", AvailableBeds: "Residential: 6", IntakeOpenAppointments: "2"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "summary", "--sort", "beds", files.Agencies)
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
	if !strings.HasPrefix(lines[0], "AGENCY") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Alpha Recovery") || !strings.HasPrefix(lines[2], "Zeta House") {
		t.Errorf("rows not sorted by beds:\n%s", stdout)
	}
	if strings.Index(lines[1], "Residential") != strings.Index(lines[2], "Residential") {
		t.Errorf("columns not aligned:\n%s", stdout)
	}
	if !strings.Contains(stdout, "2 agencies") {
		t.Errorf("missing count:\n%s", stdout)
	}
}

func TestSummaryCommand_Errors(t *testing.T) {
	if _, _, err := execute(t, "summary"); err == nil {
		t.Error("expected error without a file argument")
	}
	if _, _, err := execute(t, "summary", filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, _, err := execute(t, "summary", "--sort", "size", "x.csv"); err == nil {
		t.Error("expected error for an unknown sort")
	}
}

func TestScheduleCommand_InvalidCron(t *testing.T) {
	_, _, err := execute(t, "schedule", "--cron", "every hour", "--timezone", "UTC", "--output-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "invalid cron expression") {
		t.Errorf("error = %v, want invalid cron expression", err)
	}
}
