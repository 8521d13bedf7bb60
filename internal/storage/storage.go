package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sud-bedwatch/bedwatch/internal/agency"
)

const (
	// DefaultDir is where CSV files are written when no directory is configured
	DefaultDir = "/var/lib/sud-bedwatch/data"
	// DefaultDataset is the file name prefix
	DefaultDataset = "sudhelpla"
	// TimestampLayout formats the run time in file names
	TimestampLayout = "20060102_150405"
)

// WriteError is returned when output could not be persisted. It is fatal for a run.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Files lists the paths written by one run
type Files struct {
	Agencies string `json:"agencies"`
	Services string `json:"services"`
}

// Writer handles persistence of agency and service tables
type Writer struct {
	dir string
}

// New creates a Writer for dir, creating the directory if needed
func New(dir string) (*Writer, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, &WriteError{Path: dir, Err: fmt.Errorf("getting home directory: %w", err)}
		}
		dir = filepath.Join(home, dir[2:])
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &WriteError{Path: dir, Err: fmt.Errorf("creating output directory: %w", err)}
	}

	return &Writer{
		dir: dir,
	}, nil
}

// Dir returns the resolved output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Paths returns the file names a run at the given time would use
func (w *Writer) Paths(dataset string, at time.Time) Files {
	stamp := at.Format(TimestampLayout)
	return Files{
		Agencies: filepath.Join(w.dir, fmt.Sprintf("%s_agencies_%s.csv", dataset, stamp)),
		Services: filepath.Join(w.dir, fmt.Sprintf("%s_services_%s.csv", dataset, stamp)),
	}
}

// Write saves both tables for the run at the given time
func (w *Writer) Write(dataset string, at time.Time, agencies []agency.Record, services []agency.Service) (Files, error) {
	files := w.Paths(dataset, at)

	rows := make([][]string, 0, len(agencies))
	for i := range agencies {
		rows = append(rows, agencies[i].Row())
	}
	if err := writeTable(files.Agencies, agency.Columns(), rows); err != nil {
		return Files{}, err
	}

	rows = make([][]string, 0, len(services))
	for i := range services {
		rows = append(rows, services[i].Row())
	}
	if err := writeTable(files.Services, agency.ServiceColumns, rows); err != nil {
		return Files{}, err
	}

	return files, nil
}

// writeTable creates path and writes the header followed by rows
func writeTable(path string, header []string, rows [][]string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &WriteError{Path: path, Err: closeErr}
		}
	}()

	if err := encode(f, header, rows); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func encode(out io.Writer, header []string, rows [][]string) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// ReadAgencies loads an agencies file written by Write
func ReadAgencies(path string) ([]agency.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening agencies file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	records := make([]agency.Record, 0)
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		rec, err := agency.FromRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
