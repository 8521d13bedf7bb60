package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/sud-bedwatch/bedwatch/internal/agency"
	"github.com/sud-bedwatch/bedwatch/internal/history"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// WriteOutput writes the run result in the specified format
func WriteOutput(w io.Writer, result *RunResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *RunResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *RunResult, verbose bool) error {
	if result.Agencies == 0 {
		fmt.Fprintln(w, "No agencies found.")
	} else {
		fmt.Fprintf(w, "Scraped %d agencies and %d service types.\n", result.Agencies, result.Services)
	}
	fmt.Fprintf(w, "  %s\n", result.Files.Agencies)
	fmt.Fprintf(w, "  %s\n", result.Files.Services)

	if result.Warnings > 0 {
		fmt.Fprintf(w, "%d fields could not be found (run with --verbose for details).\n", result.Warnings)
	}

	if c := result.Changes; c != nil && c.Unchanged {
		fmt.Fprintln(w, "\nNo changes since the previous run.")
	} else if c != nil {
		fmt.Fprintf(w, "\nSince the previous run: %d added, %d removed, %d changed.\n",
			len(c.Added), len(c.Removed), len(c.Changes))
		for _, name := range c.Added {
			fmt.Fprintf(w, "  + %s\n", name)
		}
		for _, name := range c.Removed {
			fmt.Fprintf(w, "  - %s\n", name)
		}
		for _, ch := range c.Changes {
			fmt.Fprintf(w, "  * %s: %s %q -> %q\n", ch.Name, ch.Field, ch.OldValue, ch.NewValue)
		}
	}

	if verbose {
		fmt.Fprintf(w, "\nRun ID: %s\n", result.RunID)
		fmt.Fprintf(w, "Started: %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}

	return nil
}

// SortOrder represents the available summary orderings
type SortOrder string

const (
	SortByName SortOrder = "name"
	SortByBeds SortOrder = "beds"
)

// maxNameWidth caps the agency column of the summary table
const maxNameWidth = 48

// WriteSummary prints an aligned table of agency availability
func WriteSummary(w io.Writer, agencies []agency.Record, order SortOrder) error {
	if len(agencies) == 0 {
		_, err := fmt.Fprintln(w, "No agencies found.")
		return err
	}

	sorted := make([]agency.Record, len(agencies))
	copy(sorted, agencies)
	sortAgencies(sorted, order)

	table := [][]string{{"AGENCY", "AVAILABLE BEDS", "OPEN APPTS", "LAST UPDATED"}}
	for _, a := range sorted {
		name := a.Name
		if a.SecondaryName != "" {
			name += " (" + a.SecondaryName + ")"
		}
		table = append(table, []string{
			runewidth.Truncate(name, maxNameWidth, "…"),
			orDash(a.AvailableBeds),
			orDash(a.IntakeOpenAppointments),
			orDash(a.LastUpdated),
		})
	}

	for _, line := range alignTable(table) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d agencies\n", len(agencies))
	return err
}

// WriteRuns prints the recorded runs, newest first
func WriteRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	table := [][]string{{"RUN ID", "STARTED", "AGENCIES", "FILE"}}
	for _, r := range runs {
		table = append(table, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(r.Agencies),
			orDash(r.AgenciesFile),
		})
	}

	for _, line := range alignTable(table) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// alignTable pads every cell to its column's display width
func alignTable(table [][]string) []string {
	var widths []int
	for _, row := range table {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	lines := make([]string, 0, len(table))
	for _, row := range table {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func sortAgencies(agencies []agency.Record, order SortOrder) {
	switch order {
	case SortByBeds:
		sort.SliceStable(agencies, func(i, j int) bool {
			bi, bj := agencies[i].TotalBeds(), agencies[j].TotalBeds()
			if bi != bj {
				return bi > bj
			}
			return strings.ToLower(agencies[i].Name) < strings.ToLower(agencies[j].Name)
		})
	default:
		sort.SliceStable(agencies, func(i, j int) bool {
			return strings.ToLower(agencies[i].Name) < strings.ToLower(agencies[j].Name)
		})
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
