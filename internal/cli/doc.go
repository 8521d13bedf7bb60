// Package cli implements the command-line interface for bedwatch.
//
// The root command scrapes the SBAT portal once and writes the agency and
// service CSV files. Subcommands repeat the scrape on a cron schedule
// (schedule) and print an availability table from a written file (summary).
// Run history and change detection are enabled by --history-db.
package cli
