// Package storage writes extracted records to timestamped CSV files.
//
// Every run produces two new files in the output directory,
// <dataset>_agencies_<YYYYMMDD_HHMMSS>.csv and <dataset>_services_<YYYYMMDD_HHMMSS>.csv,
// each starting with a header row even when there are no records. Files are never
// rewritten or appended to, so overlapping runs cannot corrupt each other.
// The default storage location is /var/lib/sud-bedwatch/data.
package storage
