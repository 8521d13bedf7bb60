// Package scraper fetches the SBAT portal and extracts agency listings from its HTML.
//
// Fetching is a single GET with a timeout and no retries; a failed fetch is reported
// as a *NetworkError and the caller abandons the run. Extraction walks the repeating
// agency containers and reads each field by its visible label ("Phone:", "Available
// Beds:") before falling back to the portal's CSS classes, so small markup changes do
// not silently empty a column. Fields that cannot be found become empty strings and
// are reported as ExtractionWarning values rather than errors.
//
// All selectors and labels live in selectors.go.
package scraper
