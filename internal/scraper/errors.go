package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus indicates a non-2xx HTTP response
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrEmptyBody indicates a successful response without content
	ErrEmptyBody = errors.New("empty response body")
	// ErrBodyTooLarge indicates a response larger than MaxBodySize
	ErrBodyTooLarge = errors.New("response body too large")
)

// NetworkError is returned when the portal could not be fetched. It is fatal for a run.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionWarning records an expected element that was missing from the page.
// Warnings never stop extraction; the affected value is left empty.
type ExtractionWarning struct {
	Agency int    // zero-based position of the agency container, -1 for page-level markers
	Name   string // agency name when known
	Field  string
}

func (w ExtractionWarning) Error() string {
	if w.Agency < 0 {
		return fmt.Sprintf("%s not found on page", w.Field)
	}
	if w.Name != "" {
		return fmt.Sprintf("agency %d (%s): %s not found", w.Agency+1, w.Name, w.Field)
	}
	return fmt.Sprintf("agency %d: %s not found", w.Agency+1, w.Field)
}
