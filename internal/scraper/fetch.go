package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sud-bedwatch/bedwatch/internal/logger"
)

const (
	// Timeout is the default request timeout
	Timeout = 30 * time.Second
	// MaxBodySize caps how much of the response is read
	MaxBodySize = 16 << 20
)

// Fetcher downloads the portal page. It never retries: a failed run is simply
// repeated by the next scheduled invocation.
type Fetcher struct {
	client *http.Client
	url    string
	log    *logger.Logger
}

// NewFetcher creates a Fetcher for url. A zero timeout selects the default.
func NewFetcher(url string, timeout time.Duration, log *logger.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = Timeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		url: url,
		log: log,
	}
}

// URL returns the page this fetcher downloads
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch performs one GET request and returns the HTML body. Any failure is
// returned as a *NetworkError.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return nil, &NetworkError{URL: f.url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	f.log.Debug("Fetching page", logger.Fields{"url": f.url})

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{
			URL:        f.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, &NetworkError{URL: f.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(body) > MaxBodySize {
		return nil, &NetworkError{URL: f.url, StatusCode: resp.StatusCode, Err: ErrBodyTooLarge}
	}
	if len(body) == 0 {
		return nil, &NetworkError{URL: f.url, StatusCode: resp.StatusCode, Err: ErrEmptyBody}
	}

	f.log.Debug("Fetched page", logger.Fields{
		"url":      f.url,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	})

	return body, nil
}
