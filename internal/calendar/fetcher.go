package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes caps how much of a remote feed is read.
const maxFeedBytes = 10 << 20

// ErrNotModified is returned when the remote feed has not changed since the
// caller's last import.
var ErrNotModified = errors.New("calendar not modified")

// FetchError reports a remote feed that could not be retrieved.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Conditions describe what the caller already has.
type Conditions struct {
	// Since is when the feed was last imported. Zero forces a download.
	Since time.Time
	// ETag is the validator returned by the previous fetch.
	ETag string
}

// Feed is a downloaded calendar body with its validators.
type Feed struct {
	Body         []byte
	ETag         string
	LastModified time.Time
	SHA          string
}

// Fetcher downloads remote calendar feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: timeout})
}

// NewFetcherWithClient creates a fetcher using client.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads url unless the server reports it unchanged, either with
// 304 or with a Last-Modified no later than c.Since.
func (f *Fetcher) Fetch(ctx context.Context, url string, c Conditions) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/calendar")
	if !c.Since.IsZero() {
		req.Header.Set("If-Modified-Since", c.Since.UTC().Format(http.TimeFormat))
	}
	if c.ETag != "" {
		req.Header.Set("If-None-Match", c.ETag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	feed := &Feed{ETag: resp.Header.Get("ETag")}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			feed.LastModified = t
		}
	}
	if !c.Since.IsZero() && !feed.LastModified.IsZero() && !feed.LastModified.After(c.Since) {
		return nil, ErrNotModified
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	feed.Body = body
	sum := sha256.Sum256(body)
	feed.SHA = hex.EncodeToString(sum[:])

	return feed, nil
}
