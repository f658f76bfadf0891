// Package fetch downloads source images over HTTP so remote images can be
// sliced like local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "imslice/2.0.0"

// Options configures a Fetcher
type Options struct {
	// Timeout bounds each download. Defaults to 30 seconds.
	Timeout   time.Duration
	UserAgent string
	// Headers are added to every request, e.g. Authorization or Referer.
	Headers map[string]string
	// Client replaces the default HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Fetcher performs the downloads
type Fetcher struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// StatusError reports a response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Status)
}

// New creates a new fetcher instance
func New(opts *Options) *Fetcher {
	if opts == nil {
		opts = &Options{}
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Fetcher{client: client, userAgent: ua, headers: opts.Headers}
}

// IsURL reports whether source names an http or https resource rather than
// a local path.
func IsURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Get downloads url and returns the response body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(resp.Body)
}
