// Package fetch downloads job sources over HTTP.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "audiodrop/0.1.0"

// ErrTooLarge is returned when a source exceeds the configured byte cap.
var ErrTooLarge = errors.New("source exceeds size limit")

// StatusError reports a non-2xx response. No body bytes are returned with it.
type StatusError struct {
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("bad status %d %s", e.StatusCode, reason)
}

// Result is a fully buffered source body.
type Result struct {
	Body        []byte
	ContentType string
}

// Fetcher retrieves a source locator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// HTTPFetcher buffers GET responses in memory.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// Option customizes an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMaxBytes aborts downloads once more than n bytes arrive. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithTimeout sets the client timeout. Zero leaves the context as the only bound.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client = &http.Client{Timeout: d, Transport: f.client.Transport}
		}
	}
}

// NewHTTPFetcher constructs a fetcher.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{client: &http.Client{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url into memory.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Reason: reasonPhrase(resp.Status)}
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return Result{}, fmt.Errorf("%w: content length %d exceeds %d bytes", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(buf.Len()) > f.maxBytes {
		return Result{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	return Result{Body: buf.Bytes(), ContentType: resp.Header.Get("Content-Type")}, nil
}

// reasonPhrase strips the numeric code from a Status line such as "404 Not Found".
func reasonPhrase(status string) string {
	if _, rest, ok := strings.Cut(status, " "); ok {
		return rest
	}
	return ""
}
