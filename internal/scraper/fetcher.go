// Package scraper turns article URLs into structured article data: a
// throttled, retrying Fetcher, a selector-driven Parser, and the Scraper that
// runs each URL through validating, fetching and parsing.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/ratelimit"
)

// Fetcher defaults.
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 2 * time.Second
	DefaultTimeout      = 10 * time.Second
	DefaultInterval     = 2 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// FetcherConfig controls retries, timeouts and politeness.
type FetcherConfig struct {
	// MaxRetries is how many times a failed attempt is retried.
	MaxRetries int
	// RetryDelay is multiplied by the retry number: 1x, 2x, 3x...
	RetryDelay time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Interval is the minimum gap between the end of one attempt and the
	// start of the next.
	Interval time.Duration
	// MaxBodyBytes caps the response body. Larger bodies fail the attempt.
	MaxBodyBytes int64
}

// DefaultFetcherConfig returns the defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxRetries:   DefaultMaxRetries,
		RetryDelay:   DefaultRetryDelay,
		Timeout:      DefaultTimeout,
		Interval:     DefaultInterval,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (c *FetcherConfig) applyDefaults() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Response is a successfully fetched page.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Body       string // decoded to UTF-8
	Retries    int    // failed attempts before this one
}

// StatusError is a response outside [200, 400).
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// FetchError is returned once retries are exhausted or the caller gave up.
type FetchError struct {
	URL     string
	Retries int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d retries: %v", e.URL, e.Retries, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithMetrics records attempts and throttle waits.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// Fetcher issues throttled GET requests with linear-backoff retries.
//
// Thread safety: Fetch is safe for concurrent use, but calls are serialized
// so the politeness interval holds across every caller of one Fetcher.
type Fetcher struct {
	cfg      FetcherConfig
	client   *http.Client
	throttle *ratelimit.Interval
	metrics  *metrics.Metrics
	logger   *slog.Logger
	intn     func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, opts ...FetcherOption) *Fetcher {
	cfg.applyDefaults()
	f := &Fetcher{
		cfg:      cfg,
		client:   &http.Client{},
		throttle: ratelimit.NewInterval(cfg.Interval),
		logger:   slog.Default(),
		intn:     defaultIntN,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the effective configuration.
func (f *Fetcher) Config() FetcherConfig {
	return f.cfg
}

// Fetch GETs rawURL. Network errors, timeouts and statuses outside
// [200, 400) are retried up to MaxRetries times, waiting RetryDelay*n before
// retry n. Every attempt, retries included, first waits out the politeness
// interval. The terminal error is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		lastErr error
		retries int
	)
	for attempt := 0; ; attempt++ {
		retries = attempt
		waited, err := f.throttle.Wait(ctx)
		if err != nil {
			return nil, &FetchError{URL: rawURL, Retries: attempt, Err: err}
		}
		if f.metrics != nil {
			f.metrics.ObserveThrottleWait(waited)
		}

		start := time.Now()
		resp, err := f.attempt(ctx, rawURL)
		f.throttle.Mark()

		if f.metrics != nil {
			n := 0
			if resp != nil {
				n = len(resp.Body)
			}
			f.metrics.ObserveFetch(rawURL, attempt, err, n, time.Since(start))
		}

		if err == nil {
			resp.Retries = attempt
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt >= f.cfg.MaxRetries {
			break
		}

		delay := f.cfg.RetryDelay * time.Duration(attempt+1)
		f.logger.Warn("fetch attempt failed, retrying",
			"url", rawURL,
			"attempt", attempt+1,
			"retry_in", delay,
			"error", lastErr,
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, &FetchError{URL: rawURL, Retries: attempt, Err: errors.Join(lastErr, err)}
		}
	}

	return nil, &FetchError{URL: rawURL, Retries: retries, Err: lastErr}
}

// attempt performs one GET bounded by the per-attempt timeout.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", randomUserAgent(f.intn))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", f.cfg.MaxBodyBytes)
	}

	body, err := decode(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// decode converts the body to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		// Unknown charset labels fall back to the raw bytes.
		return string(raw), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
