package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/metrics"
)

// DefaultSourcePattern accepts WeChat public-account article URLs.
const DefaultSourcePattern = `^https?://mp\.weixin\.qq\.com/`

// ProgressFunc receives batch progress ticks. It is called synchronously.
type ProgressFunc func(domain.ScrapeProgress)

// Config configures a Scraper.
type Config struct {
	Fetcher       FetcherConfig
	SourcePattern string
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Fetcher:       DefaultFetcherConfig(),
		SourcePattern: DefaultSourcePattern,
	}
}

// Scraper runs URLs through validating, fetching and parsing.
type Scraper struct {
	fetcher *Fetcher
	parser  *Parser
	source  *regexp.Regexp
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Scraper with its own Fetcher. m may be nil.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger, opts ...FetcherOption) (*Scraper, error) {
	if cfg.SourcePattern == "" {
		cfg.SourcePattern = DefaultSourcePattern
	}
	source, err := regexp.Compile(cfg.SourcePattern)
	if err != nil {
		return nil, fmt.Errorf("compile source pattern: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fopts := []FetcherOption{WithFetcherLogger(logger)}
	if m != nil {
		fopts = append(fopts, WithMetrics(m))
	}
	fopts = append(fopts, opts...)

	return &Scraper{
		fetcher: NewFetcher(cfg.Fetcher, fopts...),
		parser:  NewParser(),
		source:  source,
		metrics: m,
		logger:  logger,
	}, nil
}

// Validate checks rawURL without touching the network.
func (s *Scraper) Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperr.Validation("url is required")
	}
	if !s.source.MatchString(rawURL) {
		return apperr.Validationf("url does not match the supported source: %s", rawURL)
	}
	return nil
}

// Scrape fetches and parses one URL. Failures are reported in the result,
// never as a panic or returned error.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) domain.ScrapeResult {
	start := time.Now()
	rawURL = strings.TrimSpace(rawURL)
	result := domain.ScrapeResult{URL: rawURL, Stage: domain.StageValidating}

	fail := func(stage domain.ScrapeStage, err error) domain.ScrapeResult {
		result.Stage = domain.StageFailed
		result.FailedAt = stage
		result.Error = err.Error()
		result.ErrorCode = string(apperr.CodeOf(err))
		result.Duration = time.Since(start)
		s.observe(result)
		s.logger.Error("scrape failed",
			"url", rawURL,
			"stage", stage,
			"retries", result.RetryCount,
			"error", err,
		)
		return result
	}

	if err := s.Validate(rawURL); err != nil {
		return fail(domain.StageValidating, err)
	}

	result.Stage = domain.StageFetching
	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			result.RetryCount = fe.Retries
		}
		return fail(domain.StageFetching, apperr.Transient("fetch failed", err))
	}
	result.RetryCount = resp.Retries

	result.Stage = domain.StageParsing
	data, err := s.parser.Parse(resp.Body, rawURL)
	if err != nil {
		return fail(domain.StageParsing, err)
	}

	result.Stage = domain.StageSuccess
	result.Success = true
	result.Data = data
	result.Duration = time.Since(start)
	s.observe(result)
	return result
}

// ScrapeBatch scrapes urls one at a time through the shared Fetcher. The
// returned slice is aligned with urls. Cancellation fails the remaining URLs
// without fetching them.
func (s *Scraper) ScrapeBatch(ctx context.Context, urls []string, progress ProgressFunc) []domain.ScrapeResult {
	if progress == nil {
		progress = func(domain.ScrapeProgress) {}
	}
	total := len(urls)
	results := make([]domain.ScrapeResult, total)
	succeeded := 0

	for i, u := range urls {
		tick := domain.ScrapeProgress{Current: i, Total: total, CurrentItem: u}

		tick.Status = domain.ProgressPending
		progress(tick)
		tick.Status = domain.ProgressProcessing
		progress(tick)

		if err := ctx.Err(); err != nil {
			results[i] = domain.ScrapeResult{
				URL:       u,
				Stage:     domain.StageFailed,
				FailedAt:  domain.StageValidating,
				Error:     err.Error(),
				ErrorCode: string(apperr.CodeTransient),
			}
		} else {
			results[i] = s.Scrape(ctx, u)
		}

		tick.Current = i + 1
		if results[i].Success {
			succeeded++
			tick.Status = domain.ProgressCompleted
		} else {
			tick.Status = domain.ProgressError
		}
		progress(tick)
	}

	s.logger.Info("batch scrape finished",
		"total", total,
		"succeeded", succeeded,
		"failed", total-succeeded,
	)
	return results
}

func (s *Scraper) observe(r domain.ScrapeResult) {
	if s.metrics != nil {
		s.metrics.ObserveScrape(string(r.Stage))
	}
}
