package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/id"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/scraper"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// MaxScrapeURLs bounds one scrape job.
const MaxScrapeURLs = 50

// Scraper is the part of the scrape orchestrator ingestion needs.
type Scraper interface {
	ScrapeBatch(ctx context.Context, urls []string, progress scraper.ProgressFunc) []domain.ScrapeResult
}

// IngestResult is the outcome of one URL within a job.
type IngestResult struct {
	domain.ScrapeResult
	ArticleID int64 `json:"article_id,omitempty"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// ScrapeJob is the outcome of IngestService.Scrape.
type ScrapeJob struct {
	JobID      string         `json:"job_id"`
	Results    []IngestResult `json:"results"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Duplicates int            `json:"duplicates"`
}

// IngestService scrapes URLs and persists the results.
type IngestService struct {
	scraper  Scraper
	articles *sqlite.ArticleStore
	events   sse.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIngestService creates a new ingest service. events and m may be nil.
func NewIngestService(s Scraper, articles *sqlite.ArticleStore, events sse.Emitter, m *metrics.Metrics, logger *slog.Logger) *IngestService {
	if events == nil {
		events = sse.Discard
	}
	return &IngestService{
		scraper:  s,
		articles: articles,
		events:   events,
		metrics:  m,
		logger:   logger,
	}
}

// Scrape runs urls through the scraper one at a time and stores every
// success with tags. URLs already stored are reported as duplicate successes
// and not fetched again. Progress is published as scrape.progress events
// under the returned job id.
func (s *IngestService) Scrape(ctx context.Context, urls []string, tags []string) (*ScrapeJob, error) {
	if len(urls) == 0 {
		return nil, apperr.Validation("at least one url is required")
	}
	if len(urls) > MaxScrapeURLs {
		return nil, apperr.Validationf("at most %d urls per job", MaxScrapeURLs)
	}

	jobID, err := id.Generate(id.PrefixScrapeJob)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "generate job id")
	}
	start := time.Now()
	job := &ScrapeJob{JobID: jobID, Results: make([]IngestResult, len(urls))}

	// Known URLs skip the network entirely. The rest go through the scraper
	// as one batch so the politeness interval spans the whole job.
	var (
		pending   []string
		pendingAt []int
	)
	for i, raw := range urls {
		u := strings.TrimSpace(raw)
		existing, err := s.lookup(ctx, u)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			job.Results[i] = IngestResult{
				ScrapeResult: domain.ScrapeResult{URL: u, Success: true, Stage: domain.StageSuccess},
				ArticleID:    existing,
				Duplicate:    true,
			}
			continue
		}
		pending = append(pending, u)
		pendingAt = append(pendingAt, i)
	}

	total := len(urls)
	offset := total - len(pending)
	scraped := s.scraper.ScrapeBatch(ctx, pending, func(p domain.ScrapeProgress) {
		p.Current += offset
		p.Total = total
		s.events.Emit(sse.NewScrapeProgressEvent(jobID, p))
	})

	for k, r := range scraped {
		job.Results[pendingAt[k]] = s.store(ctx, r, tags)
	}

	for _, r := range job.Results {
		switch {
		case r.Duplicate:
			job.Duplicates++
			job.Succeeded++
		case r.Success:
			job.Succeeded++
		default:
			job.Failed++
		}
	}

	s.events.Emit(sse.NewScrapeCompletedEvent(sse.ScrapeCompletedEventData{
		JobID:      jobID,
		Total:      total,
		Succeeded:  job.Succeeded,
		Failed:     job.Failed,
		Duplicates: job.Duplicates,
	}))
	s.logger.Info("scrape job finished",
		"job_id", jobID,
		"total", total,
		"succeeded", job.Succeeded,
		"failed", job.Failed,
		"duplicates", job.Duplicates,
		"duration", time.Since(start),
	)
	return job, nil
}

func (s *IngestService) lookup(ctx context.Context, u string) (int64, error) {
	if u == "" {
		return 0, nil
	}
	return s.articles.ExistsBySourceURL(ctx, u)
}

// store persists one successful scrape. A store failure turns the result into
// a failure rather than aborting the job.
func (s *IngestService) store(ctx context.Context, r domain.ScrapeResult, tags []string) IngestResult {
	out := IngestResult{ScrapeResult: r}
	if !r.Success || r.Data == nil {
		return out
	}

	// The same URL may appear twice in one job.
	if existing, err := s.articles.ExistsBySourceURL(ctx, r.URL); err == nil && existing > 0 {
		out.ArticleID = existing
		out.Duplicate = true
		return out
	}

	articleID, err := s.articles.Create(ctx, r.Data.ToNewArticle(tags))
	if err != nil {
		s.logger.Error("failed to store scraped article", "url", r.URL, "error", err)
		out.Success = false
		out.Stage = domain.StageFailed
		out.Error = err.Error()
		out.ErrorCode = string(apperr.CodeOf(err))
		return out
	}
	out.ArticleID = articleID

	if s.metrics != nil {
		s.metrics.IncArticlesStored()
	}
	if a, err := s.articles.GetByID(ctx, articleID); err == nil && a != nil {
		s.events.Emit(sse.NewArticleCreatedEvent(a))
	}
	return out
}
