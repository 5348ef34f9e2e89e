package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/scraper"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// recorder is an sse.Emitter that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeScraper returns canned results keyed by URL and records what it saw.
type fakeScraper struct {
	results map[string]domain.ScrapeResult
	seen    []string
}

func (f *fakeScraper) ScrapeBatch(_ context.Context, urls []string, progress scraper.ProgressFunc) []domain.ScrapeResult {
	out := make([]domain.ScrapeResult, len(urls))
	for i, u := range urls {
		f.seen = append(f.seen, u)
		progress(domain.ScrapeProgress{Current: i, Total: len(urls), CurrentItem: u, Status: domain.ProgressProcessing})
		r, ok := f.results[u]
		if !ok {
			r = domain.ScrapeResult{URL: u, Stage: domain.StageFailed, FailedAt: domain.StageFetching, Error: "HTTP 404"}
		}
		out[i] = r
		status := domain.ProgressCompleted
		if !r.Success {
			status = domain.ProgressError
		}
		progress(domain.ScrapeProgress{Current: i + 1, Total: len(urls), CurrentItem: u, Status: status})
	}
	return out
}

func okResult(url, title string) domain.ScrapeResult {
	return domain.ScrapeResult{
		URL:     url,
		Success: true,
		Stage:   domain.StageSuccess,
		Data: &domain.ArticleData{
			Title:     title,
			Author:    "author",
			Content:   "content of " + title,
			Summary:   "summary",
			SourceURL: url,
		},
	}
}

type env struct {
	db       *sqlite.DB
	articles *sqlite.ArticleStore
	tags     *sqlite.TagGraph
	engine   *search.Engine
	events   *recorder
	logger   *slog.Logger
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tags := sqlite.NewTagGraph(db)
	articles := sqlite.NewArticleStore(db, tags)
	engine, err := search.NewEngine(context.Background(), db, articles, logger)
	require.NoError(t, err)

	return &env{db: db, articles: articles, tags: tags, engine: engine, events: &recorder{}, logger: logger}
}
