package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store"
)

// SearchService wraps the search engine and announces index maintenance.
// Concurrent requests for the same maintenance operation share one run.
type SearchService struct {
	engine *search.Engine
	events sse.Emitter
	logger *slog.Logger

	maintenance singleflight.Group
}

// NewSearchService creates a new search service. events may be nil.
func NewSearchService(engine *search.Engine, events sse.Emitter, logger *slog.Logger) *SearchService {
	if events == nil {
		events = sse.Discard
	}
	return &SearchService{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// Search runs a ranked query.
func (s *SearchService) Search(ctx context.Context, opts search.Options) (store.Page[search.Result], error) {
	start := time.Now()
	page, err := s.engine.Search(ctx, opts)
	if err != nil {
		return page, err
	}
	s.logger.Debug("search",
		"query", opts.Query,
		"total", page.Total,
		"duration", time.Since(start),
	)
	return page, nil
}

// Advanced runs a field-scoped query.
func (s *SearchService) Advanced(ctx context.Context, q search.AdvancedQuery, filter store.ArticleFilter, page store.PageParams) (store.Page[search.Result], error) {
	return s.engine.AdvancedSearch(ctx, q, filter, page)
}

// Quick is the autocomplete lookup.
func (s *SearchService) Quick(ctx context.Context, text string, limit int) ([]search.Result, error) {
	return s.engine.QuickSearch(ctx, text, limit)
}

// Suggest returns prefix completions.
func (s *SearchService) Suggest(ctx context.Context, prefix string, limit int) ([]search.Suggestion, error) {
	return s.engine.Suggest(ctx, prefix, limit)
}

// Similar returns articles sharing title keywords with id.
func (s *SearchService) Similar(ctx context.Context, id int64, limit int) ([]search.Result, error) {
	return s.engine.FindSimilar(ctx, id, limit)
}

// HotKeywords returns the most frequent recent title terms.
func (s *SearchService) HotKeywords(ctx context.Context, limit int) ([]search.Keyword, error) {
	return s.engine.HotKeywords(ctx, limit)
}

// Stats reports index coverage.
func (s *SearchService) Stats(ctx context.Context) (search.Stats, error) {
	return s.engine.Stats(ctx)
}

// Rebuild regenerates the index from the articles table.
func (s *SearchService) Rebuild(ctx context.Context) error {
	return s.maintain(ctx, "rebuild", s.engine.Rebuild)
}

// Optimize merges index segments.
func (s *SearchService) Optimize(ctx context.Context) error {
	return s.maintain(ctx, "optimize", s.engine.Optimize)
}

// Verify runs the index integrity check.
func (s *SearchService) Verify(ctx context.Context) error {
	return s.engine.Verify(ctx)
}

func (s *SearchService) maintain(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err, shared := s.maintenance.Do(op, func() (any, error) {
		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error("search index maintenance failed", "operation", op, "error", err)
			return nil, err
		}
		s.events.Emit(sse.NewIndexRebuiltEvent(op))
		s.logger.Info("search index maintenance finished", "operation", op, "duration", time.Since(start))
		return nil, nil
	})
	if shared {
		s.logger.Debug("search index maintenance joined a running operation", "operation", op)
	}
	return err
}
