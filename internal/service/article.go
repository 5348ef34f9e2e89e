// Package service composes the scraper, the stores and the search engine into
// the operations exposed over HTTP and the CLI, and publishes change events.
package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// ArticleService orchestrates article CRUD, counters and flags.
type ArticleService struct {
	articles *sqlite.ArticleStore
	events   sse.Emitter
	logger   *slog.Logger
}

// NewArticleService creates a new article service. events may be nil.
func NewArticleService(articles *sqlite.ArticleStore, events sse.Emitter, logger *slog.Logger) *ArticleService {
	if events == nil {
		events = sse.Discard
	}
	return &ArticleService{
		articles: articles,
		events:   events,
		logger:   logger,
	}
}

// Create stores a manually supplied article with its tags.
func (s *ArticleService) Create(ctx context.Context, a domain.NewArticle) (*domain.Article, error) {
	id, err := s.articles.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.Emit(sse.NewArticleCreatedEvent(article))
	s.logger.Info("article created", "article_id", id, "tags", len(a.Tags))
	return article, nil
}

// Get returns an article or a NOT_FOUND error.
func (s *ArticleService) Get(ctx context.Context, id int64) (*domain.Article, error) {
	a, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFoundf("article %d not found", id)
	}
	return a, nil
}

// List returns one page of articles matching filter.
func (s *ArticleService) List(ctx context.Context, filter store.ArticleFilter, page store.PageParams, sort store.Sort) (store.Page[domain.Article], error) {
	return s.articles.Query(ctx, filter, page, sort)
}

// Update applies a partial update and returns the updated article.
func (s *ArticleService) Update(ctx context.Context, id int64, u domain.ArticleUpdate) (*domain.Article, error) {
	if u.IsEmpty() {
		return nil, apperr.Validation("no fields to update")
	}
	ok, err := s.articles.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFoundf("article %d not found", id)
	}
	return s.changed(ctx, id)
}

// Delete removes one article.
func (s *ArticleService) Delete(ctx context.Context, id int64) error {
	ok, err := s.articles.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFoundf("article %d not found", id)
	}

	s.events.Emit(sse.NewArticleDeletedEvent(id))
	s.logger.Info("article deleted", "article_id", id)
	return nil
}

// DeleteBatch removes every listed article atomically and returns how many
// existed.
func (s *ArticleService) DeleteBatch(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("ids must not be empty")
	}
	n, err := s.articles.DeleteBatch(ctx, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.Emit(sse.NewArticleDeletedEvent(ids...))
	}
	s.logger.Info("articles deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

// MarkRead increments the read counter.
func (s *ArticleService) MarkRead(ctx context.Context, id int64) (*domain.Article, error) {
	return s.mutate(ctx, id, s.articles.IncrementReadCount)
}

// Like increments the like counter.
func (s *ArticleService) Like(ctx context.Context, id int64) (*domain.Article, error) {
	return s.mutate(ctx, id, s.articles.IncrementLikeCount)
}

// ToggleFavorite flips the favorite flag.
func (s *ArticleService) ToggleFavorite(ctx context.Context, id int64) (*domain.Article, error) {
	return s.mutate(ctx, id, s.articles.ToggleFavorite)
}

// ToggleArchive flips the archived flag.
func (s *ArticleService) ToggleArchive(ctx context.Context, id int64) (*domain.Article, error) {
	return s.mutate(ctx, id, s.articles.ToggleArchive)
}

func (s *ArticleService) mutate(ctx context.Context, id int64, op func(context.Context, int64) (bool, error)) (*domain.Article, error) {
	ok, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFoundf("article %d not found", id)
	}
	return s.changed(ctx, id)
}

// changed re-reads an article after a write and announces it.
func (s *ArticleService) changed(ctx context.Context, id int64) (*domain.Article, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewArticleUpdatedEvent(a))
	return a, nil
}

// Stats returns library-wide counters.
func (s *ArticleService) Stats(ctx context.Context) (domain.ArticleStats, error) {
	return s.articles.Stats(ctx)
}

// PublicAccounts lists account labels by article count.
func (s *ArticleService) PublicAccounts(ctx context.Context) ([]domain.NameCount, error) {
	return s.articles.PublicAccounts(ctx)
}

// Authors lists authors by article count.
func (s *ArticleService) Authors(ctx context.Context) ([]domain.NameCount, error) {
	return s.articles.Authors(ctx)
}
