package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// TagService orchestrates tag identity, merging and article tagging.
type TagService struct {
	tags   *sqlite.TagGraph
	events sse.Emitter
	logger *slog.Logger
}

// NewTagService creates a new tag service. events may be nil.
func NewTagService(tags *sqlite.TagGraph, events sse.Emitter, logger *slog.Logger) *TagService {
	if events == nil {
		events = sse.Discard
	}
	return &TagService{
		tags:   tags,
		events: events,
		logger: logger,
	}
}

// List returns every tag in the requested order.
func (s *TagService) List(ctx context.Context, sort sqlite.TagSort) ([]domain.Tag, error) {
	return s.tags.List(ctx, sort)
}

// Get returns a tag or a NOT_FOUND error.
func (s *TagService) Get(ctx context.Context, id int64) (*domain.Tag, error) {
	t, err := s.tags.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFoundf("tag %d not found", id)
	}
	return t, nil
}

// Create adds a tag. A taken name is an ALREADY_EXISTS error.
func (s *TagService) Create(ctx context.Context, name, color, description string) (*domain.Tag, error) {
	t, err := s.tags.Create(ctx, name, color, description)
	if err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewTagCreatedEvent(t))
	s.logger.Info("tag created", "tag_id", t.ID, "name", t.Name)
	return t, nil
}

// Update applies a partial update. Renaming onto another tag's name is a
// CONFLICT error.
func (s *TagService) Update(ctx context.Context, id int64, u domain.TagUpdate) (*domain.Tag, error) {
	if u.Name == nil && u.Color == nil && u.Description == nil {
		return nil, apperr.Validation("no fields to update")
	}
	ok, err := s.tags.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFoundf("tag %d not found", id)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewTagUpdatedEvent(t))
	return t, nil
}

// Rename changes a tag's name.
func (s *TagService) Rename(ctx context.Context, id int64, name string) (*domain.Tag, error) {
	return s.Update(ctx, id, domain.TagUpdate{Name: &name})
}

// Delete removes a tag and its associations.
func (s *TagService) Delete(ctx context.Context, id int64) error {
	ok, err := s.tags.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFoundf("tag %d not found", id)
	}
	s.events.Emit(sse.NewTagDeletedEvent(id))
	s.logger.Info("tag deleted", "tag_id", id)
	return nil
}

// DeleteBatch removes every listed tag atomically.
func (s *TagService) DeleteBatch(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("ids must not be empty")
	}
	n, err := s.tags.DeleteBatch(ctx, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.Emit(sse.NewTagDeletedEvent(ids...))
	}
	return n, nil
}

// Merge folds source into target. It returns false, without error, when
// source no longer exists.
func (s *TagService) Merge(ctx context.Context, sourceID, targetID int64) (bool, error) {
	merged, err := s.tags.Merge(ctx, sourceID, targetID)
	if err != nil {
		return false, err
	}
	if merged {
		s.events.Emit(sse.NewTagMergedEvent(sourceID, targetID))
		s.logger.Info("tags merged", "source_id", sourceID, "target_id", targetID)
	}
	return merged, nil
}

// CleanupUnused deletes tags with no articles.
func (s *TagService) CleanupUnused(ctx context.Context) (int, error) {
	n, err := s.tags.CleanupUnused(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("unused tags removed", "count", n)
	}
	return n, nil
}

// Related returns tags co-occurring with id.
func (s *TagService) Related(ctx context.Context, id int64, limit int) ([]domain.RelatedTag, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.tags.Related(ctx, id, limit)
}

// Popular returns the most used tags.
func (s *TagService) Popular(ctx context.Context, limit int) ([]domain.Tag, error) {
	return s.tags.Popular(ctx, limit)
}

// Cloud returns every tag in use.
func (s *TagService) Cloud(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.Cloud(ctx)
}

// Search matches keyword against tag names and descriptions.
func (s *TagService) Search(ctx context.Context, keyword string, limit int) ([]domain.Tag, error) {
	return s.tags.Search(ctx, keyword, limit)
}

// Stats summarizes tag usage.
func (s *TagService) Stats(ctx context.Context) (domain.TagStats, error) {
	return s.tags.Stats(ctx)
}

// ArticleTags returns the tags of one article.
func (s *TagService) ArticleTags(ctx context.Context, articleID int64) ([]domain.Tag, error) {
	return s.tags.ArticleTags(ctx, articleID)
}

// Recount repairs drifted article counters and returns how many were fixed.
func (s *TagService) Recount(ctx context.Context) (int, error) {
	n, err := s.tags.Recount(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("tag counters repaired", "count", n)
	}
	return n, nil
}
