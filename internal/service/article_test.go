package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/sse"
)

func TestArticleService_Lifecycle(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := NewArticleService(e.articles, e.events, e.logger)

	a, err := svc.Create(ctx, domain.NewArticle{Title: "Hello", Content: "World", Tags: []string{"greeting"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, a.Tags)

	title := "Hello again"
	updated, err := svc.Update(ctx, a.ID, domain.ArticleUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	read, err := svc.MarkRead(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, read.ReadCount)

	liked, err := svc.Like(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.LikeCount)

	fav, err := svc.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)

	archived, err := svc.ToggleArchive(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	require.NoError(t, svc.Delete(ctx, a.ID))

	_, err = svc.Get(ctx, a.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	assert.Len(t, e.events.ofType(sse.EventArticleCreated), 1)
	assert.Len(t, e.events.ofType(sse.EventArticleUpdated), 5)
	assert.Len(t, e.events.ofType(sse.EventArticleDeleted), 1)
}

func TestArticleService_Errors(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := NewArticleService(e.articles, nil, e.logger)

	_, err := svc.Create(ctx, domain.NewArticle{Title: "", Content: "x"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = svc.Update(ctx, 1, domain.ArticleUpdate{})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	title := "x"
	_, err = svc.Update(ctx, 999, domain.ArticleUpdate{Title: &title})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = svc.Like(ctx, 999)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.Delete(ctx, 999)))

	_, err = svc.DeleteBatch(ctx, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestArticleService_DeleteBatch(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := NewArticleService(e.articles, e.events, e.logger)

	a, err := svc.Create(ctx, domain.NewArticle{Title: "A", Content: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.NewArticle{Title: "B", Content: "b"})
	require.NoError(t, err)

	n, err := svc.DeleteBatch(ctx, []int64{a.ID, b.ID, 404})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted := e.events.ofType(sse.EventArticleDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, sse.ArticleDeletedEventData{IDs: []int64{a.ID, b.ID, 404}}, deleted[0].Data)
}

func TestTagService_MergeAndCleanup(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	articles := NewArticleService(e.articles, nil, e.logger)
	tags := NewTagService(e.tags, e.events, e.logger)

	_, err := articles.Create(ctx, domain.NewArticle{Title: "A", Content: "a", Tags: []string{"golang", "go"}})
	require.NoError(t, err)
	_, err = articles.Create(ctx, domain.NewArticle{Title: "B", Content: "b", Tags: []string{"golang"}})
	require.NoError(t, err)

	golang, err := e.tags.GetByName(ctx, "golang")
	require.NoError(t, err)
	goTag, err := e.tags.GetByName(ctx, "go")
	require.NoError(t, err)

	merged, err := tags.Merge(ctx, golang.ID, goTag.ID)
	require.NoError(t, err)
	assert.True(t, merged)

	target, err := tags.Get(ctx, goTag.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, target.ArticleCount)

	merged, err = tags.Merge(ctx, golang.ID, goTag.ID)
	require.NoError(t, err)
	assert.False(t, merged)

	_, err = tags.Merge(ctx, goTag.ID, goTag.ID)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	_, err = tags.Create(ctx, "unused", "", "")
	require.NoError(t, err)
	n, err := tags.CleanupUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Len(t, e.events.ofType(sse.EventTagMerged), 1)
	assert.Len(t, e.events.ofType(sse.EventTagCreated), 1)
}

func TestTagService_UpdateAndDelete(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	tags := NewTagService(e.tags, e.events, e.logger)

	a, err := tags.Create(ctx, "alpha", "", "first")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTagColor, a.Color)
	b, err := tags.Create(ctx, "beta", "#000000", "")
	require.NoError(t, err)

	_, err = tags.Create(ctx, "alpha", "", "")
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	_, err = tags.Rename(ctx, b.ID, "alpha")
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	renamed, err := tags.Rename(ctx, b.ID, "gamma")
	require.NoError(t, err)
	assert.Equal(t, "gamma", renamed.Name)

	_, err = tags.Update(ctx, 999, domain.TagUpdate{Name: &renamed.Name})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = tags.Related(ctx, 999, 5)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	require.NoError(t, tags.Delete(ctx, a.ID))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(tags.Delete(ctx, a.ID)))

	assert.Len(t, e.events.ofType(sse.EventTagUpdated), 1)
	assert.Len(t, e.events.ofType(sse.EventTagDeleted), 1)
}

func TestSearchService_MaintenanceEmits(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	articles := NewArticleService(e.articles, nil, e.logger)
	svc := NewSearchService(e.engine, e.events, e.logger)

	_, err := articles.Create(ctx, domain.NewArticle{Title: "Searchable words", Content: "body"})
	require.NoError(t, err)

	require.NoError(t, svc.Rebuild(ctx))
	require.NoError(t, svc.Optimize(ctx))
	require.NoError(t, svc.Verify(ctx))
	assert.Len(t, e.events.ofType(sse.EventIndexRebuilt), 2)

	page, err := svc.Search(ctx, search.Options{Query: "searchable"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, search.Stats{IndexedArticles: 1, TotalArticles: 1}, stats)
}
