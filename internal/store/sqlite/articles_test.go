package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	domainerrors "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestArticleStore_CreateAndGet(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	publish := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	id, err := s.Create(ctx, domain.NewArticle{
		Title:         "Hello 世界",
		Author:        "Alice",
		Content:       "Line one\nLine two",
		HTMLContent:   "<p>Line one</p><p>Line two</p>",
		Summary:       "Line one Line two",
		CoverImage:    "https://example.com/cover.jpg",
		SourceURL:     "https://mp.weixin.qq.com/s/abc",
		PublicAccount: "Daily Go",
		PublishTime:   &publish,
		Tags:          []string{"go", "db"},
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Hello 世界", got.Title)
	assert.Equal(t, "Line one\nLine two", got.Content)
	assert.Equal(t, "Alice", got.Author)
	assert.Equal(t, "Daily Go", got.PublicAccount)
	require.NotNil(t, got.PublishTime)
	assert.True(t, publish.Equal(*got.PublishTime))
	assert.Equal(t, []string{"db", "go"}, got.Tags)
	assert.Zero(t, got.ReadCount)
	assert.False(t, got.IsFavorite)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestArticleStore_GetMissing(t *testing.T) {
	s, _ := newTestStores(t)

	got, err := s.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArticleStore_CreateValidation(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		article domain.NewArticle
	}{
		{"empty title", domain.NewArticle{Title: "  ", Content: "body"}},
		{"empty content", domain.NewArticle{Title: "title", Content: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.article)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
}

func TestArticleStore_CreateRollsBackNewTags(t *testing.T) {
	s, tags := newTestStores(t)
	ctx := context.Background()

	long := strings.Repeat("x", domain.MaxTagNameLength+1)

	_, err := s.Create(ctx, domain.NewArticle{
		Title:   "rolled back",
		Content: "body",
		Tags:    []string{"fresh", long},
	})
	require.Error(t, err)

	fresh, err := tags.GetByName(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, fresh, "tag created inside a failed create must be rolled back")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
}

func TestArticleStore_CreateBatch(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	ids, err := s.CreateBatch(ctx, []domain.NewArticle{
		{Title: "one", Content: "1", Tags: []string{"a"}},
		{Title: "two", Content: "2", Tags: []string{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
}

func TestArticleStore_CreateBatchAllOrNothing(t *testing.T) {
	s, tags := newTestStores(t)
	ctx := context.Background()

	long := strings.Repeat("y", domain.MaxTagNameLength+1)

	_, err := s.CreateBatch(ctx, []domain.NewArticle{
		{Title: "one", Content: "1", Tags: []string{"kept-out"}},
		{Title: "two", Content: "2", Tags: []string{long}},
	})
	require.Error(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)

	tag, err := tags.GetByName(ctx, "kept-out")
	require.NoError(t, err)
	assert.Nil(t, tag)
}

func TestArticleStore_QueryByTag(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	id := createArticle(t, s, "tagged", "a", "b")
	createArticle(t, s, "other", "b")

	page, err := s.Query(ctx, store.ArticleFilter{Tag: "a"}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)
	assert.Equal(t, []string{"a", "b"}, page.Items[0].Tags)
	assert.Equal(t, 1, page.Total)

	page, err = s.Query(ctx, store.ArticleFilter{Tag: "c"}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)

	page, err = s.Query(ctx, store.ArticleFilter{Tag: "b"}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "tag filter must not duplicate rows")
}

func TestArticleStore_QueryFiltersAndPagination(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	for i := range 5 {
		_, err := s.Create(ctx, domain.NewArticle{
			Title:         "article",
			Content:       "body",
			Author:        []string{"ann", "bob"}[i%2],
			PublicAccount: "acct",
		})
		require.NoError(t, err)
	}

	page, err := s.Query(ctx, store.ArticleFilter{Author: "ann"}, store.PageParams{Page: 1, PageSize: 2}, store.Sort{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)

	page, err = s.Query(ctx, store.ArticleFilter{Author: "ann"}, store.PageParams{Page: 2, PageSize: 2}, store.Sort{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = s.Query(ctx, store.ArticleFilter{}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Items, 5)
	for i := 1; i < len(page.Items); i++ {
		assert.Greater(t, page.Items[i-1].ID, page.Items[i].ID, "default order is newest first")
	}
}

func TestArticleStore_QueryFlags(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	fav := createArticle(t, s, "fav")
	createArticle(t, s, "plain")

	state, err := s.ToggleFavorite(ctx, fav)
	require.NoError(t, err)
	assert.True(t, state)

	page, err := s.Query(ctx, store.ArticleFilter{IsFavorite: ptr(true)}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, fav, page.Items[0].ID)

	page, err = s.Query(ctx, store.ArticleFilter{IsFavorite: ptr(false)}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestArticleStore_SortAllowList(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	a := createArticle(t, s, "a")
	b := createArticle(t, s, "b")
	_, err := s.IncrementReadCount(ctx, a)
	require.NoError(t, err)

	page, err := s.Query(ctx, store.ArticleFilter{}, store.PageParams{}, store.ParseSort("read_count", "desc"))
	require.NoError(t, err)
	assert.Equal(t, a, page.Items[0].ID)

	page, err = s.Query(ctx, store.ArticleFilter{}, store.PageParams{}, store.ParseSort("title; DROP TABLE articles", "asc"))
	require.NoError(t, err)
	assert.Equal(t, a, page.Items[0].ID, "unknown sort field falls back to created_at")
	assert.Equal(t, b, page.Items[1].ID)
}

func TestArticleStore_UpdatePartial(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	id := createArticle(t, s, "original", "x")

	ok, err := s.Update(ctx, id, domain.ArticleUpdate{Author: ptr("Bob")})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title, "unspecified fields are untouched")
	assert.Equal(t, "Bob", got.Author)
	assert.Equal(t, []string{"x"}, got.Tags, "tags untouched without a tag list")
}

func TestArticleStore_UpdateReplacesTags(t *testing.T) {
	s, tags := newTestStores(t)
	ctx := context.Background()

	id := createArticle(t, s, "tagged")

	ok, err := s.Update(ctx, id, domain.ArticleUpdate{Tags: []string{"x", "y"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Update(ctx, id, domain.ArticleUpdate{Tags: []string{"x"}})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)

	y, err := tags.GetByName(ctx, "y")
	require.NoError(t, err)
	require.NotNil(t, y)
	assert.Zero(t, y.ArticleCount)

	ok, err = s.Update(ctx, id, domain.ArticleUpdate{Tags: []string{}})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestArticleStore_UpdateNoop(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	id := createArticle(t, s, "same")

	ok, err := s.Update(ctx, id, domain.ArticleUpdate{})
	require.NoError(t, err)
	assert.False(t, ok, "empty update is a no-op")

	ok, err = s.Update(ctx, 9999, domain.ArticleUpdate{Title: ptr("new")})
	require.NoError(t, err)
	assert.False(t, ok, "missing article")

	ok, err = s.Update(ctx, 9999, domain.ArticleUpdate{Tags: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, ok, "missing article with tags only")

	_, err = s.Update(ctx, id, domain.ArticleUpdate{Title: ptr("")})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestArticleStore_DeleteBatchCountsActualRows(t *testing.T) {
	s, tags := newTestStores(t)
	ctx := context.Background()

	id1 := createArticle(t, s, "one", "shared")
	id2 := createArticle(t, s, "two", "shared")

	ok, err := s.Delete(ctx, id2)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.DeleteBatch(ctx, []int64{id1, id2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	shared, err := tags.GetByName(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, shared)
	assert.Zero(t, shared.ArticleCount)

	assoc, err := tags.CountAssociations(ctx, shared.ID)
	require.NoError(t, err)
	assert.Zero(t, assoc)
}

func TestArticleStore_CountersAndToggles(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	id := createArticle(t, s, "counted")

	for range 3 {
		ok, err := s.IncrementReadCount(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.IncrementLikeCount(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IncrementReadCount(ctx, 777)
	require.NoError(t, err)
	assert.False(t, ok)

	archived, err := s.ToggleArchive(ctx, id)
	require.NoError(t, err)
	assert.True(t, archived)
	archived, err = s.ToggleArchive(ctx, id)
	require.NoError(t, err)
	assert.False(t, archived)

	_, err = s.ToggleFavorite(ctx, 777)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ReadCount)
	assert.Equal(t, 1, got.LikeCount)
}

func TestArticleStore_Aggregates(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	for _, a := range []domain.NewArticle{
		{Title: "1", Content: "c", Author: "ann", PublicAccount: "alpha"},
		{Title: "2", Content: "c", Author: "ann", PublicAccount: "beta"},
		{Title: "3", Content: "c", Author: "bob", PublicAccount: "alpha"},
		{Title: "4", Content: "c", PublicAccount: "alpha"},
	} {
		_, err := s.Create(ctx, a)
		require.NoError(t, err)
	}

	accounts, err := s.PublicAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.NameCount{{Name: "alpha", Count: 3}, {Name: "beta", Count: 1}}, accounts)

	authors, err := s.Authors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.NameCount{{Name: "ann", Count: 2}, {Name: "bob", Count: 1}}, authors)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
}

func TestArticleStore_ExistsBySourceURL(t *testing.T) {
	s, _ := newTestStores(t)
	ctx := context.Background()

	id, err := s.Create(ctx, domain.NewArticle{Title: "t", Content: "c", SourceURL: "https://mp.weixin.qq.com/s/x"})
	require.NoError(t, err)

	got, err := s.ExistsBySourceURL(ctx, "https://mp.weixin.qq.com/s/x")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = s.ExistsBySourceURL(ctx, "https://mp.weixin.qq.com/s/y")
	require.NoError(t, err)
	assert.Zero(t, got)
}
