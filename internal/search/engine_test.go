package search

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/store"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

type fixture struct {
	db       *sqlite.DB
	articles *sqlite.ArticleStore
	tags     *sqlite.TagGraph
	engine   *Engine
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupEngine opens a temporary store with the search index installed.
func setupEngine(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "search.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tags := sqlite.NewTagGraph(db)
	articles := sqlite.NewArticleStore(db, tags)
	engine, err := NewEngine(context.Background(), db, articles, nil)
	require.NoError(t, err)

	return &fixture{db: db, articles: articles, tags: tags, engine: engine}
}

func (f *fixture) add(t *testing.T, a domain.NewArticle) int64 {
	t.Helper()
	if a.Content == "" {
		a.Content = "Body of " + a.Title
	}
	id, err := f.articles.Create(context.Background(), a)
	require.NoError(t, err)
	return id
}

func resultIDs(results []Result) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func TestSearch_HighlightsTitleMatch(t *testing.T) {
	f := setupEngine(t)
	id := f.add(t, domain.NewArticle{Title: "hello world", Content: "an unrelated body", Tags: []string{"greeting"}})
	f.add(t, domain.NewArticle{Title: "goodbye", Content: "nothing to see"})

	page, err := f.engine.Search(context.Background(), Options{Query: "hello", Fields: []Field{FieldTitle}})
	require.NoError(t, err)

	require.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	got := page.Items[0]
	assert.Equal(t, id, got.ID)
	assert.Contains(t, got.Snippet, "<mark>hello</mark>")
	assert.Equal(t, []string{"greeting"}, got.Tags)
	assert.Equal(t, 1, page.TotalPages)
}

func TestSearch_PrefixMatch(t *testing.T) {
	f := setupEngine(t)
	id := f.add(t, domain.NewArticle{Title: "Concurrency patterns"})

	page, err := f.engine.Search(context.Background(), Options{Query: "concur"})
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, resultIDs(page.Items))
}

// unicode61 keeps an unbroken CJK run as one token, so only leading
// substrings of the run match.
func TestSearch_CJKRunIsSingleToken(t *testing.T) {
	f := setupEngine(t)
	id := f.add(t, domain.NewArticle{Title: "你好世界"})

	for _, q := range []string{"你好世界", "你好"} {
		page, err := f.engine.Search(context.Background(), Options{Query: q})
		require.NoError(t, err)
		assert.Equal(t, []int64{id}, resultIDs(page.Items), q)
	}

	page, err := f.engine.Search(context.Background(), Options{Query: "世界"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSearch_OrderingIsStable(t *testing.T) {
	f := setupEngine(t)
	for i := 0; i < 6; i++ {
		f.add(t, domain.NewArticle{Title: "database tuning", Content: "same words everywhere"})
	}
	f.add(t, domain.NewArticle{Title: "database", Content: "database database database"})

	opts := Options{Query: "database", Page: store.PageParams{PageSize: 100}}
	first, err := f.engine.Search(context.Background(), opts)
	require.NoError(t, err)
	second, err := f.engine.Search(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, first.Items, 7)
	assert.Equal(t, resultIDs(first.Items), resultIDs(second.Items))
	for i := 1; i < len(first.Items); i++ {
		assert.LessOrEqual(t, first.Items[i-1].Rank, first.Items[i].Rank, "best match first")
	}
}

func TestSearch_FiltersAndPagination(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tagged := f.add(t, domain.NewArticle{Title: "golang tips", Tags: []string{"go"}, PublicAccount: "gopher weekly"})
	f.add(t, domain.NewArticle{Title: "golang tricks", PublicAccount: "other"})
	f.add(t, domain.NewArticle{Title: "golang news", PublicAccount: "other"})

	page, err := f.engine.Search(ctx, Options{Query: "golang", Filter: store.ArticleFilter{Tag: "go"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{tagged}, resultIDs(page.Items))

	page, err = f.engine.Search(ctx, Options{Query: "golang", Filter: store.ArticleFilter{PublicAccount: "other"}})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = f.engine.Search(ctx, Options{Query: "golang", Page: store.PageParams{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)

	fav := true
	_, err = f.articles.ToggleFavorite(ctx, tagged)
	require.NoError(t, err)
	page, err = f.engine.Search(ctx, Options{Query: "golang", Filter: store.ArticleFilter{IsFavorite: &fav}})
	require.NoError(t, err)
	assert.Equal(t, []int64{tagged}, resultIDs(page.Items))
}

func TestSearch_EmptyQueryMatchesAll(t *testing.T) {
	f := setupEngine(t)
	first := f.add(t, domain.NewArticle{Title: "one"})
	second := f.add(t, domain.NewArticle{Title: "two"})

	page, err := f.engine.Search(context.Background(), Options{Query: "  ?? "})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.ElementsMatch(t, []int64{first, second}, resultIDs(page.Items))
}

func TestSearch_IndexFollowsWrites(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	id := f.add(t, domain.NewArticle{Title: "original heading"})

	newTitle := "renamed heading"
	ok, err := f.articles.Update(ctx, id, domain.ArticleUpdate{Title: &newTitle})
	require.NoError(t, err)
	require.True(t, ok)

	page, err := f.engine.Search(ctx, Options{Query: "original"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	page, err = f.engine.Search(ctx, Options{Query: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = f.articles.IncrementReadCount(ctx, id)
	require.NoError(t, err)

	ok, err = f.articles.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	page, err = f.engine.Search(ctx, Options{Query: "renamed"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	require.NoError(t, f.engine.Verify(ctx))
}

func TestAdvancedSearch(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	want := f.add(t, domain.NewArticle{Title: "rust ownership", Author: "jane doe", PublicAccount: "systems"})
	f.add(t, domain.NewArticle{Title: "rust ownership", Author: "john roe", PublicAccount: "systems"})
	f.add(t, domain.NewArticle{Title: "rust ownership", Author: "jane doe", PublicAccount: "elsewhere"})

	page, err := f.engine.AdvancedSearch(ctx, AdvancedQuery{Title: "rust", Author: "jane", Account: "systems"}, store.ArticleFilter{}, store.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, []int64{want}, resultIDs(page.Items))
}

func TestQuickSearch(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	inSummary := f.add(t, domain.NewArticle{Title: "weekly digest", Summary: "kubernetes operators"})
	f.add(t, domain.NewArticle{Title: "unrelated", Content: "kubernetes only in the body"})

	results, err := f.engine.QuickSearch(ctx, "kubernetes", 10)
	require.NoError(t, err)
	require.Equal(t, []int64{inSummary}, resultIDs(results))
	assert.Contains(t, results[0].Snippet, "<mark>kubernetes</mark>")

	results, err = f.engine.QuickSearch(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSuggest(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	f.add(t, domain.NewArticle{Title: "golang generics", Author: "gordon", Tags: []string{"gopher"}})
	f.add(t, domain.NewArticle{Title: "golang modules", Author: "gordon", Tags: []string{"gopher"}})
	f.add(t, domain.NewArticle{Title: "golang 100%", Author: "gordon", Tags: []string{"gopher"}})
	f.add(t, domain.NewArticle{Title: "unrelated", Author: "alice"})

	got, err := f.engine.Suggest(ctx, "go", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Suggestion{Text: "gordon", Count: 3, Type: SuggestAuthor}, got[0])
	assert.Equal(t, Suggestion{Text: "gopher", Count: 3, Type: SuggestTag}, got[1])

	got, err = f.engine.Suggest(ctx, "golang 100%", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SuggestTitle, got[0].Type)

	got, err = f.engine.Suggest(ctx, "%", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindSimilar(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	source := f.add(t, domain.NewArticle{Title: "Go concurrency patterns"})
	related := f.add(t, domain.NewArticle{Title: "Advanced concurrency in practice"})
	f.add(t, domain.NewArticle{Title: "Cooking pasta", Content: "water and salt"})

	results, err := f.engine.FindSimilar(ctx, source, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{related}, resultIDs(results))

	results, err = f.engine.FindSimilar(ctx, 9999, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHotKeywords(t *testing.T) {
	f := setupEngine(t)
	f.add(t, domain.NewArticle{Title: "Go generics explained"})
	f.add(t, domain.NewArticle{Title: "Go modules explained"})
	f.add(t, domain.NewArticle{Title: "Why go"})

	got, err := f.engine.HotKeywords(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []Keyword{{Keyword: "go", Count: 3}, {Keyword: "explained", Count: 2}}, got)
}

func TestMaintenanceAndStats(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	f.add(t, domain.NewArticle{Title: "first"})
	f.add(t, domain.NewArticle{Title: "second"})

	require.NoError(t, f.engine.Rebuild(ctx))
	require.NoError(t, f.engine.Optimize(ctx))
	require.NoError(t, f.engine.Verify(ctx))

	st, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{IndexedArticles: 2, TotalArticles: 2}, st)

	page, err := f.engine.Search(ctx, Options{Query: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestNewEngine_IndexesExistingArticles(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "existing.db"), quietLogger())
	require.NoError(t, err)
	defer db.Close()

	articles := sqlite.NewArticleStore(db, sqlite.NewTagGraph(db))
	_, err = articles.Create(ctx, domain.NewArticle{Title: "written before the index", Content: "body"})
	require.NoError(t, err)

	engine, err := NewEngine(ctx, db, articles, nil)
	require.NoError(t, err)

	page, err := engine.Search(ctx, Options{Query: "before"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	again, err := NewEngine(ctx, db, articles, nil)
	require.NoError(t, err)
	st, err := again.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.IndexedArticles)
}
