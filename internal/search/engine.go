// Package search provides relevance-ranked full-text search over stored
// articles, backed by an SQLite FTS5 index that triggers keep in step with
// the articles table.
package search

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/listenupapp/articlevault/internal/domain"
	domainerrors "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	highlightOpen  = "<mark>"
	highlightClose = "</mark>"
	ellipsis       = "..."

	searchSnippetTokens = 50
	quickSnippetTokens  = 30

	// hotKeywordWindow is how many recent titles HotKeywords reads.
	hotKeywordWindow = 200
)

// TagAttacher fills in the current tag names of articles.
type TagAttacher interface {
	AttachTags(ctx context.Context, articles []domain.Article) error
}

// Engine answers full-text queries. It owns the articles_fts index and its
// triggers; everything else about articles belongs to the store.
//
// Thread safety: all methods are safe for concurrent use. Maintenance writes
// go through the store's single-writer transaction.
type Engine struct {
	db       *sqlite.DB
	tags     TagAttacher
	keywords *KeywordExtractor
	logger   *slog.Logger
}

// NewEngine installs the index on db if needed and returns an engine. When
// the index is created over a table that already holds articles, it is
// rebuilt so existing rows become searchable.
func NewEngine(ctx context.Context, db *sqlite.DB, tags TagAttacher, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = db.Logger()
	}

	keywords, err := NewKeywordExtractor()
	if err != nil {
		return nil, err
	}

	var created bool
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'articles_fts'`).Scan(&n); err != nil {
			return fmt.Errorf("check search index: %w", err)
		}
		created = n == 0

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("install search index: %w", err)
		}
		if created {
			if _, err := tx.ExecContext(ctx, `INSERT INTO articles_fts(articles_fts) VALUES('rebuild')`); err != nil {
				return fmt.Errorf("populate search index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		logger.Info("search index created")
	}

	return &Engine{
		db:       db,
		tags:     tags,
		keywords: keywords,
		logger:   logger,
	}, nil
}

// Options describes a search request.
type Options struct {
	Query  string
	Fields []Field
	Filter store.ArticleFilter
	Page   store.PageParams
}

// Result is an article with its highlighted snippet and relevance rank.
// Lower ranks are more relevant.
type Result struct {
	domain.Article
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

// Search runs a ranked full-text query combined with structured filters.
// Results are ordered best first, ties broken by id, so identical requests
// over unchanged data always return the same order. A query with no usable
// terms matches every article, newest first.
func (e *Engine) Search(ctx context.Context, opts Options) (store.Page[Result], error) {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	return e.run(ctx, BuildQuery(opts.Query, fields...), opts.Filter, opts.Page, searchSnippetTokens)
}

// AdvancedQuery scopes terms to individual fields. Every non-empty field must
// match; Account is an exact match on the account label.
type AdvancedQuery struct {
	Title   string
	Author  string
	Content string
	Account string
}

// AdvancedSearch requires each supplied field to contain all of its terms.
func (e *Engine) AdvancedSearch(ctx context.Context, q AdvancedQuery, filter store.ArticleFilter, page store.PageParams) (store.Page[Result], error) {
	var parts []string
	for _, p := range []struct {
		field Field
		text  string
	}{
		{FieldTitle, q.Title},
		{FieldAuthor, q.Author},
		{FieldContent, q.Content},
	} {
		if clause := buildConjunction(p.field, p.text); clause != "" {
			parts = append(parts, clause)
		}
	}
	if q.Account != "" {
		filter.PublicAccount = q.Account
	}

	match := MatchAll
	if len(parts) > 0 {
		match = strings.Join(parts, " AND ")
	}
	return e.run(ctx, match, filter, page, searchSnippetTokens)
}

func (e *Engine) run(ctx context.Context, match string, filter store.ArticleFilter, page store.PageParams, snippetTokens int) (store.Page[Result], error) {
	page.Normalize()
	conds, args := filter.Predicates("a")

	if match == MatchAll {
		return e.listAll(ctx, conds, args, page)
	}

	where := ` WHERE articles_fts MATCH ?`
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}
	args = append([]any{match}, args...)

	var total int
	if err := e.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles_fts JOIN articles a ON a.id = articles_fts.rowid`+where,
		args...).Scan(&total); err != nil {
		return store.Page[Result]{}, fmt.Errorf("count search results: %w", err)
	}

	rows, err := e.db.SQL().QueryContext(ctx, `
		SELECT `+sqlite.ArticleColumns+`,
			snippet(articles_fts, -1, ?, ?, ?, ?) AS snippet,
			bm25(articles_fts) AS score
		FROM articles_fts
		JOIN articles a ON a.id = articles_fts.rowid`+where+`
		ORDER BY score ASC, a.id ASC
		LIMIT ? OFFSET ?`,
		append(append([]any{highlightOpen, highlightClose, ellipsis, snippetTokens}, args...),
			page.PageSize, page.Offset())...)
	if err != nil {
		return store.Page[Result]{}, fmt.Errorf("search: %w", err)
	}

	items, err := e.scanResults(ctx, rows, true)
	if err != nil {
		return store.Page[Result]{}, err
	}
	return store.NewPage(items, total, page), nil
}

// listAll serves match-all queries from the articles table directly.
func (e *Engine) listAll(ctx context.Context, conds []string, args []any, page store.PageParams) (store.Page[Result], error) {
	where := store.Where(conds)

	var total int
	if err := e.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a`+where, args...).Scan(&total); err != nil {
		return store.Page[Result]{}, fmt.Errorf("count articles: %w", err)
	}

	rows, err := e.db.SQL().QueryContext(ctx,
		`SELECT `+sqlite.ArticleColumns+` FROM articles a`+where+
			store.Sort{Field: store.SortCreatedAt, Order: store.OrderDesc}.OrderBy("a")+` LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return store.Page[Result]{}, fmt.Errorf("list articles: %w", err)
	}

	items, err := e.scanResults(ctx, rows, false)
	if err != nil {
		return store.Page[Result]{}, err
	}
	return store.NewPage(items, total, page), nil
}

// scanResults reads result rows, closes them and attaches tags. ranked rows
// carry trailing snippet and rank columns.
func (e *Engine) scanResults(ctx context.Context, rows *sql.Rows, ranked bool) ([]Result, error) {
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var (
			r       Result
			snippet sql.NullString
		)
		scan := func(dest ...any) error {
			if ranked {
				dest = append(dest, &snippet, &r.Rank)
			}
			return rows.Scan(dest...)
		}
		a, err := sqlite.ScanArticle(scanFunc(scan))
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Article = *a
		r.Snippet = snippet.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(results) > 0 && e.tags != nil {
		articles := make([]domain.Article, len(results))
		for i := range results {
			articles[i] = results[i].Article
		}
		if err := e.tags.AttachTags(ctx, articles); err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Tags = articles[i].Tags
		}
	}
	return results, nil
}

// scanFunc adapts a function to the Scan interface ScanArticle expects.
type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// QuickSearch is a narrow title+summary lookup for autocomplete.
func (e *Engine) QuickSearch(ctx context.Context, text string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	match := BuildQuery(text, FieldTitle, FieldSummary)
	if match == MatchAll {
		return []Result{}, nil
	}

	rows, err := e.db.SQL().QueryContext(ctx, `
		SELECT `+sqlite.ArticleColumns+`,
			snippet(articles_fts, -1, ?, ?, ?, ?) AS snippet,
			bm25(articles_fts) AS score
		FROM articles_fts
		JOIN articles a ON a.id = articles_fts.rowid
		WHERE articles_fts MATCH ?
		ORDER BY score ASC, a.id ASC
		LIMIT ?`,
		highlightOpen, highlightClose, ellipsis, quickSnippetTokens, match, limit)
	if err != nil {
		return nil, fmt.Errorf("quick search: %w", err)
	}
	return e.scanResults(ctx, rows, true)
}

// SuggestionType names the facet a suggestion came from.
type SuggestionType string

// Suggestion facets.
const (
	SuggestTitle   SuggestionType = "title"
	SuggestAuthor  SuggestionType = "author"
	SuggestAccount SuggestionType = "account"
	SuggestTag     SuggestionType = "tag"
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Text  string         `json:"text"`
	Count int            `json:"count"`
	Type  SuggestionType `json:"type"`
}

// Suggest returns prefix matches from titles, authors, account labels and tag
// names. Each facet contributes at most limit candidates; the union is sorted
// by count and cut to limit, so one busy facet can fill the whole list.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = 5
	}
	pattern := escapeLike(prefix) + "%"

	facets := []struct {
		kind  SuggestionType
		query string
	}{
		{SuggestTitle, `SELECT title, COUNT(*) AS n FROM articles
			WHERE title LIKE ? ESCAPE '\' GROUP BY title ORDER BY n DESC, title ASC LIMIT ?`},
		{SuggestAuthor, `SELECT author, COUNT(*) AS n FROM articles
			WHERE author LIKE ? ESCAPE '\' GROUP BY author ORDER BY n DESC, author ASC LIMIT ?`},
		{SuggestAccount, `SELECT public_account, COUNT(*) AS n FROM articles
			WHERE public_account LIKE ? ESCAPE '\' GROUP BY public_account ORDER BY n DESC, public_account ASC LIMIT ?`},
		{SuggestTag, `SELECT name, article_count FROM tags
			WHERE name LIKE ? ESCAPE '\' ORDER BY article_count DESC, name ASC LIMIT ?`},
	}

	suggestions := []Suggestion{}
	for _, f := range facets {
		rows, err := e.db.SQL().QueryContext(ctx, f.query, pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("suggest %s: %w", f.kind, err)
		}
		for rows.Next() {
			s := Suggestion{Type: f.kind}
			if err := rows.Scan(&s.Text, &s.Count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s suggestion: %w", f.kind, err)
			}
			suggestions = append(suggestions, s)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Count > suggestions[j].Count
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// FindSimilar returns articles sharing words with the title of articleID,
// excluding the article itself. A missing article or a title with no usable
// words yields an empty list.
func (e *Engine) FindSimilar(ctx context.Context, articleID int64, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	var title string
	err := e.db.SQL().QueryRowContext(ctx, `SELECT title FROM articles WHERE id = ?`, articleID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return []Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load article %d: %w", articleID, err)
	}

	var terms []string
	for _, kw := range e.keywords.TitleKeywords(title, similarKeywordLimit) {
		terms = append(terms, Terms(kw)...)
	}
	if len(terms) == 0 {
		return []Result{}, nil
	}

	rows, err := e.db.SQL().QueryContext(ctx, `
		SELECT `+sqlite.ArticleColumns+`,
			'' AS snippet,
			bm25(articles_fts) AS score
		FROM articles_fts
		JOIN articles a ON a.id = articles_fts.rowid
		WHERE articles_fts MATCH ? AND a.id != ?
		ORDER BY score ASC, a.id ASC
		LIMIT ?`, anyOf(terms), articleID, limit)
	if err != nil {
		return nil, fmt.Errorf("find similar to %d: %w", articleID, err)
	}
	return e.scanResults(ctx, rows, true)
}

// HotKeywords returns the most frequent words across recent titles.
func (e *Engine) HotKeywords(ctx context.Context, limit int) ([]Keyword, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := e.db.SQL().QueryContext(ctx,
		`SELECT title FROM articles ORDER BY created_at DESC, id DESC LIMIT ?`, hotKeywordWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return e.keywords.Count(titles, limit), nil
}

// Rebuild reconstructs the index from the articles table.
func (e *Engine) Rebuild(ctx context.Context) error {
	if err := e.command(ctx, "rebuild"); err != nil {
		return err
	}
	e.logger.Info("search index rebuilt")
	return nil
}

// Optimize merges index segments. Results are unchanged.
func (e *Engine) Optimize(ctx context.Context) error {
	if err := e.command(ctx, "optimize"); err != nil {
		return err
	}
	e.logger.Info("search index optimized")
	return nil
}

func (e *Engine) command(ctx context.Context, cmd string) error {
	return e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO articles_fts(articles_fts) VALUES(?)`, cmd); err != nil {
			return fmt.Errorf("search index %s: %w", cmd, err)
		}
		return nil
	})
}

// Verify checks the index against the articles table. A mismatch is an
// INTERNAL error; Rebuild repairs it.
func (e *Engine) Verify(ctx context.Context) error {
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO articles_fts(articles_fts, rank) VALUES('integrity-check', 1)`)
		return err
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "search index integrity check failed")
	}
	return nil
}

// Stats reports index coverage.
type Stats struct {
	IndexedArticles int `json:"indexed_articles"`
	TotalArticles   int `json:"total_articles"`
}

// Stats counts indexed and stored articles.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := e.db.SQL().QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM articles_fts_docsize),
			(SELECT COUNT(*) FROM articles)`).Scan(&s.IndexedArticles, &s.TotalArticles)
	if err != nil {
		return s, fmt.Errorf("search stats: %w", err)
	}
	return s, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
