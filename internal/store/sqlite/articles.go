package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/domain"
	domainerrors "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
)

// ArticleColumns is the ordered column list read by ScanArticle, for the
// articles table aliased as a.
const ArticleColumns = `a.id, a.title, a.author, a.content, a.html_content, a.summary, a.cover_image,
	a.source_url, a.public_account, a.publish_time, a.read_count, a.like_count,
	a.is_favorite, a.is_archived, a.created_at, a.updated_at`

// ArticleStore owns the articles table. Tag resolution and every association
// change are delegated to the TagResolver it was built with.
type ArticleStore struct {
	db     *DB
	tags   store.TagResolver
	logger *slog.Logger
	now    func() time.Time
}

// NewArticleStore creates an article store on db using tags for tag identity.
func NewArticleStore(db *DB, tags store.TagResolver) *ArticleStore {
	return &ArticleStore{
		db:     db,
		tags:   tags,
		logger: db.logger,
		now:    time.Now,
	}
}

// ScanArticle scans an article row from any scanner (sql.Row or sql.Rows).
func ScanArticle(scanner interface{ Scan(dest ...any) error }) (*domain.Article, error) {
	var (
		a                                                domain.Article
		author, html, summary, cover, sourceURL, account sql.NullString
		publishTime                                      sql.NullInt64
		createdAt, updatedAt                             int64
	)
	err := scanner.Scan(
		&a.ID, &a.Title, &author, &a.Content, &html, &summary, &cover,
		&sourceURL, &account, &publishTime, &a.ReadCount, &a.LikeCount,
		&a.IsFavorite, &a.IsArchived, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Author = author.String
	a.HTMLContent = html.String
	a.Summary = summary.String
	a.CoverImage = cover.String
	a.SourceURL = sourceURL.String
	a.PublicAccount = account.String
	a.PublishTime = timePtr(publishTime)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	a.Tags = []string{}
	return &a, nil
}

func validateNewArticle(a domain.NewArticle) error {
	if strings.TrimSpace(a.Title) == "" {
		return domainerrors.Validation("article title is required")
	}
	if strings.TrimSpace(a.Content) == "" {
		return domainerrors.Validation("article content is required")
	}
	return nil
}

// Create inserts an article and attaches its tags in one transaction. Any
// failure rolls back the article and every tag created for it.
func (s *ArticleStore) Create(ctx context.Context, a domain.NewArticle) (int64, error) {
	if err := validateNewArticle(a); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createTx(ctx, tx, a)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("article created", "article_id", id, "tags", len(a.Tags))
	return id, nil
}

// CreateBatch inserts every article in one transaction. A single failure
// rolls back the whole batch.
func (s *ArticleStore) CreateBatch(ctx context.Context, articles []domain.NewArticle) ([]int64, error) {
	for i, a := range articles {
		if err := validateNewArticle(a); err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "article %d", i)
		}
	}

	ids := make([]int64, 0, len(articles))
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, a := range articles {
			id, err := s.createTx(ctx, tx, a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("article batch created", "count", len(ids))
	return ids, nil
}

func (s *ArticleStore) createTx(ctx context.Context, tx *sql.Tx, a domain.NewArticle) (int64, error) {
	now := toMillis(s.now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO articles (
			title, author, content, html_content, summary, cover_image,
			source_url, public_account, publish_time, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, nullString(a.Author), a.Content, nullString(a.HTMLContent), nullString(a.Summary),
		nullString(a.CoverImage), nullString(a.SourceURL), nullString(a.PublicAccount),
		nullMillis(a.PublishTime), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, name := range a.Tags {
		tagID, err := s.tags.GetOrCreateTx(ctx, tx, name, "")
		if err != nil {
			return 0, err
		}
		if _, err := s.tags.AttachTx(ctx, tx, id, tagID); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetByID returns the article with its current tags, or nil when absent.
func (s *ArticleStore) GetByID(ctx context.Context, id int64) (*domain.Article, error) {
	a, err := ScanArticle(s.db.db.QueryRowContext(ctx,
		`SELECT `+ArticleColumns+` FROM articles a WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}

	names, err := s.tags.ArticleTagNames(ctx, s.db.db, id)
	if err != nil {
		return nil, err
	}
	if t, ok := names[id]; ok {
		a.Tags = t
	}
	return a, nil
}

// ExistsBySourceURL returns the id of an article already stored for url, or 0.
func (s *ArticleStore) ExistsBySourceURL(ctx context.Context, url string) (int64, error) {
	if url == "" {
		return 0, nil
	}
	var id int64
	err := s.db.db.QueryRowContext(ctx,
		`SELECT id FROM articles WHERE source_url = ? ORDER BY id LIMIT 1`, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup source url: %w", err)
	}
	return id, nil
}

// Query returns one page of articles matching filter. The total comes from a
// separate COUNT over the same predicate.
func (s *ArticleStore) Query(ctx context.Context, filter store.ArticleFilter, page store.PageParams, sort store.Sort) (store.Page[domain.Article], error) {
	page.Normalize()
	conds, args := filter.Predicates("a")
	where := store.Where(conds)

	var total int
	if err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a`+where, args...).Scan(&total); err != nil {
		return store.Page[domain.Article]{}, fmt.Errorf("count articles: %w", err)
	}

	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+ArticleColumns+` FROM articles a`+where+sort.OrderBy("a")+` LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return store.Page[domain.Article]{}, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := []domain.Article{}
	for rows.Next() {
		a, err := ScanArticle(rows)
		if err != nil {
			return store.Page[domain.Article]{}, fmt.Errorf("scan article: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return store.Page[domain.Article]{}, err
	}

	if err := s.AttachTags(ctx, items); err != nil {
		return store.Page[domain.Article]{}, err
	}
	return store.NewPage(items, total, page), nil
}

// AttachTags fills the Tags field of each article with a fresh lookup.
func (s *ArticleStore) AttachTags(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]int64, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}
	names, err := s.tags.ArticleTagNames(ctx, s.db.db, ids...)
	if err != nil {
		return err
	}
	for i := range articles {
		if t, ok := names[articles[i].ID]; ok {
			articles[i].Tags = t
		} else {
			articles[i].Tags = []string{}
		}
	}
	return nil
}

// ListIDs returns the ids of every article matching filter in sort order.
func (s *ArticleStore) ListIDs(ctx context.Context, filter store.ArticleFilter, sort store.Sort) ([]int64, error) {
	conds, args := filter.Predicates("a")
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT a.id FROM articles a`+store.Where(conds)+sort.OrderBy("a"), args...)
	if err != nil {
		return nil, fmt.Errorf("list article ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update applies the supplied fields only. A non-nil Tags slice replaces the
// article's whole tag set in the same transaction. Returns false when nothing
// was requested or the article does not exist.
func (s *ArticleStore) Update(ctx context.Context, id int64, u domain.ArticleUpdate) (bool, error) {
	if u.IsEmpty() {
		return false, nil
	}

	sets, args, err := updateAssignments(u)
	if err != nil {
		return false, err
	}

	updated := false
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup article %d: %w", id, err)
		}

		sets = append(sets, "updated_at = ?")
		args = append(args, toMillis(s.now()), id)
		if _, err := tx.ExecContext(ctx,
			`UPDATE articles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("update article %d: %w", id, err)
		}

		if u.Tags != nil {
			if _, err := s.tags.DetachAllTx(ctx, tx, id); err != nil {
				return err
			}
			for _, name := range u.Tags {
				tagID, err := s.tags.GetOrCreateTx(ctx, tx, name, "")
				if err != nil {
					return err
				}
				if _, err := s.tags.AttachTx(ctx, tx, id, tagID); err != nil {
					return err
				}
			}
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func updateAssignments(u domain.ArticleUpdate) ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return nil, nil, domainerrors.Validation("article title cannot be empty")
		}
		set("title", *u.Title)
	}
	if u.Content != nil {
		if strings.TrimSpace(*u.Content) == "" {
			return nil, nil, domainerrors.Validation("article content cannot be empty")
		}
		set("content", *u.Content)
	}
	if u.Author != nil {
		set("author", nullString(*u.Author))
	}
	if u.HTMLContent != nil {
		set("html_content", nullString(*u.HTMLContent))
	}
	if u.Summary != nil {
		set("summary", nullString(*u.Summary))
	}
	if u.CoverImage != nil {
		set("cover_image", nullString(*u.CoverImage))
	}
	if u.SourceURL != nil {
		set("source_url", nullString(*u.SourceURL))
	}
	if u.PublicAccount != nil {
		set("public_account", nullString(*u.PublicAccount))
	}
	if u.PublishTime != nil {
		set("publish_time", nullMillis(u.PublishTime))
	}
	if u.IsFavorite != nil {
		set("is_favorite", *u.IsFavorite)
	}
	if u.IsArchived != nil {
		set("is_archived", *u.IsArchived)
	}
	return sets, args, nil
}

// Delete removes an article and its associations.
func (s *ArticleStore) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := s.DeleteBatch(ctx, []int64{id})
	return n > 0, err
}

// DeleteBatch removes articles and returns how many actually existed.
func (s *ArticleStore) DeleteBatch(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := s.tags.DetachAllTx(ctx, tx, id); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("delete article %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("articles deleted", "requested", len(ids), "deleted", deleted)
	return deleted, nil
}

// IncrementReadCount adds one read. Returns false when the article is absent.
func (s *ArticleStore) IncrementReadCount(ctx context.Context, id int64) (bool, error) {
	return s.exec(ctx, `UPDATE articles SET read_count = read_count + 1 WHERE id = ?`, id)
}

// IncrementLikeCount adds one like. Returns false when the article is absent.
func (s *ArticleStore) IncrementLikeCount(ctx context.Context, id int64) (bool, error) {
	return s.exec(ctx, `UPDATE articles SET like_count = like_count + 1 WHERE id = ?`, id)
}

func (s *ArticleStore) exec(ctx context.Context, query string, args ...any) (bool, error) {
	var changed bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// ToggleFavorite flips the favorite flag and returns the committed value.
func (s *ArticleStore) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	return s.toggle(ctx, id, "is_favorite")
}

// ToggleArchive flips the archived flag and returns the committed value.
func (s *ArticleStore) ToggleArchive(ctx context.Context, id int64) (bool, error) {
	return s.toggle(ctx, id, "is_archived")
}

// toggle flips column in SQL and reads the stored value back. column is one
// of the two constants above, never caller input.
func (s *ArticleStore) toggle(ctx context.Context, id int64, column string) (bool, error) {
	var state bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE articles SET `+column+` = NOT `+column+`, updated_at = ? WHERE id = ?`,
			toMillis(s.now()), id)
		if err != nil {
			return fmt.Errorf("toggle %s on article %d: %w", column, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domainerrors.NotFoundf("article %d not found", id)
		}
		return tx.QueryRowContext(ctx, `SELECT `+column+` FROM articles WHERE id = ?`, id).Scan(&state)
	})
	return state, err
}

// Stats returns library-wide counters.
func (s *ArticleStore) Stats(ctx context.Context) (domain.ArticleStats, error) {
	var st domain.ArticleStats
	err := s.db.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_favorite), 0),
			COALESCE(SUM(is_archived), 0),
			COALESCE(SUM(read_count), 0)
		FROM articles`).Scan(&st.Total, &st.FavoriteCount, &st.ArchivedCount, &st.TotalReadCount)
	if err != nil {
		return st, fmt.Errorf("article stats: %w", err)
	}
	return st, nil
}

// PublicAccounts lists distinct account labels with article counts.
func (s *ArticleStore) PublicAccounts(ctx context.Context) ([]domain.NameCount, error) {
	return s.groupCounts(ctx, "public_account")
}

// Authors lists distinct authors with article counts.
func (s *ArticleStore) Authors(ctx context.Context) ([]domain.NameCount, error) {
	return s.groupCounts(ctx, "author")
}

func (s *ArticleStore) groupCounts(ctx context.Context, column string) ([]domain.NameCount, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) AS n
		FROM articles
		WHERE `+column+` IS NOT NULL AND `+column+` != ''
		GROUP BY `+column+`
		ORDER BY n DESC, `+column+` ASC`)
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	out := []domain.NameCount{}
	for rows.Next() {
		var nc domain.NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}
