package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/listenupapp/articlevault/internal/domain"
	domainerrors "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
)

// tagColumns is the ordered column list for tag queries.
const tagColumns = `id, name, color, description, article_count, created_at`

// TagSort selects the ordering of tag listings.
type TagSort string

// Tag listing orders.
const (
	TagSortName         TagSort = "name"
	TagSortArticleCount TagSort = "article_count"
	TagSortCreatedAt    TagSort = "created_at"
)

func (s TagSort) orderBy() string {
	switch s {
	case TagSortArticleCount:
		return " ORDER BY article_count DESC, name ASC"
	case TagSortCreatedAt:
		return " ORDER BY created_at DESC, id DESC"
	default:
		return " ORDER BY name ASC"
	}
}

// TagGraph manages tag identity, the article/tag associations and the
// denormalized usage counters.
type TagGraph struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.TagResolver = (*TagGraph)(nil)

// NewTagGraph creates a tag graph on db.
func NewTagGraph(db *DB) *TagGraph {
	return &TagGraph{
		db:     db,
		logger: db.logger,
		now:    time.Now,
	}
}

// scanTag scans a tag row from any scanner (sql.Row or sql.Rows).
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t           domain.Tag
		description sql.NullString
		createdAt   int64
	)
	if err := scanner.Scan(&t.ID, &t.Name, &t.Color, &description, &t.ArticleCount, &createdAt); err != nil {
		return nil, err
	}
	t.Description = description.String
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}

func queryTags(ctx context.Context, q store.Querier, query string, args ...any) ([]domain.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

// normalizeTagName trims a tag name and checks it is usable.
func normalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domainerrors.Validation("tag name is required")
	}
	if utf8.RuneCountInString(name) > domain.MaxTagNameLength {
		return "", domainerrors.Validationf("tag name must not exceed %d characters", domain.MaxTagNameLength)
	}
	return name, nil
}

// Create inserts a new tag. A duplicate name is an ALREADY_EXISTS error.
func (g *TagGraph) Create(ctx context.Context, name, color, description string) (*domain.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return nil, err
	}
	if color == "" {
		color = domain.DefaultTagColor
	}

	var tag *domain.Tag
	err = g.db.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := g.insertTx(ctx, tx, name, color, description)
		if err != nil {
			return err
		}
		tag, err = scanTag(tx.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("tag created", "tag_id", tag.ID, "name", tag.Name)
	return tag, nil
}

func (g *TagGraph) insertTx(ctx context.Context, tx *sql.Tx, name, color, description string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tags (name, color, description, article_count, created_at) VALUES (?, ?, ?, 0, ?)`,
		name, color, nullString(description), toMillis(g.now()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domainerrors.AlreadyExistsf("tag %q already exists", name)
		}
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return res.LastInsertId()
}

// GetOrCreate returns the id of the tag with exactly this name, creating it
// when absent.
func (g *TagGraph) GetOrCreate(ctx context.Context, name, color string) (int64, error) {
	var id int64
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = g.GetOrCreateTx(ctx, tx, name, color)
		return err
	})
	return id, err
}

// GetOrCreateTx is GetOrCreate inside the caller's transaction.
func (g *TagGraph) GetOrCreateTx(ctx context.Context, tx *sql.Tx, name, color string) (int64, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}

	if color == "" {
		color = domain.DefaultTagColor
	}
	id, err = g.insertTx(ctx, tx, name, color, "")
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AttachTx links an article to a tag inside the caller's transaction.
func (g *TagGraph) AttachTx(ctx context.Context, tx *sql.Tx, articleID, tagID int64) (bool, error) {
	return link(ctx, tx, articleID, tagID, g.now())
}

// DetachAllTx removes every tag from an article inside the caller's transaction.
func (g *TagGraph) DetachAllTx(ctx context.Context, tx *sql.Tx, articleID int64) (int, error) {
	return unlinkArticle(ctx, tx, articleID)
}

// GetByID returns the tag, or nil when it does not exist.
func (g *TagGraph) GetByID(ctx context.Context, id int64) (*domain.Tag, error) {
	t, err := scanTag(g.db.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %d: %w", id, err)
	}
	return t, nil
}

// GetByName returns the tag with exactly this name, or nil.
func (g *TagGraph) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	t, err := scanTag(g.db.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ?`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %q: %w", name, err)
	}
	return t, nil
}

// List returns every tag in the requested order.
func (g *TagGraph) List(ctx context.Context, sort TagSort) ([]domain.Tag, error) {
	return queryTags(ctx, g.db.db, `SELECT `+tagColumns+` FROM tags`+sort.orderBy())
}

// Popular returns the most used tags.
func (g *TagGraph) Popular(ctx context.Context, limit int) ([]domain.Tag, error) {
	if limit <= 0 {
		limit = 10
	}
	return queryTags(ctx, g.db.db, `
		SELECT `+tagColumns+` FROM tags
		WHERE article_count > 0
		ORDER BY article_count DESC, name ASC
		LIMIT ?`, limit)
}

// Cloud returns every tag in use, most used first.
func (g *TagGraph) Cloud(ctx context.Context) ([]domain.Tag, error) {
	return queryTags(ctx, g.db.db, `
		SELECT `+tagColumns+` FROM tags
		WHERE article_count > 0
		ORDER BY article_count DESC, name ASC`)
}

// Search returns tags whose name or description contains keyword.
func (g *TagGraph) Search(ctx context.Context, keyword string, limit int) ([]domain.Tag, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []domain.Tag{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(keyword) + "%"
	return queryTags(ctx, g.db.db, `
		SELECT `+tagColumns+` FROM tags
		WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		ORDER BY article_count DESC, name ASC
		LIMIT ?`, pattern, pattern, limit)
}

// Update applies a partial update. It returns false when nothing was
// requested or the tag does not exist. Renaming onto a name held by a
// different tag is a CONFLICT error; renaming a tag to its own name succeeds.
func (g *TagGraph) Update(ctx context.Context, id int64, u domain.TagUpdate) (bool, error) {
	var (
		sets []string
		args []any
	)
	if u.Name != nil {
		name, err := normalizeTagName(*u.Name)
		if err != nil {
			return false, err
		}
		u.Name = &name
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if u.Color != nil {
		color := *u.Color
		if color == "" {
			color = domain.DefaultTagColor
		}
		sets = append(sets, "color = ?")
		args = append(args, color)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*u.Description))
	}
	if len(sets) == 0 {
		return false, nil
	}

	var updated bool
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		if u.Name != nil {
			var holder int64
			err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ? AND id != ?`, *u.Name, id).Scan(&holder)
			if err == nil {
				return domainerrors.Conflictf("tag name %q is already used by tag %d", *u.Name, holder)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check tag name: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE tags SET `+strings.Join(sets, ", ")+` WHERE id = ?`, append(args, id)...)
		if err != nil {
			if isUniqueViolation(err) {
				return domainerrors.Conflict("tag name is already in use")
			}
			return fmt.Errorf("update tag %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

// Rename changes a tag's name.
func (g *TagGraph) Rename(ctx context.Context, id int64, newName string) (bool, error) {
	return g.Update(ctx, id, domain.TagUpdate{Name: &newName})
}

// Delete removes a tag and its associations.
func (g *TagGraph) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := g.DeleteBatch(ctx, []int64{id})
	return n > 0, err
}

// DeleteBatch removes tags and returns how many actually existed.
func (g *TagGraph) DeleteBatch(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := unlinkTag(ctx, tx, id); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("delete tag %d: %w", id, err)
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
	return deleted, nil
}

// Merge moves every association of source onto target and deletes source.
// An article tagged with both ends up with one association. Returns false
// when source does not exist. source == target is a CONFLICT error and a
// missing target is a NOT_FOUND error.
func (g *TagGraph) Merge(ctx context.Context, sourceID, targetID int64) (bool, error) {
	if sourceID == targetID {
		return false, domainerrors.Conflict("cannot merge a tag into itself")
	}

	merged := false
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, sourceID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup source tag %d: %w", sourceID, err)
		}

		err = tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, targetID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domainerrors.NotFoundf("merge target tag %d not found", targetID)
		}
		if err != nil {
			return fmt.Errorf("lookup target tag %d: %w", targetID, err)
		}

		articleIDs, err := articlesForTag(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		now := g.now()
		for _, articleID := range articleIDs {
			if _, err := link(ctx, tx, articleID, targetID, now); err != nil {
				return err
			}
		}

		if _, err := unlinkTag(ctx, tx, sourceID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, sourceID); err != nil {
			return fmt.Errorf("delete merged tag %d: %w", sourceID, err)
		}
		merged = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if merged {
		g.logger.Info("tags merged", "source_id", sourceID, "target_id", targetID)
	}
	return merged, nil
}

func articlesForTag(ctx context.Context, q store.Querier, tagID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT article_id FROM article_tags WHERE tag_id = ? ORDER BY article_id`, tagID)
	if err != nil {
		return nil, fmt.Errorf("list articles for tag %d: %w", tagID, err)
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

// CleanupUnused deletes every tag whose article_count is zero.
func (g *TagGraph) CleanupUnused(ctx context.Context) (int, error) {
	var removed int
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE article_count = 0`)
		if err != nil {
			return fmt.Errorf("cleanup unused tags: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		g.logger.Info("unused tags removed", "count", removed)
	}
	return removed, nil
}

// AddToArticle links an existing article and tag. Returns false when the link
// already existed.
func (g *TagGraph) AddToArticle(ctx context.Context, articleID, tagID int64) (bool, error) {
	var added bool
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireArticle(ctx, tx, articleID); err != nil {
			return err
		}
		if err := requireTag(ctx, tx, tagID); err != nil {
			return err
		}
		var err error
		added, err = link(ctx, tx, articleID, tagID, g.now())
		return err
	})
	return added, err
}

// AddToArticleBatch get-or-creates each name and links it to the article.
// Returns how many new links were made.
func (g *TagGraph) AddToArticleBatch(ctx context.Context, articleID int64, names []string) (int, error) {
	added := 0
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireArticle(ctx, tx, articleID); err != nil {
			return err
		}
		now := g.now()
		for _, name := range names {
			tagID, err := g.GetOrCreateTx(ctx, tx, name, "")
			if err != nil {
				return err
			}
			ok, err := link(ctx, tx, articleID, tagID, now)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// RemoveFromArticle unlinks a tag from an article, reporting whether the link
// existed.
func (g *TagGraph) RemoveFromArticle(ctx context.Context, articleID, tagID int64) (bool, error) {
	var removed bool
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = unlink(ctx, tx, articleID, tagID)
		return err
	})
	return removed, err
}

// SetArticleTags replaces the tag set of an article.
func (g *TagGraph) SetArticleTags(ctx context.Context, articleID int64, names []string) error {
	return g.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireArticle(ctx, tx, articleID); err != nil {
			return err
		}
		return g.replaceTx(ctx, tx, articleID, names)
	})
}

// replaceTx drops every association of the article and re-creates one per name.
func (g *TagGraph) replaceTx(ctx context.Context, tx *sql.Tx, articleID int64, names []string) error {
	if _, err := unlinkArticle(ctx, tx, articleID); err != nil {
		return err
	}
	now := g.now()
	for _, name := range names {
		tagID, err := g.GetOrCreateTx(ctx, tx, name, "")
		if err != nil {
			return err
		}
		if _, err := link(ctx, tx, articleID, tagID, now); err != nil {
			return err
		}
	}
	return nil
}

// ArticleTags returns the tags of one article, sorted by name.
func (g *TagGraph) ArticleTags(ctx context.Context, articleID int64) ([]domain.Tag, error) {
	return queryTags(ctx, g.db.db, `
		SELECT t.id, t.name, t.color, t.description, t.article_count, t.created_at
		FROM tags t
		JOIN article_tags at ON at.tag_id = t.id
		WHERE at.article_id = ?
		ORDER BY t.name ASC`, articleID)
}

// ArticleTagNames returns tag names keyed by article id. Articles without tags
// are absent from the map.
func (g *TagGraph) ArticleTagNames(ctx context.Context, q store.Querier, articleIDs ...int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(articleIDs))
	if len(articleIDs) == 0 {
		return out, nil
	}
	if q == nil {
		q = g.db.db
	}

	placeholders, args := inClause(articleIDs)
	rows, err := q.QueryContext(ctx, `
		SELECT at.article_id, t.name
		FROM article_tags at
		JOIN tags t ON t.id = at.tag_id
		WHERE at.article_id IN (`+placeholders+`)
		ORDER BY at.article_id, t.name ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query article tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			articleID int64
			name      string
		)
		if err := rows.Scan(&articleID, &name); err != nil {
			return nil, err
		}
		out[articleID] = append(out[articleID], name)
	}
	return out, rows.Err()
}

// Related returns tags sharing articles with tagID, by co-occurrence count.
func (g *TagGraph) Related(ctx context.Context, tagID int64, limit int) ([]domain.RelatedTag, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := g.db.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.description, t.article_count, t.created_at, COUNT(*) AS co
		FROM article_tags a1
		JOIN article_tags a2 ON a2.article_id = a1.article_id AND a2.tag_id != a1.tag_id
		JOIN tags t ON t.id = a2.tag_id
		WHERE a1.tag_id = ?
		GROUP BY t.id
		ORDER BY co DESC, t.name ASC
		LIMIT ?`, tagID, limit)
	if err != nil {
		return nil, fmt.Errorf("related tags for %d: %w", tagID, err)
	}
	defer rows.Close()

	related := []domain.RelatedTag{}
	for rows.Next() {
		var (
			rt          domain.RelatedTag
			description sql.NullString
			createdAt   int64
		)
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Color, &description, &rt.ArticleCount, &createdAt, &rt.CoOccurrence); err != nil {
			return nil, err
		}
		rt.Description = description.String
		rt.CreatedAt = fromMillis(createdAt)
		related = append(related, rt)
	}
	return related, rows.Err()
}

// Stats summarizes tag usage.
func (g *TagGraph) Stats(ctx context.Context) (domain.TagStats, error) {
	var s domain.TagStats
	err := g.db.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN article_count > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN article_count = 0 THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM article_tags)
		FROM tags`).Scan(&s.Total, &s.Used, &s.Unused, &s.TotalAssociations)
	if err != nil {
		return s, fmt.Errorf("tag stats: %w", err)
	}
	return s, nil
}

// CountAssociations counts the live associations of a tag directly from the
// association table.
func (g *TagGraph) CountAssociations(ctx context.Context, tagID int64) (int, error) {
	var n int
	if err := g.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM article_tags WHERE tag_id = ?`, tagID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count associations for tag %d: %w", tagID, err)
	}
	return n, nil
}

// Recount repairs counters that disagree with the association table and
// returns how many were corrected.
func (g *TagGraph) Recount(ctx context.Context) (int, error) {
	var fixed int
	err := g.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		fixed, err = recount(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		g.logger.Warn("tag counters repaired", "count", fixed)
	}
	return fixed, nil
}

func requireArticle(ctx context.Context, q store.Querier, articleID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, articleID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domainerrors.NotFoundf("article %d not found", articleID)
	}
	if err != nil {
		return fmt.Errorf("lookup article %d: %w", articleID, err)
	}
	return nil
}

func requireTag(ctx context.Context, q store.Querier, tagID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, tagID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domainerrors.NotFoundf("tag %d not found", tagID)
	}
	if err != nil {
		return fmt.Errorf("lookup tag %d: %w", tagID, err)
	}
	return nil
}

// inClause returns "?, ?, ?" and the matching args.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
