package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The functions in this file are the only code that writes article_tags.
// Each one adjusts tags.article_count in the same transaction so the counter
// always equals the number of live associations.

// link associates an article with a tag. Linking an existing pair is a no-op
// and reports false.
func link(ctx context.Context, tx *sql.Tx, articleID, tagID int64, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO article_tags (article_id, tag_id, created_at) VALUES (?, ?, ?)`,
		articleID, tagID, toMillis(now))
	if err != nil {
		return false, fmt.Errorf("link article %d to tag %d: %w", articleID, tagID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tags SET article_count = article_count + 1 WHERE id = ?`, tagID); err != nil {
		return false, fmt.Errorf("increment tag %d count: %w", tagID, err)
	}
	return true, nil
}

// unlink removes one association, reporting whether it existed.
func unlink(ctx context.Context, tx *sql.Tx, articleID, tagID int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM article_tags WHERE article_id = ? AND tag_id = ?`, articleID, tagID)
	if err != nil {
		return false, fmt.Errorf("unlink article %d from tag %d: %w", articleID, tagID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tags SET article_count = article_count - 1 WHERE id = ?`, tagID); err != nil {
		return false, fmt.Errorf("decrement tag %d count: %w", tagID, err)
	}
	return true, nil
}

// unlinkArticle removes every association of an article.
func unlinkArticle(ctx context.Context, tx *sql.Tx, articleID int64) (int, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE tags SET article_count = article_count - 1
		WHERE id IN (SELECT tag_id FROM article_tags WHERE article_id = ?)`, articleID); err != nil {
		return 0, fmt.Errorf("decrement counts for article %d: %w", articleID, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, articleID)
	if err != nil {
		return 0, fmt.Errorf("unlink article %d: %w", articleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// unlinkTag removes every association of a tag and zeroes its counter.
func unlinkTag(ctx context.Context, tx *sql.Tx, tagID int64) (int, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE tag_id = ?`, tagID)
	if err != nil {
		return 0, fmt.Errorf("unlink tag %d: %w", tagID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tags SET article_count = 0 WHERE id = ?`, tagID); err != nil {
		return 0, fmt.Errorf("reset tag %d count: %w", tagID, err)
	}
	return int(n), nil
}

// recount recomputes every counter from the association table and returns
// how many tags had drifted.
func recount(ctx context.Context, tx *sql.Tx) (int, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tags SET article_count = (
			SELECT COUNT(*) FROM article_tags at WHERE at.tag_id = tags.id
		)
		WHERE article_count != (
			SELECT COUNT(*) FROM article_tags at WHERE at.tag_id = tags.id
		)`)
	if err != nil {
		return 0, fmt.Errorf("recount tags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
