// Package store defines the contracts shared by the storage engine, the tag
// graph and the search engine: filters, sorting, pagination and the tag
// surface the article store depends on.
package store

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TagResolver is the part of the tag graph the article store needs. Every
// method taking a *sql.Tx participates in the caller's transaction, and every
// association change keeps tags.article_count in step.
type TagResolver interface {
	// GetOrCreateTx returns the id of the tag named name, creating it with
	// color (or the default color) when absent.
	GetOrCreateTx(ctx context.Context, tx *sql.Tx, name, color string) (int64, error)

	// AttachTx links an article to a tag. Returns false when the link existed.
	AttachTx(ctx context.Context, tx *sql.Tx, articleID, tagID int64) (bool, error)

	// DetachAllTx removes every tag from an article and returns how many
	// links were removed.
	DetachAllTx(ctx context.Context, tx *sql.Tx, articleID int64) (int, error)

	// ArticleTagNames returns tag names per article id, sorted by name.
	ArticleTagNames(ctx context.Context, q Querier, articleIDs ...int64) (map[int64][]string, error)
}
