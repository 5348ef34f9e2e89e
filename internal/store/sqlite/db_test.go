package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
)

// newTestDB opens a store in a temp directory that is closed with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStores returns an article store and the tag graph it depends on.
func newTestStores(t *testing.T) (*ArticleStore, *TagGraph) {
	t.Helper()

	db := newTestDB(t)
	tags := NewTagGraph(db)
	return NewArticleStore(db, tags), tags
}

func createArticle(t *testing.T, s *ArticleStore, title string, tags ...string) int64 {
	t.Helper()

	id, err := s.Create(context.Background(), domain.NewArticle{
		Title:   title,
		Content: "Body of " + title,
		Summary: "Summary of " + title,
		Tags:    tags,
	})
	require.NoError(t, err)
	return id
}

func TestOpen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var journalMode string
	require.NoError(t, db.SQL().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.SQL().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	for _, table := range []string{"articles", "tags", "article_tags"} {
		var name string
		err := db.SQL().QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := Open(path, logger)
	require.NoError(t, err)
	tags := NewTagGraph(db)
	articles := NewArticleStore(db, tags)
	id, err := articles.Create(context.Background(), domain.NewArticle{Title: "kept", Content: "body"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(path, logger)
	require.NoError(t, err)
	defer db2.Close()

	got, err := NewArticleStore(db2, NewTagGraph(db2)).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kept", got.Title)
}

func TestBackup(t *testing.T) {
	s, _ := newTestStores(t)
	createArticle(t, s, "backed up")

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, s.db.Backup(context.Background(), dest))

	restored, err := Open(dest, nil)
	require.NoError(t, err)
	defer restored.Close()

	st, err := NewArticleStore(restored, NewTagGraph(restored)).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
}

func TestOptimizeAndVacuum(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Optimize(context.Background()))
	require.NoError(t, db.Vacuum(context.Background()))
}
