package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/logger"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// DBHandle wraps the SQLite store with shutdown capability.
type DBHandle struct {
	*sqlite.DB
}

// Shutdown implements do.Shutdownable.
func (h *DBHandle) Shutdown() error {
	return h.Close()
}

// ProvideDB opens the article database under the data directory.
func ProvideDB(i do.Injector) (*DBHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := cfg.Data.DatabasePath()
	db, err := sqlite.Open(dbPath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &DBHandle{DB: db}, nil
}

// ProvideTagGraph provides the tag store.
func ProvideTagGraph(i do.Injector) (*sqlite.TagGraph, error) {
	db := do.MustInvoke[*DBHandle](i)
	return sqlite.NewTagGraph(db.DB), nil
}

// ProvideArticleStore provides the article store. Tags are resolved through
// the tag graph.
func ProvideArticleStore(i do.Injector) (*sqlite.ArticleStore, error) {
	db := do.MustInvoke[*DBHandle](i)
	tags := do.MustInvoke[*sqlite.TagGraph](i)
	return sqlite.NewArticleStore(db.DB, tags), nil
}

// ProvideSearchEngine provides the full-text search engine.
func ProvideSearchEngine(i do.Injector) (*search.Engine, error) {
	db := do.MustInvoke[*DBHandle](i)
	articles := do.MustInvoke[*sqlite.ArticleStore](i)
	log := do.MustInvoke[*logger.Logger](i)

	engine, err := search.NewEngine(context.Background(), db.DB, articles, log.Component("search"))
	if err != nil {
		return nil, err
	}

	if stats, err := engine.Stats(context.Background()); err == nil {
		log.Info("Search index initialized",
			"indexed", stats.IndexedArticles,
			"articles", stats.TotalArticles,
		)
	}

	return engine, nil
}
