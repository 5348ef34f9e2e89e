package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/logger"
	"github.com/listenupapp/articlevault/internal/service"
	"github.com/listenupapp/articlevault/internal/watcher"
)

// InboxHandle wraps the inbox watcher with shutdown capability. Inbox is nil
// when no inbox path is configured.
type InboxHandle struct {
	*watcher.Inbox
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	if h.Inbox == nil {
		return nil
	}
	h.cancel()

	select {
	case <-h.done:
	case <-time.After(shutdownTimeout):
	}
	return nil
}

// ProvideInbox provides the drop folder watcher.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Inbox.Enabled() {
		log.Info("Inbox watcher disabled by configuration")
		return &InboxHandle{}, nil
	}

	ingest := do.MustInvoke[*service.IngestService](i)

	inbox, err := watcher.NewInbox(cfg.Inbox.Path, ingest, log.Component("inbox"), watcher.Options{
		Tags: cfg.Inbox.Tags,
	})
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := inbox.Run(ctx); err != nil {
			log.Error("Inbox watcher error", "error", err)
		}
	}()

	log.Info("Inbox watcher started", "dir", inbox.Dir(), "tags", cfg.Inbox.Tags)

	return &InboxHandle{
		Inbox:  inbox,
		cancel: cancel,
		done:   done,
	}, nil
}

// MaintenanceJob periodically refreshes planner statistics, repairs tag
// counters and merges search index segments.
type MaintenanceJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. It waits for an in-flight pass to
// finish.
func (j *MaintenanceJob) Shutdown() error {
	j.cancel()

	select {
	case <-j.done:
	case <-time.After(shutdownTimeout):
	}
	return nil
}

// startMaintenance runs startup once, then tick every interval until the
// returned job is shut down.
func startMaintenance(interval time.Duration, startup, tick func(context.Context)) *MaintenanceJob {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		startup(ctx)

		for {
			select {
			case <-ticker.C:
				tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return &MaintenanceJob{cancel: cancel, done: done}
}

// ProvideMaintenanceJob provides the periodic maintenance job.
func ProvideMaintenanceJob(i do.Injector) (*MaintenanceJob, error) {
	db := do.MustInvoke[*DBHandle](i)
	tagService := do.MustInvoke[*service.TagService](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	// Repair counters on startup in case a write bypassed the association
	// helpers.
	startup := func(ctx context.Context) {
		if _, err := tagService.Recount(ctx); err != nil {
			log.Warn("Initial tag recount failed", "error", err)
		}
	}

	tick := func(ctx context.Context) {
		if _, err := tagService.Recount(ctx); err != nil {
			log.Warn("Tag recount failed", "error", err)
		}
		if err := db.Optimize(ctx); err != nil {
			log.Warn("Database optimize failed", "error", err)
		}
		if err := searchService.Optimize(ctx); err != nil {
			log.Warn("Search index optimize failed", "error", err)
		}
	}

	job := startMaintenance(maintenanceInterval, startup, tick)
	log.Info("Maintenance job started", "interval", maintenanceInterval)

	return job, nil
}

// ensureSearchIndex rebuilds the search index when it has drifted from the
// articles table.
func ensureSearchIndex(ctx context.Context, searchService *service.SearchService, log *logger.Logger) {
	stats, err := searchService.Stats(ctx)
	if err != nil {
		log.Warn("Failed to read search index stats", "error", err)
		return
	}
	if stats.IndexedArticles == stats.TotalArticles {
		return
	}

	log.Info("Search index out of date, rebuilding",
		"indexed", stats.IndexedArticles,
		"articles", stats.TotalArticles,
	)
	if err := searchService.Rebuild(ctx); err != nil {
		log.Error("Search index rebuild failed", "error", err)
	}
}

// TriggerSearchReindexIfNeeded checks if reindexing is needed and triggers it
// in the background. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	go ensureSearchIndex(context.Background(), searchService, log)
}
