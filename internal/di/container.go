// Package di provides dependency injection configuration for the ArticleVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/di/providers"
	"github.com/listenupapp/articlevault/internal/export"
	"github.com/listenupapp/articlevault/internal/logger"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/scraper"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/service"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideDB)
	do.Provide(injector, providers.ProvideTagGraph)
	do.Provide(injector, providers.ProvideArticleStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchEngine)
	do.Provide(injector, providers.ProvideSearchService)

	// Scraping
	do.Provide(injector, providers.ProvideScraper)
	do.Provide(injector, providers.ProvideIngestService)

	// Business services
	do.Provide(injector, providers.ProvideArticleService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideExportWriter)

	// Workers
	do.Provide(injector, providers.ProvideInbox)
	do.Provide(injector, providers.ProvideMaintenanceJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.DBHandle](injector)
	_ = do.MustInvoke[*sqlite.TagGraph](injector)
	_ = do.MustInvoke[*sqlite.ArticleStore](injector)
	_ = do.MustInvoke[*search.Engine](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*scraper.Scraper](injector)

	// Business services
	_ = do.MustInvoke[*service.IngestService](injector)
	_ = do.MustInvoke[*service.ArticleService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*export.Writer](injector)

	// Workers
	_ = do.MustInvoke[*providers.InboxHandle](injector)
	_ = do.MustInvoke[*providers.MaintenanceJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
