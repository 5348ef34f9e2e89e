package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/export"
	"github.com/listenupapp/articlevault/internal/logger"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/scraper"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/service"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideScraper provides the article scraper.
func ProvideScraper(i do.Injector) (*scraper.Scraper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return scraper.New(cfg.Scraper.ToScraper(), m, log.Component("scraper"))
}

// ProvideArticleService provides the article service.
func ProvideArticleService(i do.Injector) (*service.ArticleService, error) {
	articles := do.MustInvoke[*sqlite.ArticleStore](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewArticleService(articles, sseHandle.Manager, log.Component("articles")), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	tags := do.MustInvoke[*sqlite.TagGraph](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(tags, sseHandle.Manager, log.Component("tags")), nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	engine := do.MustInvoke[*search.Engine](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(engine, sseHandle.Manager, log.Component("search")), nil
}

// ProvideIngestService provides the scrape-and-store service.
func ProvideIngestService(i do.Injector) (*service.IngestService, error) {
	s := do.MustInvoke[*scraper.Scraper](i)
	articles := do.MustInvoke[*sqlite.ArticleStore](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewIngestService(s, articles, sseHandle.Manager, m, log.Component("ingest")), nil
}

// ProvideExportWriter provides the article exporter.
func ProvideExportWriter(i do.Injector) (*export.Writer, error) {
	articles := do.MustInvoke[*sqlite.ArticleStore](i)
	return export.NewWriter(articles), nil
}
