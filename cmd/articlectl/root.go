package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/export"
	"github.com/listenupapp/articlevault/internal/logger"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/scraper"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/service"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app holds the services commands run against. The scraper is built lazily
// because only scrape needs the network stack.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	articles *service.ArticleService
	tags     *service.TagService
	search   *service.SearchService
	export   *export.Writer
	store    *sqlite.ArticleStore
}

func newApp(ctx context.Context, cfg *config.Config, dbPath string, w io.Writer) (*app, error) {
	log := logger.ForEnvironment(cfg.App.Environment, cfg.Logger.Level, w).Logger

	if dbPath == "" {
		dbPath = cfg.Data.DatabasePath()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		return nil, err
	}

	tags := sqlite.NewTagGraph(db)
	articles := sqlite.NewArticleStore(db, tags)
	engine, err := search.NewEngine(ctx, db, articles, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		db:       db,
		articles: service.NewArticleService(articles, nil, log),
		tags:     service.NewTagService(tags, nil, log),
		search:   service.NewSearchService(engine, nil, log),
		export:   export.NewWriter(articles),
		store:    articles,
	}, nil
}

func (a *app) ingest() (*service.IngestService, error) {
	s, err := scraper.New(a.cfg.Scraper.ToScraper(), metrics.New(), a.logger)
	if err != nil {
		return nil, err
	}
	return service.NewIngestService(s, a.store, nil, nil, a.logger), nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

// rootOptions are the persistent flags. They are handed to config.Load so
// the environment and .env file apply exactly as they do for the server.
type rootOptions struct {
	db       string
	dataPath string
	envFile  string
	logLevel string
}

func (o rootOptions) args() []string {
	var args []string
	if o.dataPath != "" {
		args = append(args, "-data-path="+o.dataPath)
	}
	if o.envFile != "" {
		args = append(args, "-env-file="+o.envFile)
	}
	if o.logLevel != "" {
		args = append(args, "-log-level="+o.logLevel)
	}
	return args
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "articlectl",
		Short:         "Manage an ArticleVault article database",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flag.NewFlagSet("articlectl", flag.ContinueOnError), opts.args())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := newApp(cmd.Context(), cfg, opts.db, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("open article database: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "database file (default: articles.db in the data directory)")
	cmd.PersistentFlags().StringVar(&opts.dataPath, "data-path", "", "directory holding the article database (default: $DATA_PATH or ~/ArticleVault)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to .env file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newScrapeCmd(),
		newSearchCmd(),
		newTagsCmd(),
		newStatsCmd(),
		newExportCmd(),
		newBackupCmd(),
		newReindexCmd(),
		newOptimizeCmd(),
	)

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("article database not opened")
	}
	return a, nil
}
