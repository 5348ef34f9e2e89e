// Package providers contains dependency injection providers for the ArticleVault server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/articlevault/internal/config"
	"github.com/listenupapp/articlevault/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.ForEnvironment(cfg.App.Environment, cfg.Logger.Level, os.Stdout)

	log.Info("Starting ArticleVault Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.Path,
		"inbox_path", cfg.Inbox.Path,
	)

	return log, nil
}
