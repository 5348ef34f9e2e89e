// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/scraper"
)

// DatabaseFile is the name of the SQLite file inside the data directory.
const DatabaseFile = "articles.db"

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Scraper ScraperConfig
	Inbox   InboxConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the storage location.
type DataConfig struct {
	Path string
}

// DatabasePath is the SQLite file under the data directory.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.Path, DatabaseFile)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 60s, scrape jobs are slow)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins (default: *)
	// ScrapeRate is the number of scrape requests a client may start per minute.
	ScrapeRate int
}

// ScraperConfig mirrors scraper.Config with values from the environment.
type ScraperConfig struct {
	MaxRetries      int
	RetryDelay      time.Duration
	Timeout         time.Duration
	RequestInterval time.Duration
	SourcePattern   string
	MaxBodyBytes    int64
}

// ToScraper converts to the scraper package configuration.
func (s ScraperConfig) ToScraper() scraper.Config {
	return scraper.Config{
		Fetcher: scraper.FetcherConfig{
			MaxRetries:   s.MaxRetries,
			RetryDelay:   s.RetryDelay,
			Timeout:      s.Timeout,
			Interval:     s.RequestInterval,
			MaxBodyBytes: s.MaxBodyBytes,
		},
		SourcePattern: s.SourcePattern,
	}
}

// InboxConfig holds the drop folder configuration. An empty path disables it.
type InboxConfig struct {
	Path string
	Tags []string
}

// Enabled reports whether the inbox watcher should run.
func (i InboxConfig) Enabled() bool {
	return i.Path != ""
}

// flagValues holds the raw flag strings before precedence is applied.
type flagValues struct {
	env, logLevel, dataPath, envFile                   *string
	port, readTimeout, writeTimeout, idleTimeout, cors *string
	scrapeRate                                         *string
	maxRetries, retryDelay, timeout, interval          *string
	sourcePattern, maxBody                             *string
	inboxPath, inboxTags                               *string
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	return &flagValues{
		env:      fs.String("env", "", "Environment (development, staging, production)"),
		logLevel: fs.String("log-level", "", "Log level (debug, info, warn, error)"),
		dataPath: fs.String("data-path", "", "Directory holding the article database"),
		envFile:  fs.String("env-file", ".env", "Path to .env file"),

		// Server flags
		port:         fs.String("port", "", "Server port (default: 8080)"),
		readTimeout:  fs.String("read-timeout", "", "HTTP read timeout (default: 15s)"),
		writeTimeout: fs.String("write-timeout", "", "HTTP write timeout (default: 60s)"),
		idleTimeout:  fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)"),
		cors:         fs.String("cors-origins", "", "Comma separated allowed origins (default: *)"),
		scrapeRate:   fs.String("scrape-rate", "", "Scrape requests per client per minute (default: 10)"),

		// Scraper flags
		maxRetries:    fs.String("max-retries", "", "Fetch retries after the first attempt (default: 3)"),
		retryDelay:    fs.String("retry-delay", "", "Base retry delay (default: 2s)"),
		timeout:       fs.String("fetch-timeout", "", "Per-attempt fetch timeout (default: 10s)"),
		interval:      fs.String("request-interval", "", "Minimum gap between fetches (default: 2s)"),
		sourcePattern: fs.String("source-pattern", "", "Regular expression accepted source URLs must match"),
		maxBody:       fs.String("max-body-bytes", "", "Largest accepted response body (default: 10485760)"),

		// Inbox flags
		inboxPath: fs.String("inbox-path", "", "Folder watched for URL list files (empty disables)"),
		inboxTags: fs.String("inbox-tags", "", "Comma separated tags for inbox articles"),
	}
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load is LoadConfig against an explicit flag set and argument list.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	f := registerFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*f.envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*f.env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*f.logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			Path: getConfigValue(*f.dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*f.port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*f.cors, "SERVER_CORS_ORIGINS", "*")),
			ScrapeRate:  getIntConfigValue(*f.scrapeRate, "SERVER_SCRAPE_RATE", 10),
		},
		Scraper: ScraperConfig{
			MaxRetries:    getIntConfigValue(*f.maxRetries, "SCRAPER_MAX_RETRIES", scraper.DefaultMaxRetries),
			SourcePattern: getConfigValue(*f.sourcePattern, "SCRAPER_SOURCE_PATTERN", scraper.DefaultSourcePattern),
			MaxBodyBytes:  int64(getIntConfigValue(*f.maxBody, "SCRAPER_MAX_BODY_BYTES", int(scraper.DefaultMaxBodyBytes))),
		},
		Inbox: InboxConfig{
			Path: getConfigValue(*f.inboxPath, "INBOX_PATH", ""),
			Tags: splitList(getConfigValue(*f.inboxTags, "INBOX_TAGS", "")),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		env      string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *f.readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *f.writeTimeout, "SERVER_WRITE_TIMEOUT", "60s"},
		{&cfg.Server.IdleTimeout, *f.idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Scraper.RetryDelay, *f.retryDelay, "SCRAPER_RETRY_DELAY", scraper.DefaultRetryDelay.String()},
		{&cfg.Scraper.Timeout, *f.timeout, "SCRAPER_TIMEOUT", scraper.DefaultTimeout.String()},
		{&cfg.Scraper.RequestInterval, *f.interval, "SCRAPER_REQUEST_INTERVAL", scraper.DefaultInterval.String()},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.env, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.Inbox.Path != "" {
		expanded, err := expandPath(cfg.Inbox.Path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid inbox path: %w", err)
		}
		cfg.Inbox.Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.Path == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("scraper max retries must not be negative: %d", c.Scraper.MaxRetries)
	}
	for name, d := range map[string]time.Duration{
		"scraper retry delay":      c.Scraper.RetryDelay,
		"scraper timeout":          c.Scraper.Timeout,
		"scraper request interval": c.Scraper.RequestInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", name, d)
		}
	}
	if c.Scraper.MaxBodyBytes <= 0 {
		return fmt.Errorf("scraper max body bytes must be positive: %d", c.Scraper.MaxBodyBytes)
	}
	if _, err := regexp.Compile(c.Scraper.SourcePattern); err != nil {
		return fmt.Errorf("invalid source pattern %q: %w", c.Scraper.SourcePattern, err)
	}

	// Server timeouts are zero only when built by hand; LoadConfig always sets them.
	if c.Server.ScrapeRate < 0 {
		return fmt.Errorf("scrape rate must not be negative: %d", c.Server.ScrapeRate)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute, defaulting to
// ~/ArticleVault.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ArticleVault")

	expanded, err := expandPath(c.Data.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Data.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
