// Package watcher feeds URL lists dropped into an inbox folder to ingestion.
package watcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/listenupapp/articlevault/internal/service"
)

// Suffixes appended to processed inbox files.
const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// Ingester scrapes and stores a list of URLs.
type Ingester interface {
	Scrape(ctx context.Context, urls []string, tags []string) (*service.ScrapeJob, error)
}

// Options configures the inbox.
type Options struct {
	// Debounce is how long a file must be quiet before it is read.
	Debounce time.Duration
	// Extensions lists the file extensions treated as URL lists.
	Extensions []string
	// Tags are attached to every article ingested from the inbox.
	Tags []string
	// BatchSize caps the URLs handed to one ingestion job.
	BatchSize int
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.Extensions == nil {
		o.Extensions = []string{".txt", ".urls"}
	}
	if o.BatchSize <= 0 || o.BatchSize > service.MaxScrapeURLs {
		o.BatchSize = service.MaxScrapeURLs
	}
}

func (o *Options) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range o.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Inbox watches one directory for URL list files.
type Inbox struct {
	dir     string
	ingest  Ingester
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*time.Timer // path -> debounce timer
	mu      sync.Mutex

	ready chan string
	wg    sync.WaitGroup
}

// NewInbox creates the inbox directory if needed and starts watching it.
func NewInbox(dir string, ingest Ingester, logger *slog.Logger, opts Options) (*Inbox, error) {
	opts.setDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch inbox %s: %w", dir, err)
	}

	return &Inbox{
		dir:     filepath.Clean(dir),
		ingest:  ingest,
		logger:  logger,
		opts:    opts,
		watcher: w,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
	}, nil
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Run processes inbox files until ctx is canceled. Files already present at
// startup are picked up as if they had just been written.
func (in *Inbox) Run(ctx context.Context) error {
	defer in.stop()

	in.wg.Add(1)
	go in.work(ctx)

	if entries, err := os.ReadDir(in.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				in.schedule(filepath.Join(in.dir, e.Name()))
			}
		}
	}

	in.logger.Info("inbox watching", "dir", in.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-in.watcher.Events:
			if !ok {
				return nil
			}
			in.handle(event)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("inbox watch error", "error", err)
		}
	}
}

func (in *Inbox) handle(event fsnotify.Event) {
	if !in.opts.accepts(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		in.cancel(event.Name)
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		in.schedule(event.Name)
	}
}

// schedule (re)starts the debounce timer for path.
func (in *Inbox) schedule(path string) {
	if !in.opts.accepts(path) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.opts.Debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()

		select {
		case in.ready <- path:
		default:
			in.logger.Warn("inbox queue full, file will be retried on next write", "path", path)
		}
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) work(ctx context.Context) {
	defer in.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-in.ready:
			in.process(ctx, path)
		}
	}
}

// process ingests one file and renames it so it is not picked up again.
func (in *Inbox) process(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		// Already processed or removed.
		return
	}
	urls, err := ReadURLs(f)
	f.Close()
	if err != nil {
		in.logger.Error("inbox read failed", "path", path, "error", err)
		in.finish(path, FailedSuffix)
		return
	}
	if len(urls) == 0 {
		in.logger.Warn("inbox file has no urls", "path", path)
		in.finish(path, FailedSuffix)
		return
	}

	var succeeded, failed int
	for start := 0; start < len(urls); start += in.opts.BatchSize {
		end := min(start+in.opts.BatchSize, len(urls))
		job, err := in.ingest.Scrape(ctx, urls[start:end], in.opts.Tags)
		if err != nil {
			in.logger.Error("inbox ingestion failed", "path", path, "error", err)
			failed += end - start
			continue
		}
		succeeded += job.Succeeded
		failed += job.Failed
	}

	if ctx.Err() != nil {
		// Leave the file in place so the next run picks it up.
		return
	}

	suffix := DoneSuffix
	if succeeded == 0 {
		suffix = FailedSuffix
	}
	in.logger.Info("inbox file processed",
		"path", path,
		"succeeded", succeeded,
		"failed", failed,
	)
	in.finish(path, suffix)
}

func (in *Inbox) finish(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		in.logger.Error("inbox rename failed", "path", path, "error", err)
	}
}

func (in *Inbox) stop() {
	in.mu.Lock()
	for _, t := range in.pending {
		t.Stop()
	}
	clear(in.pending)
	in.mu.Unlock()

	in.watcher.Close()
	in.wg.Wait()
}

// ReadURLs reads one URL per line, skipping blank lines and lines starting
// with '#'.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
