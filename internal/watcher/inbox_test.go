package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/service"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls [][]string
	tags  []string
	ok    map[string]bool
	err   error
}

func (f *fakeIngester) Scrape(_ context.Context, urls []string, tags []string) (*service.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, urls)
	f.tags = tags
	if f.err != nil {
		return nil, f.err
	}

	job := &service.ScrapeJob{JobID: "scrape_test"}
	for _, u := range urls {
		r := service.IngestResult{ScrapeResult: domain.ScrapeResult{URL: u, Success: f.ok[u]}}
		if r.Success {
			job.Succeeded++
		} else {
			job.Failed++
		}
		job.Results = append(job.Results, r)
	}
	return job, nil
}

func (f *fakeIngester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func startInbox(t *testing.T, ing Ingester, opts Options) string {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inbox, err := NewInbox(dir, ing, logger, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = inbox.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give Run a moment to start consuming events.
	time.Sleep(20 * time.Millisecond)
	return dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestReadURLs(t *testing.T) {
	input := "# reading list\n\nhttps://a.example/1\n  https://a.example/2  \n#https://skipped\n"
	urls, err := ReadURLs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, urls)

	urls, err = ReadURLs(strings.NewReader("\n# only comments\n"))
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestOptions_Accepts(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	testCases := []struct {
		path     string
		expected bool
	}{
		{"/in/list.txt", true},
		{"/in/list.URLS", true},
		{"/in/list.txt.done", false},
		{"/in/list.txt.failed", false},
		{"/in/.hidden.txt", false},
		{"/in/notes.md", false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, opts.accepts(tc.path))
		})
	}
}

func TestInbox_ProcessesDroppedFile(t *testing.T) {
	ing := &fakeIngester{ok: map[string]bool{"https://a.example/1": true}}
	dir := startInbox(t, ing, Options{Tags: []string{"inbox"}})

	path := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.example/1\n# comment\nhttps://a.example/2\n"), 0o644))

	require.Eventually(t, func() bool { return exists(path + DoneSuffix) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, exists(path))

	ing.mu.Lock()
	defer ing.mu.Unlock()
	require.Len(t, ing.calls, 1)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, ing.calls[0])
	assert.Equal(t, []string{"inbox"}, ing.tags)
}

func TestInbox_AllFailedMarksFailed(t *testing.T) {
	ing := &fakeIngester{}
	dir := startInbox(t, ing, Options{})

	path := filepath.Join(dir, "bad.urls")
	require.NoError(t, os.WriteFile(path, []byte("https://a.example/x\n"), 0o644))

	require.Eventually(t, func() bool { return exists(path + FailedSuffix) }, 2*time.Second, 10*time.Millisecond)
}

func TestInbox_IngestErrorMarksFailed(t *testing.T) {
	ing := &fakeIngester{err: errors.New("boom")}
	dir := startInbox(t, ing, Options{})

	path := filepath.Join(dir, "err.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.example/x\n"), 0o644))

	require.Eventually(t, func() bool { return exists(path + FailedSuffix) }, 2*time.Second, 10*time.Millisecond)
}

func TestInbox_IgnoresOtherFiles(t *testing.T) {
	ing := &fakeIngester{}
	dir := startInbox(t, ing, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("https://a.example/1\n"), 0o644))
	time.Sleep(150 * time.Millisecond)

	assert.Zero(t, ing.callCount())
	assert.True(t, exists(filepath.Join(dir, "notes.md")))
}

func TestInbox_SplitsLargeLists(t *testing.T) {
	ing := &fakeIngester{ok: map[string]bool{}}
	var b strings.Builder
	for i := range 5 {
		u := "https://a.example/" + string(rune('a'+i))
		ing.ok[u] = true
		b.WriteString(u + "\n")
	}
	dir := startInbox(t, ing, Options{BatchSize: 2})

	path := filepath.Join(dir, "many.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	require.Eventually(t, func() bool { return exists(path + DoneSuffix) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, ing.callCount())
}

func TestInbox_PicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waiting.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.example/1\n"), 0o644))

	ing := &fakeIngester{ok: map[string]bool{"https://a.example/1": true}}
	inbox, err := NewInbox(dir, ing, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(dir), inbox.Dir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = inbox.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return exists(path + DoneSuffix) }, 2*time.Second, 10*time.Millisecond)
}
