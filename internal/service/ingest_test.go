package service

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/id"
	"github.com/listenupapp/articlevault/internal/metrics"
	"github.com/listenupapp/articlevault/internal/sse"
	"github.com/listenupapp/articlevault/internal/store"
)

func TestIngest_StoresSuccessesWithTags(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	fake := &fakeScraper{results: map[string]domain.ScrapeResult{
		"https://mp.weixin.qq.com/s/a": okResult("https://mp.weixin.qq.com/s/a", "First"),
		"https://mp.weixin.qq.com/s/b": okResult("https://mp.weixin.qq.com/s/b", "Second"),
	}}
	m := metrics.New()
	svc := NewIngestService(fake, e.articles, e.events, m, e.logger)

	job, err := svc.Scrape(ctx, []string{
		"https://mp.weixin.qq.com/s/a",
		"https://mp.weixin.qq.com/s/missing",
		"https://mp.weixin.qq.com/s/b",
	}, []string{"go", "reading"})
	require.NoError(t, err)

	assert.Regexp(t, `^`+id.PrefixScrapeJob+`-[0-9a-z]{16}$`, job.JobID)
	require.Len(t, job.Results, 3)
	assert.Equal(t, 2, job.Succeeded)
	assert.Equal(t, 1, job.Failed)
	assert.Zero(t, job.Duplicates)
	assert.NotZero(t, job.Results[0].ArticleID)
	assert.False(t, job.Results[1].Success)
	assert.Equal(t, "https://mp.weixin.qq.com/s/missing", job.Results[1].URL)

	stored, err := e.articles.GetByID(ctx, job.Results[2].ArticleID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Second", stored.Title)
	assert.Equal(t, []string{"go", "reading"}, stored.Tags)

	expected := `
# HELP articlevault_articles_stored_total Articles persisted by ingestion.
# TYPE articlevault_articles_stored_total counter
articlevault_articles_stored_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "articlevault_articles_stored_total"))
}

func TestIngest_SkipsKnownURLs(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	url := "https://mp.weixin.qq.com/s/known"
	existing, err := e.articles.Create(ctx, domain.NewArticle{Title: "Known", Content: "c", SourceURL: url})
	require.NoError(t, err)

	fake := &fakeScraper{results: map[string]domain.ScrapeResult{url: okResult(url, "Known")}}
	svc := NewIngestService(fake, e.articles, e.events, nil, e.logger)

	job, err := svc.Scrape(ctx, []string{url, url}, nil)
	require.NoError(t, err)

	assert.Empty(t, fake.seen, "known urls are not fetched")
	assert.Equal(t, 2, job.Duplicates)
	assert.Equal(t, 2, job.Succeeded)
	for _, r := range job.Results {
		assert.True(t, r.Duplicate)
		assert.Equal(t, existing, r.ArticleID)
	}

	page, err := e.articles.Query(ctx, store.ArticleFilter{}, store.PageParams{}, store.Sort{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestIngest_DuplicateWithinJob(t *testing.T) {
	e := setupEnv(t)
	url := "https://mp.weixin.qq.com/s/twice"
	fake := &fakeScraper{results: map[string]domain.ScrapeResult{url: okResult(url, "Twice")}}
	svc := NewIngestService(fake, e.articles, e.events, nil, e.logger)

	job, err := svc.Scrape(context.Background(), []string{url, url}, nil)
	require.NoError(t, err)

	assert.False(t, job.Results[0].Duplicate)
	assert.True(t, job.Results[1].Duplicate)
	assert.Equal(t, job.Results[0].ArticleID, job.Results[1].ArticleID)
	assert.Equal(t, 1, job.Duplicates)
}

func TestIngest_PublishesProgressAndCompletion(t *testing.T) {
	e := setupEnv(t)
	url := "https://mp.weixin.qq.com/s/p"
	fake := &fakeScraper{results: map[string]domain.ScrapeResult{url: okResult(url, "Progress")}}
	svc := NewIngestService(fake, e.articles, e.events, nil, e.logger)

	job, err := svc.Scrape(context.Background(), []string{url}, nil)
	require.NoError(t, err)

	progress := e.events.ofType(sse.EventScrapeProgress)
	require.Len(t, progress, 2)
	last := progress[1].Data.(sse.ScrapeProgressEventData)
	assert.Equal(t, job.JobID, last.JobID)
	assert.Equal(t, 1, last.Current)
	assert.Equal(t, 1, last.Total)
	assert.Equal(t, domain.ProgressCompleted, last.Status)

	completed := e.events.ofType(sse.EventScrapeCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, sse.ScrapeCompletedEventData{JobID: job.JobID, Total: 1, Succeeded: 1}, completed[0].Data)

	assert.Len(t, e.events.ofType(sse.EventArticleCreated), 1)
}

func TestIngest_Validation(t *testing.T) {
	e := setupEnv(t)
	svc := NewIngestService(&fakeScraper{}, e.articles, nil, nil, e.logger)

	_, err := svc.Scrape(context.Background(), nil, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	many := make([]string, MaxScrapeURLs+1)
	_, err = svc.Scrape(context.Background(), many, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
