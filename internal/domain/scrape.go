package domain

import "time"

// ArticleData is the structured output of the parser for one page.
type ArticleData struct {
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Content       string    `json:"content"`
	HTMLContent   string    `json:"html_content,omitempty"`
	Summary       string    `json:"summary"`
	CoverImage    string    `json:"cover_image,omitempty"`
	SourceURL     string    `json:"source_url"`
	PublicAccount string    `json:"public_account,omitempty"`
	PublishTime   time.Time `json:"publish_time"`
}

// ToNewArticle converts parsed data into a create request carrying tags.
func (d *ArticleData) ToNewArticle(tags []string) NewArticle {
	publish := d.PublishTime
	return NewArticle{
		Title:         d.Title,
		Author:        d.Author,
		Content:       d.Content,
		HTMLContent:   d.HTMLContent,
		Summary:       d.Summary,
		CoverImage:    d.CoverImage,
		SourceURL:     d.SourceURL,
		PublicAccount: d.PublicAccount,
		PublishTime:   &publish,
		Tags:          tags,
	}
}

// ScrapeStage is a state in the per-URL scrape state machine.
type ScrapeStage string

// Scrape stages in the order a URL moves through them.
const (
	StageValidating ScrapeStage = "validating"
	StageFetching   ScrapeStage = "fetching"
	StageParsing    ScrapeStage = "parsing"
	StageSuccess    ScrapeStage = "success"
	StageFailed     ScrapeStage = "failed"
)

// ScrapeResult is the terminal outcome for a single URL. Stage is always
// StageSuccess or StageFailed; FailedAt names the stage that failed.
type ScrapeResult struct {
	URL        string        `json:"url"`
	Success    bool          `json:"success"`
	Stage      ScrapeStage   `json:"stage"`
	FailedAt   ScrapeStage   `json:"failed_at,omitempty"`
	Data       *ArticleData  `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
	RetryCount int           `json:"retry_count"`
	Duration   time.Duration `json:"duration"`
}

// ProgressStatus is the state of the item a progress tick refers to.
type ProgressStatus string

// Progress statuses reported while a batch advances.
const (
	ProgressPending    ProgressStatus = "pending"
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressError      ProgressStatus = "error"
)

// ScrapeProgress is emitted as a batch advances.
type ScrapeProgress struct {
	Current     int            `json:"current"`
	Total       int            `json:"total"`
	CurrentItem string         `json:"current_item"`
	Status      ProgressStatus `json:"status"`
}
