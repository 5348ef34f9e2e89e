// Package domain contains the core types shared by the scraper, the storage
// layer and the HTTP boundary.
package domain

import "time"

// Article is a stored content record. ID and the timestamps are assigned by
// the store.
type Article struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author,omitempty"`
	Content       string     `json:"content"`
	HTMLContent   string     `json:"html_content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	CoverImage    string     `json:"cover_image,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"`
	PublicAccount string     `json:"public_account,omitempty"`
	PublishTime   *time.Time `json:"publish_time,omitempty"`
	ReadCount     int        `json:"read_count"`
	LikeCount     int        `json:"like_count"`
	IsFavorite    bool       `json:"is_favorite"`
	IsArchived    bool       `json:"is_archived"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Tags          []string   `json:"tags"`
}

// NewArticle holds the caller-supplied fields of an article about to be created.
type NewArticle struct {
	Title         string
	Author        string
	Content       string
	HTMLContent   string
	Summary       string
	CoverImage    string
	SourceURL     string
	PublicAccount string
	PublishTime   *time.Time
	Tags          []string
}

// ArticleUpdate is a partial update. Nil fields are left untouched. A non-nil
// Tags slice, even an empty one, replaces the full tag set of the article.
type ArticleUpdate struct {
	Title         *string
	Author        *string
	Content       *string
	HTMLContent   *string
	Summary       *string
	CoverImage    *string
	SourceURL     *string
	PublicAccount *string
	PublishTime   *time.Time
	IsFavorite    *bool
	IsArchived    *bool
	Tags          []string
}

// HasScalarChanges reports whether any column-level field is set.
func (u ArticleUpdate) HasScalarChanges() bool {
	return u.Title != nil || u.Author != nil || u.Content != nil ||
		u.HTMLContent != nil || u.Summary != nil || u.CoverImage != nil ||
		u.SourceURL != nil || u.PublicAccount != nil || u.PublishTime != nil ||
		u.IsFavorite != nil || u.IsArchived != nil
}

// IsEmpty reports whether the update requests nothing at all.
func (u ArticleUpdate) IsEmpty() bool {
	return !u.HasScalarChanges() && u.Tags == nil
}

// ArticleStats aggregates counters over the whole library.
type ArticleStats struct {
	Total          int `json:"total"`
	FavoriteCount  int `json:"favorite_count"`
	ArchivedCount  int `json:"archived_count"`
	TotalReadCount int `json:"total_read_count"`
}

// NameCount is a distinct label with the number of articles carrying it.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
