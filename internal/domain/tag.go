package domain

import "time"

// DefaultTagColor is applied to tags created without an explicit color.
const DefaultTagColor = "#1890ff"

// MaxTagNameLength bounds tag names accepted from callers.
const MaxTagNameLength = 50

// Tag is a named label attachable to many articles. ArticleCount is
// denormalized and always equals the number of associations referencing it.
type Tag struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Color        string    `json:"color"`
	Description  string    `json:"description,omitempty"`
	ArticleCount int       `json:"article_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TagUpdate is a partial tag update. Nil fields are left untouched.
type TagUpdate struct {
	Name        *string
	Color       *string
	Description *string
}

// RelatedTag is a tag co-occurring with another one.
type RelatedTag struct {
	Tag
	CoOccurrence int `json:"co_occurrence"`
}

// TagStats summarizes tag usage.
type TagStats struct {
	Total             int `json:"total"`
	Used              int `json:"used"`
	Unused            int `json:"unused"`
	TotalAssociations int `json:"total_associations"`
}
