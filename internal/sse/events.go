// Package sse implements Server-Sent Events for scrape progress and library
// change notifications.
package sse

import (
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventScrapeProgress reports one batch progress tick.
	EventScrapeProgress EventType = "scrape.progress"
	// EventScrapeCompleted reports the end of a scrape job.
	EventScrapeCompleted EventType = "scrape.completed"

	// EventArticleCreated represents an article creation event.
	EventArticleCreated EventType = "article.created"
	// EventArticleUpdated represents an article update event.
	EventArticleUpdated EventType = "article.updated"
	// EventArticleDeleted represents one or more deleted articles.
	EventArticleDeleted EventType = "article.deleted"

	EventTagCreated EventType = "tag.created"
	EventTagUpdated EventType = "tag.updated"
	EventTagDeleted EventType = "tag.deleted"
	EventTagMerged  EventType = "tag.merged"

	// EventIndexRebuilt is sent after the search index is rebuilt or optimized.
	EventIndexRebuilt EventType = "search.rebuilt"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Topic is the part of the event type before the dot, e.g. "scrape".
func (t EventType) Topic() string {
	topic, _, _ := strings.Cut(string(t), ".")
	return topic
}

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ScrapeProgressEventData is the payload of scrape.progress.
type ScrapeProgressEventData struct {
	JobID string `json:"job_id"`
	domain.ScrapeProgress
}

// ScrapeCompletedEventData is the payload of scrape.completed.
type ScrapeCompletedEventData struct {
	JobID      string `json:"job_id"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
}

// ArticleEventData is the payload of article.created and article.updated.
type ArticleEventData struct {
	Article *domain.Article `json:"article"`
}

// ArticleDeletedEventData is the payload of article.deleted.
type ArticleDeletedEventData struct {
	IDs []int64 `json:"ids"`
}

// TagEventData is the payload of tag.created and tag.updated.
type TagEventData struct {
	Tag *domain.Tag `json:"tag"`
}

// TagDeletedEventData is the payload of tag.deleted.
type TagDeletedEventData struct {
	IDs []int64 `json:"ids"`
}

// TagMergedEventData is the payload of tag.merged.
type TagMergedEventData struct {
	SourceID int64 `json:"source_id"`
	TargetID int64 `json:"target_id"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewScrapeProgressEvent creates a scrape.progress event.
func NewScrapeProgressEvent(jobID string, p domain.ScrapeProgress) Event {
	return newEvent(EventScrapeProgress, ScrapeProgressEventData{JobID: jobID, ScrapeProgress: p})
}

// NewScrapeCompletedEvent creates a scrape.completed event.
func NewScrapeCompletedEvent(data ScrapeCompletedEventData) Event {
	return newEvent(EventScrapeCompleted, data)
}

// NewArticleCreatedEvent creates an article.created event.
func NewArticleCreatedEvent(a *domain.Article) Event {
	return newEvent(EventArticleCreated, ArticleEventData{Article: a})
}

// NewArticleUpdatedEvent creates an article.updated event.
func NewArticleUpdatedEvent(a *domain.Article) Event {
	return newEvent(EventArticleUpdated, ArticleEventData{Article: a})
}

// NewArticleDeletedEvent creates an article.deleted event.
func NewArticleDeletedEvent(ids ...int64) Event {
	return newEvent(EventArticleDeleted, ArticleDeletedEventData{IDs: ids})
}

// NewTagCreatedEvent creates a tag.created event.
func NewTagCreatedEvent(t *domain.Tag) Event {
	return newEvent(EventTagCreated, TagEventData{Tag: t})
}

// NewTagUpdatedEvent creates a tag.updated event.
func NewTagUpdatedEvent(t *domain.Tag) Event {
	return newEvent(EventTagUpdated, TagEventData{Tag: t})
}

// NewTagDeletedEvent creates a tag.deleted event.
func NewTagDeletedEvent(ids ...int64) Event {
	return newEvent(EventTagDeleted, TagDeletedEventData{IDs: ids})
}

// NewTagMergedEvent creates a tag.merged event.
func NewTagMergedEvent(sourceID, targetID int64) Event {
	return newEvent(EventTagMerged, TagMergedEventData{SourceID: sourceID, TargetID: targetID})
}

// NewIndexRebuiltEvent creates a search.rebuilt event.
func NewIndexRebuiltEvent(operation string) Event {
	return newEvent(EventIndexRebuilt, map[string]string{"operation": operation})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
