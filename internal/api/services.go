package api

import (
	"context"

	"github.com/listenupapp/articlevault/internal/export"
	"github.com/listenupapp/articlevault/internal/service"
)

// Services groups all business logic services used by the API server.
type Services struct {
	Article *service.ArticleService
	Tag     *service.TagService
	Search  *service.SearchService
	Ingest  *service.IngestService
	Export  *export.Writer
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}
