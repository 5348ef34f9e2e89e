package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/articlevault/internal/api/dto"
	"github.com/listenupapp/articlevault/internal/export"
)

func (s *Server) registerExportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exportArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/export",
		Summary:     "Export articles",
		Description: "Streams the filtered articles as Markdown, JSON or CSV, oldest first",
		Tags:        []string{"Export"},
	}, s.handleExport)
}

// ExportInput contains parameters for exporting articles.
type ExportInput struct {
	Format string `query:"format" default:"markdown" enum:"markdown,md,json,csv" doc:"Output format"`
	dto.ArticleFilterParams
}

func (s *Server) handleExport(_ context.Context, input *ExportInput) (*huma.StreamResponse, error) {
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}
	filter, err := input.ArticleFilterParams.ToStore()
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("articles-%s.%s", time.Now().Format("20060102-150405"), format.Extension())

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			hctx.SetHeader("Content-Type", format.ContentType())
			hctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

			n, err := s.services.Export.Write(hctx.Context(), hctx.BodyWriter(), format, filter)
			if err != nil {
				// Headers are already sent; the truncated body is all we can signal.
				s.logger.Error("Export failed", "format", format, "written", n, "error", err)
				return
			}
			s.logger.Info("Export finished", "format", format, "articles", n)
		},
	}, nil
}
