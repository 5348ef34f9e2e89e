// Package export writes selected articles as JSON, CSV or Markdown.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
)

// Format is an export encoding.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, csv, markdown and md, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", apperr.Validationf("unsupported export format %q", s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension is the file extension of the format, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Source is where articles are read from.
type Source interface {
	ListIDs(ctx context.Context, filter store.ArticleFilter, sort store.Sort) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Article, error)
}

// Writer streams articles from a Source.
type Writer struct {
	source Source
}

// NewWriter creates a Writer.
func NewWriter(source Source) *Writer {
	return &Writer{source: source}
}

// Write exports every article matching filter, oldest first, and returns how
// many were written. Articles are read one at a time so memory stays flat.
func (x *Writer) Write(ctx context.Context, w io.Writer, format Format, filter store.ArticleFilter) (int, error) {
	ids, err := x.source.ListIDs(ctx, filter, store.Sort{Field: store.SortCreatedAt, Order: store.OrderAsc})
	if err != nil {
		return 0, err
	}

	var enc encoder
	switch format {
	case FormatJSON:
		enc = &jsonEncoder{w: w}
	case FormatCSV:
		enc = newCSVEncoder(w)
	case FormatMarkdown:
		enc = &markdownEncoder{w: w}
	default:
		return 0, apperr.Validationf("unsupported export format %q", format)
	}

	if err := enc.begin(); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		a, err := x.source.GetByID(ctx, id)
		if err != nil {
			return n, err
		}
		if a == nil {
			// Deleted since ListIDs.
			continue
		}
		if err := enc.article(a); err != nil {
			return n, fmt.Errorf("export article %d: %w", id, err)
		}
		n++
	}
	return n, enc.end()
}

type encoder interface {
	begin() error
	article(a *domain.Article) error
	end() error
}

type jsonEncoder struct {
	w     io.Writer
	count int
}

func (e *jsonEncoder) begin() error {
	_, err := io.WriteString(e.w, "[")
	return err
}

func (e *jsonEncoder) article(a *domain.Article) error {
	data, err := json.MarshalIndent(a, "  ", "  ")
	if err != nil {
		return err
	}
	sep := "\n  "
	if e.count > 0 {
		sep = ",\n  "
	}
	e.count++
	if _, err := io.WriteString(e.w, sep); err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

func (e *jsonEncoder) end() error {
	tail := "]\n"
	if e.count > 0 {
		tail = "\n]\n"
	}
	_, err := io.WriteString(e.w, tail)
	return err
}

// CSVHeader is the first row of CSV exports.
var CSVHeader = []string{
	"id", "title", "author", "public_account", "source_url", "publish_time",
	"tags", "read_count", "like_count", "is_favorite", "is_archived",
	"created_at", "summary",
}

type csvEncoder struct {
	w *csv.Writer
}

func newCSVEncoder(w io.Writer) *csvEncoder {
	return &csvEncoder{w: csv.NewWriter(w)}
}

func (e *csvEncoder) begin() error {
	return e.w.Write(CSVHeader)
}

func (e *csvEncoder) article(a *domain.Article) error {
	publish := ""
	if a.PublishTime != nil {
		publish = a.PublishTime.UTC().Format(time.RFC3339)
	}
	return e.w.Write([]string{
		strconv.FormatInt(a.ID, 10),
		a.Title,
		a.Author,
		a.PublicAccount,
		a.SourceURL,
		publish,
		strings.Join(a.Tags, ";"),
		strconv.Itoa(a.ReadCount),
		strconv.Itoa(a.LikeCount),
		strconv.FormatBool(a.IsFavorite),
		strconv.FormatBool(a.IsArchived),
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.Summary,
	})
}

func (e *csvEncoder) end() error {
	e.w.Flush()
	return e.w.Error()
}

type markdownEncoder struct {
	w     io.Writer
	count int
}

func (e *markdownEncoder) begin() error { return nil }

func (e *markdownEncoder) article(a *domain.Article) error {
	if e.count > 0 {
		if _, err := io.WriteString(e.w, "\n"); err != nil {
			return err
		}
	}
	e.count++
	return writeMarkdown(e.w, a)
}

func (e *markdownEncoder) end() error { return nil }
