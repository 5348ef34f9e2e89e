package export

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/listenupapp/articlevault/internal/domain"
)

// htmlTagPattern detects whether a string carries block or inline markup.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote|img|section|pre|code)[\s>/]`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// htmlToMarkdown converts HTML content to Markdown. Input without markup is
// returned unchanged, and so is input the converter rejects.
func htmlToMarkdown(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}

	return strings.TrimSpace(markdown)
}

// articleBody prefers the rendered HTML variant and falls back to plain text.
func articleBody(a *domain.Article) string {
	if md := htmlToMarkdown(a.HTMLContent); strings.TrimSpace(md) != "" {
		return md
	}
	return strings.TrimSpace(a.Content)
}

// writeMarkdown renders one article as front matter plus body.
func writeMarkdown(w io.Writer, a *domain.Article) error {
	var b strings.Builder
	b.WriteString("---\n")
	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, strconv.Quote(value))
		}
	}
	fmt.Fprintf(&b, "id: %d\n", a.ID)
	field("title", a.Title)
	field("author", a.Author)
	field("account", a.PublicAccount)
	field("source", a.SourceURL)
	if a.PublishTime != nil {
		field("published", a.PublishTime.UTC().Format(time.RFC3339))
	}
	if len(a.Tags) > 0 {
		quoted := make([]string, len(a.Tags))
		for i, t := range a.Tags {
			quoted[i] = strconv.Quote(t)
		}
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(quoted, ", "))
	}
	fmt.Fprintf(&b, "favorite: %t\n", a.IsFavorite)
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	if a.CoverImage != "" {
		fmt.Fprintf(&b, "![cover](%s)\n\n", a.CoverImage)
	}
	b.WriteString(articleBody(a))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
