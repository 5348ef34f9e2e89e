package scraper

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/listenupapp/articlevault/internal/domain"
	apperr "github.com/listenupapp/articlevault/internal/errors"
)

const (
	// UnknownAuthor is used when no author candidate matches.
	UnknownAuthor = "unknown author"

	// SummaryLength is the summary budget in runes, before the ellipsis.
	SummaryLength = 200
)

// Parser errors. Both carry CodeContentInvalid.
var (
	ErrNoTitle   = apperr.ContentInvalid("no title found in page")
	ErrNoContent = apperr.ContentInvalid("no article body found in page")
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Parser extracts article fields from raw markup. It performs no I/O and is
// safe for concurrent use.
type Parser struct {
	now    func() time.Time
	policy *bluemonday.Policy
}

// NewParser creates a Parser. The publish time falls back to the current time.
func NewParser() *Parser {
	return &Parser{
		now:    time.Now,
		policy: bluemonday.UGCPolicy(),
	}
}

// Parse extracts an article from rawHTML fetched from sourceURL. Author and
// publish time have defaults; a missing title returns ErrNoTitle and a missing
// body ErrNoContent.
func (p *Parser) Parse(rawHTML, sourceURL string) (*domain.ArticleData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeContentInvalid, "unparseable markup")
	}

	title := collapse(first(doc, titleCandidates))
	if title == "" {
		return nil, ErrNoTitle
	}

	author := collapse(first(doc, authorCandidates))
	if author == "" {
		author = UnknownAuthor
	}

	publish, ok := parsePublishTime(first(doc, publishTimeCandidates))
	if !ok {
		publish = p.now().UTC()
	}

	content, htmlContent := p.body(doc, rawHTML, sourceURL)
	if content == "" {
		return nil, ErrNoContent
	}

	return &domain.ArticleData{
		Title:         title,
		Author:        author,
		Content:       content,
		HTMLContent:   htmlContent,
		Summary:       Summarize(content),
		CoverImage:    resolve(sourceURL, first(doc, coverCandidates)),
		SourceURL:     sourceURL,
		PublicAccount: collapse(first(doc, accountCandidates)),
		PublishTime:   publish,
	}, nil
}

// body returns the plain text and sanitized HTML of the article body. The
// source template selectors are tried first, then readability.
func (p *Parser) body(doc *goquery.Document, rawHTML, sourceURL string) (string, string) {
	for _, sel := range bodySelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		s.Find("script, style").Remove()
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		inner, err := s.Html()
		if err != nil {
			inner = ""
		}
		return text, strings.TrimSpace(p.policy.Sanitize(inner))
	}

	var base *url.URL
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		base = u
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return "", ""
	}

	var textBuf strings.Builder
	if err := article.RenderText(&textBuf); err != nil {
		return "", ""
	}
	text := strings.TrimSpace(textBuf.String())
	if text == "" {
		return "", ""
	}

	var htmlBuf strings.Builder
	if err := article.RenderHTML(&htmlBuf); err != nil {
		return text, ""
	}
	return text, strings.TrimSpace(p.policy.Sanitize(htmlBuf.String()))
}

// Summarize collapses whitespace and truncates to SummaryLength runes,
// appending "..." when anything was cut.
func Summarize(content string) string {
	s := collapse(content)
	if utf8.RuneCountInString(s) <= SummaryLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:SummaryLength]) + "..."
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// resolve makes ref absolute against base. Protocol-relative and relative
// references are common in image attributes.
func resolve(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
