package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// candidate extracts one field value from a document. An empty result means
// "try the next candidate".
type candidate func(doc *goquery.Document) string

// text returns the trimmed text of the first match of sel.
func text(sel string) candidate {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(sel).First().Text())
	}
}

// textAt returns the trimmed text of the i-th match of sel.
func textAt(sel string, i int) candidate {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(sel).Eq(i).Text())
	}
}

// attr returns the trimmed attribute of the first match of sel.
func attr(sel, name string) candidate {
	return func(doc *goquery.Document) string {
		v, _ := doc.Find(sel).First().Attr(name)
		return strings.TrimSpace(v)
	}
}

// meta returns the content of a <meta property=...> or <meta name=...> tag.
func meta(key string) candidate {
	return func(doc *goquery.Document) string {
		for _, sel := range []string{`meta[property="` + key + `"]`, `meta[name="` + key + `"]`} {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
}

// scriptVar pulls `var name = "value"` style assignments out of inline
// scripts, which some page templates use instead of markup.
func scriptVar(name string) candidate {
	re := regexp.MustCompile(`var\s+` + regexp.QuoteMeta(name) + `\s*=\s*(?:htmlDecode\()?["']([^"']*)["']`)
	return func(doc *goquery.Document) string {
		var found string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := re.FindStringSubmatch(s.Text()); m != nil && strings.TrimSpace(m[1]) != "" {
				found = strings.TrimSpace(m[1])
				return false
			}
			return true
		})
		return found
	}
}

// first runs candidates in order and returns the first non-empty value.
func first(doc *goquery.Document, candidates []candidate) string {
	for _, c := range candidates {
		if v := c(doc); v != "" {
			return v
		}
	}
	return ""
}

var (
	titleCandidates = []candidate{
		text("#activity-name"),
		text("h1.rich_media_title"),
		text("h2.rich_media_title"),
		meta("og:title"),
		meta("twitter:title"),
		text("title"),
	}

	authorCandidates = []candidate{
		text("#js_name"),
		text(".rich_media_meta_text"),
		text("a.rich_media_meta_link"),
		meta("author"),
		meta("og:article:author"),
	}

	accountCandidates = []candidate{
		text("#js_name"),
		text(".profile_nickname"),
		scriptVar("nickname"),
		meta("og:site_name"),
	}

	publishTimeCandidates = []candidate{
		text("#publish_time"),
		textAt(".rich_media_meta_text", 1),
		meta("article:published_time"),
		scriptVar("ct"),
	}

	coverCandidates = []candidate{
		attr("#js_cover", "src"),
		attr(".rich_media_thumb", "src"),
		meta("og:image"),
		scriptVar("msg_cdn_url"),
		attr("img", "src"),
		attr("img", "data-src"),
	}

	bodySelectors = []string{
		"#js_content",
		".rich_media_content",
	}
)

// sourceZone is the zone publish times without an explicit offset are read in.
var sourceZone = time.FixedZone("UTC+8", 8*60*60)

var publishTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006年01月02日 15:04",
	"2006年01月02日",
	"2006年1月2日 15:04",
	"2006年1月2日",
}

var digitsOnly = regexp.MustCompile(`^\d{9,13}$`)

// parsePublishTime accepts the layouts above and unix timestamps in seconds
// or milliseconds. ok is false when nothing matched.
func parsePublishTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if digitsOnly.MatchString(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		if len(raw) >= 13 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range publishTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, sourceZone); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
