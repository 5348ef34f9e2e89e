package search

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
)

const (
	titleAnalyzerName = "article_title"
	wordAnalyzerName  = "article_words"

	// similarKeywordLimit is how many title words drive FindSimilar.
	similarKeywordLimit = 5
)

// Keyword is a term with its frequency.
type Keyword struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// KeywordExtractor pulls meaningful words out of article text using bleve's
// analysis pipeline, without an index behind it.
//
// Two analyzers are registered:
//   - article_title splits on whitespace only, so a title word keeps its shape
//     (used by FindSimilar).
//   - article_words uses the unicode word tokenizer (used by HotKeywords).
//
// Both lowercase tokens and drop English stop words.
type KeywordExtractor struct {
	title analysis.Analyzer
	words analysis.Analyzer
}

// NewKeywordExtractor builds the analyzers.
func NewKeywordExtractor() (*KeywordExtractor, error) {
	m := bleve.NewIndexMapping()

	if err := m.AddCustomAnalyzer(titleAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name, en.StopName},
	}); err != nil {
		return nil, fmt.Errorf("define title analyzer: %w", err)
	}
	if err := m.AddCustomAnalyzer(wordAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, en.StopName},
	}); err != nil {
		return nil, fmt.Errorf("define word analyzer: %w", err)
	}

	title := m.AnalyzerNamed(titleAnalyzerName)
	words := m.AnalyzerNamed(wordAnalyzerName)
	if title == nil || words == nil {
		return nil, fmt.Errorf("keyword analyzers not registered")
	}
	return &KeywordExtractor{title: title, words: words}, nil
}

// TitleKeywords returns up to limit distinct title words longer than one
// character, in title order.
func (k *KeywordExtractor) TitleKeywords(title string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range k.title.Analyze([]byte(title)) {
		term := string(tok.Term)
		if utf8.RuneCountInString(term) <= 1 || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Count tallies words across texts and returns the limit most frequent,
// ties broken alphabetically. Single-character words and pure numbers are
// skipped.
func (k *KeywordExtractor) Count(texts []string, limit int) []Keyword {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range k.words.Analyze([]byte(text)) {
			term := string(tok.Term)
			if utf8.RuneCountInString(term) <= 1 || isNumeric(term) {
				continue
			}
			counts[term]++
		}
	}

	out := make([]Keyword, 0, len(counts))
	for term, n := range counts {
		out = append(out, Keyword{Keyword: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
