package search

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field is an indexed article column.
type Field string

// Indexed fields, in index column order.
const (
	FieldTitle   Field = "title"
	FieldAuthor  Field = "author"
	FieldContent Field = "content"
	FieldSummary Field = "summary"
)

// AllFields lists every indexed field.
var AllFields = []Field{FieldTitle, FieldAuthor, FieldContent, FieldSummary}

// DefaultFields are searched when a request names none.
var DefaultFields = []Field{FieldTitle, FieldContent}

// MatchAll is returned by BuildQuery when the input has no usable terms.
// Callers treat it as "no full-text predicate".
const MatchAll = "*"

// unsafeChars matches everything except ASCII word characters, whitespace and
// the CJK unified ideographs block.
var unsafeChars = regexp.MustCompile(`[^0-9A-Za-z_\s\x{4e00}-\x{9fa5}]`)

// Terms normalizes raw input (NFKC) and splits it into safe terms.
func Terms(raw string) []string {
	cleaned := unsafeChars.ReplaceAllString(norm.NFKC.String(raw), " ")
	return strings.Fields(cleaned)
}

// ParseFields keeps the known fields from names, in order and without
// duplicates. An empty result falls back to DefaultFields.
func ParseFields(names []string) []Field {
	var fields []Field
	for _, n := range names {
		f := Field(strings.ToLower(strings.TrimSpace(n)))
		if slices.Contains(AllFields, f) && !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return DefaultFields
	}
	return fields
}

// BuildQuery turns free text into an FTS5 expression. Every term becomes a
// prefix match in every field and all clauses are OR-combined:
//
//	BuildQuery("go sql", title, content)
//	=> title:"go"* OR title:"sql"* OR content:"go"* OR content:"sql"*
//
// Terms are quoted so words like OR or NEAR are never read as operators.
// Input with no usable terms yields MatchAll.
func BuildQuery(raw string, fields ...Field) string {
	terms := Terms(raw)
	if len(terms) == 0 {
		return MatchAll
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	clauses := make([]string, 0, len(terms)*len(fields))
	for _, f := range fields {
		for _, t := range terms {
			clauses = append(clauses, string(f)+`:"`+t+`"*`)
		}
	}
	return strings.Join(clauses, " OR ")
}

// buildConjunction requires every term of text in field, as prefix matches.
// It returns "" when text has no usable terms.
func buildConjunction(field Field, text string) string {
	terms := Terms(text)
	if len(terms) == 0 {
		return ""
	}
	clauses := make([]string, len(terms))
	for i, t := range terms {
		clauses[i] = string(field) + `:"` + t + `"*`
	}
	return "(" + strings.Join(clauses, " AND ") + ")"
}

// anyOf OR-combines exact terms across every field.
func anyOf(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
