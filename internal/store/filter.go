package store

import (
	"strings"
	"time"
)

// ArticleFilter narrows article listings and searches. Zero values mean
// "no constraint".
type ArticleFilter struct {
	IsFavorite    *bool
	IsArchived    *bool
	PublicAccount string
	Author        string
	Tag           string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// Predicates renders the filter as SQL conditions against the articles table
// aliased as alias. Tag membership uses an EXISTS sub-query so rows are never
// duplicated.
func (f ArticleFilter) Predicates(alias string) ([]string, []any) {
	col := func(name string) string { return alias + "." + name }

	var (
		conds []string
		args  []any
	)
	if f.IsFavorite != nil {
		conds = append(conds, col("is_favorite")+" = ?")
		args = append(args, *f.IsFavorite)
	}
	if f.IsArchived != nil {
		conds = append(conds, col("is_archived")+" = ?")
		args = append(args, *f.IsArchived)
	}
	if f.PublicAccount != "" {
		conds = append(conds, col("public_account")+" = ?")
		args = append(args, f.PublicAccount)
	}
	if f.Author != "" {
		conds = append(conds, col("author")+" = ?")
		args = append(args, f.Author)
	}
	if f.Tag != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM article_tags at
			JOIN tags t ON t.id = at.tag_id
			WHERE at.article_id = `+col("id")+` AND t.name = ?)`)
		args = append(args, f.Tag)
	}
	if f.CreatedFrom != nil {
		conds = append(conds, col("created_at")+" >= ?")
		args = append(args, f.CreatedFrom.UnixMilli())
	}
	if f.CreatedTo != nil {
		conds = append(conds, col("created_at")+" <= ?")
		args = append(args, f.CreatedTo.UnixMilli())
	}
	return conds, args
}

// Where joins conditions into a WHERE clause, or returns "" for none.
func Where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// SortField is a sortable article column.
type SortField string

// Sortable columns. Anything else falls back to SortCreatedAt.
const (
	SortCreatedAt   SortField = "created_at"
	SortPublishTime SortField = "publish_time"
	SortUpdatedAt   SortField = "updated_at"
	SortReadCount   SortField = "read_count"
	SortLikeCount   SortField = "like_count"
)

var sortFields = map[SortField]bool{
	SortCreatedAt:   true,
	SortPublishTime: true,
	SortUpdatedAt:   true,
	SortReadCount:   true,
	SortLikeCount:   true,
}

// SortOrder is ascending or descending.
type SortOrder string

// Sort orders.
const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Sort selects the ordering of a listing.
type Sort struct {
	Field SortField
	Order SortOrder
}

// ParseSort builds a Sort from untrusted input, falling back to newest first.
func ParseSort(field, order string) Sort {
	s := Sort{Field: SortField(strings.ToLower(field)), Order: SortOrder(strings.ToLower(order))}
	if !sortFields[s.Field] {
		s.Field = SortCreatedAt
	}
	if s.Order != OrderAsc {
		s.Order = OrderDesc
	}
	return s
}

// OrderBy renders the ORDER BY clause for the articles table aliased as alias.
// The id tie-breaker keeps ordering stable between identical queries.
func (s Sort) OrderBy(alias string) string {
	normalized := ParseSort(string(s.Field), string(s.Order))
	dir := "DESC"
	if normalized.Order == OrderAsc {
		dir = "ASC"
	}
	return " ORDER BY " + alias + "." + string(normalized.Field) + " " + dir + ", " + alias + ".id " + dir
}
