package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/articlevault/internal/api/dto"
	"github.com/listenupapp/articlevault/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search articles",
		Description: "Ranked full-text search with highlighted snippets, combined with article filters",
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "advancedSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/advanced",
		Summary:     "Advanced search",
		Description: "Every supplied field must contain all of its terms; account is an exact match",
		Tags:        []string{"Search"},
	}, s.handleAdvancedSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "quickSearch",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/quick",
		Summary:     "Quick search",
		Description: "Prefix matching on titles, for search-as-you-type",
		Tags:        []string{"Search"},
	}, s.handleQuickSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchSuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/suggest",
		Summary:     "Search suggestions",
		Description: "Prefix completions from titles, authors, accounts and tags",
		Tags:        []string{"Search"},
	}, s.handleSuggest)

	huma.Register(s.api, huma.Operation{
		OperationID: "hotKeywords",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/hot",
		Summary:     "Hot keywords",
		Description: "Most frequent title terms of recent articles",
		Tags:        []string{"Search"},
	}, s.handleHotKeywords)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/stats",
		Summary:     "Search index statistics",
		Description: "Returns how many articles are indexed",
		Tags:        []string{"Search"},
	}, s.handleSearchStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "rebuildSearchIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/rebuild",
		Summary:     "Rebuild search index",
		Description: "Rebuilds the full-text index from the articles table",
		Tags:        []string{"Search"},
	}, s.handleRebuildIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "optimizeSearchIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/optimize",
		Summary:     "Optimize search index",
		Description: "Merges index segments",
		Tags:        []string{"Search"},
	}, s.handleOptimizeIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "verifySearchIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/verify",
		Summary:     "Verify search index",
		Description: "Runs the index integrity check",
		Tags:        []string{"Search"},
	}, s.handleVerifyIndex)
}

// === DTOs ===

// SearchInput contains parameters for a full-text search.
type SearchInput struct {
	Query  string `query:"q" maxLength:"200" doc:"Search text. Empty matches every article."`
	Fields string `query:"fields" doc:"Comma-separated fields to search: title, author, content, summary"`
	dto.PaginationParams
	dto.ArticleFilterParams
}

// SearchPageOutput wraps a page of search hits for Huma.
type SearchPageOutput struct {
	Body dto.ListResponse[search.Result]
}

// AdvancedSearchRequest is the request body for advanced search.
type AdvancedSearchRequest struct {
	Title    string `json:"title,omitempty" maxLength:"200" doc:"Terms the title must contain"`
	Author   string `json:"author,omitempty" maxLength:"200" doc:"Terms the author must contain"`
	Content  string `json:"content,omitempty" maxLength:"200" doc:"Terms the body must contain"`
	Account  string `json:"account,omitempty" maxLength:"200" doc:"Exact public account name"`
	Page     int    `json:"page,omitempty" minimum:"0" doc:"Page number"`
	PageSize int    `json:"page_size,omitempty" minimum:"0" maximum:"100" doc:"Items per page"`
}

// AdvancedSearchInput wraps the advanced search request for Huma.
type AdvancedSearchInput struct {
	dto.ArticleFilterParams
	Body AdvancedSearchRequest
}

// QuickSearchInput contains parameters for quick search and suggestions.
type QuickSearchInput struct {
	Query string `query:"q" maxLength:"100" doc:"Prefix text"`
	Limit int    `query:"limit" default:"10" minimum:"1" maximum:"50" doc:"Maximum number of results"`
}

// SuggestionsResponse lists suggestions.
type SuggestionsResponse struct {
	Items []search.Suggestion `json:"items" doc:"Completions, most frequent first"`
}

// SuggestionsOutput wraps suggestions for Huma.
type SuggestionsOutput struct {
	Body SuggestionsResponse
}

// LimitInput contains a single limit parameter.
type LimitInput struct {
	Limit int `query:"limit" default:"10" minimum:"1" maximum:"100" doc:"Maximum number of results"`
}

// KeywordsResponse lists keywords.
type KeywordsResponse struct {
	Items []search.Keyword `json:"items" doc:"Keywords, most frequent first"`
}

// KeywordsOutput wraps keywords for Huma.
type KeywordsOutput struct {
	Body KeywordsResponse
}

// SearchStatsOutput wraps index statistics for Huma.
type SearchStatsOutput struct {
	Body search.Stats
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchPageOutput, error) {
	filter, err := input.ArticleFilterParams.ToStore()
	if err != nil {
		return nil, err
	}

	var fields []search.Field
	if input.Fields != "" {
		fields = search.ParseFields(strings.Split(input.Fields, ","))
	}

	page, err := s.services.Search.Search(ctx, search.Options{
		Query:  input.Query,
		Fields: fields,
		Filter: filter,
		Page:   input.PaginationParams.ToStore(),
	})
	if err != nil {
		return nil, err
	}
	return &SearchPageOutput{Body: dto.FromPage(page, identity[search.Result])}, nil
}

func (s *Server) handleAdvancedSearch(ctx context.Context, input *AdvancedSearchInput) (*SearchPageOutput, error) {
	filter, err := input.ArticleFilterParams.ToStore()
	if err != nil {
		return nil, err
	}

	req := input.Body
	page, err := s.services.Search.Advanced(ctx, search.AdvancedQuery{
		Title:   req.Title,
		Author:  req.Author,
		Content: req.Content,
		Account: req.Account,
	}, filter, dto.PaginationParams{Page: req.Page, PageSize: req.PageSize}.ToStore())
	if err != nil {
		return nil, err
	}
	return &SearchPageOutput{Body: dto.FromPage(page, identity[search.Result])}, nil
}

func (s *Server) handleQuickSearch(ctx context.Context, input *QuickSearchInput) (*SearchResultsOutput, error) {
	results, err := s.services.Search.Quick(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return searchResultsOutput(results), nil
}

func (s *Server) handleSuggest(ctx context.Context, input *QuickSearchInput) (*SuggestionsOutput, error) {
	items, err := s.services.Search.Suggest(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []search.Suggestion{}
	}
	return &SuggestionsOutput{Body: SuggestionsResponse{Items: items}}, nil
}

func (s *Server) handleHotKeywords(ctx context.Context, input *LimitInput) (*KeywordsOutput, error) {
	items, err := s.services.Search.HotKeywords(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []search.Keyword{}
	}
	return &KeywordsOutput{Body: KeywordsResponse{Items: items}}, nil
}

func (s *Server) handleSearchStats(ctx context.Context, _ *struct{}) (*SearchStatsOutput, error) {
	stats, err := s.services.Search.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchStatsOutput{Body: stats}, nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, _ *struct{}) (*dto.MessageOutput, error) {
	if err := s.services.Search.Rebuild(ctx); err != nil {
		return nil, err
	}
	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Search index rebuilt"}}, nil
}

func (s *Server) handleOptimizeIndex(ctx context.Context, _ *struct{}) (*dto.MessageOutput, error) {
	if err := s.services.Search.Optimize(ctx); err != nil {
		return nil, err
	}
	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Search index optimized"}}, nil
}

func (s *Server) handleVerifyIndex(ctx context.Context, _ *struct{}) (*dto.MessageOutput, error) {
	if err := s.services.Search.Verify(ctx); err != nil {
		return nil, err
	}
	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Search index is consistent"}}, nil
}

func identity[T any](v T) T { return v }
