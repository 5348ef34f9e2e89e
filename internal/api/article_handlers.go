package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/articlevault/internal/api/dto"
	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/service"
)

func (s *Server) registerArticleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "scrapeArticles",
		Method:      http.MethodPost,
		Path:        "/api/v1/articles/scrape",
		Summary:     "Scrape articles",
		Description: "Fetches each URL in order, stores the parsed articles and reports one result per URL. Progress is pushed on the scrape topic of the event stream.",
		Tags:        []string{"Articles"},
		Middlewares: huma.Middlewares{s.scrapeRateLimit},
	}, s.handleScrapeArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "listArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles",
		Summary:     "List articles",
		Description: "Returns a filtered, sorted page of articles",
		Tags:        []string{"Articles"},
	}, s.handleListArticles)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createArticle",
		Method:        http.MethodPost,
		Path:          "/api/v1/articles",
		Summary:       "Create article",
		Description:   "Stores a manually supplied article",
		Tags:          []string{"Articles"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateArticle)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticleStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/stats",
		Summary:     "Article statistics",
		Description: "Returns totals for articles, favorites, archived articles and reads",
		Tags:        []string{"Articles"},
	}, s.handleArticleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPublicAccounts",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/accounts",
		Summary:     "List public accounts",
		Description: "Returns public accounts with their article counts, most articles first",
		Tags:        []string{"Articles"},
	}, s.handleListAccounts)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/authors",
		Summary:     "List authors",
		Description: "Returns authors with their article counts, most articles first",
		Tags:        []string{"Articles"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteArticles",
		Method:      http.MethodPost,
		Path:        "/api/v1/articles/delete-batch",
		Summary:     "Delete articles",
		Description: "Deletes several articles at once and reports how many existed",
		Tags:        []string{"Articles"},
	}, s.handleDeleteArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticle",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Get article",
		Description: "Returns an article with its tags",
		Tags:        []string{"Articles"},
	}, s.handleGetArticle)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateArticle",
		Method:      http.MethodPatch,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Update article",
		Description: "Applies a partial update. A tags list, even an empty one, replaces every tag of the article.",
		Tags:        []string{"Articles"},
	}, s.handleUpdateArticle)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteArticle",
		Method:      http.MethodDelete,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Delete article",
		Description: "Deletes an article and its tag associations",
		Tags:        []string{"Articles"},
	}, s.handleDeleteArticle)

	for _, action := range []struct {
		id, path, summary string
		handler           func(context.Context, *dto.IDParam) (*ArticleOutput, error)
	}{
		{"markArticleRead", "read", "Record a read", s.handleMarkRead},
		{"likeArticle", "like", "Record a like", s.handleLike},
		{"toggleArticleFavorite", "favorite", "Toggle favorite", s.handleToggleFavorite},
		{"toggleArticleArchive", "archive", "Toggle archive", s.handleToggleArchive},
	} {
		huma.Register(s.api, huma.Operation{
			OperationID: action.id,
			Method:      http.MethodPost,
			Path:        "/api/v1/articles/{id}/" + action.path,
			Summary:     action.summary,
			Description: action.summary + " and return the updated article",
			Tags:        []string{"Articles"},
		}, action.handler)
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticleTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}/tags",
		Summary:     "Get article tags",
		Description: "Returns the tags attached to an article",
		Tags:        []string{"Articles"},
	}, s.handleGetArticleTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSimilarArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}/similar",
		Summary:     "Similar articles",
		Description: "Returns articles sharing title keywords with the given article",
		Tags:        []string{"Articles"},
	}, s.handleSimilarArticles)
}

// === DTOs ===

// ScrapeRequest is the request body for scraping articles.
type ScrapeRequest struct {
	URLs []string `json:"urls" minItems:"1" maxItems:"50" validate:"required,min=1,max=50" doc:"Article URLs, processed in order"`
	Tags []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,tagname" doc:"Tags attached to every stored article"`
}

// ScrapeInput wraps the scrape request for Huma.
type ScrapeInput struct {
	Body ScrapeRequest
}

// ScrapeOutput wraps the scrape job summary for Huma.
type ScrapeOutput struct {
	Body *service.ScrapeJob
}

// ArticleListItem is an article without its body, used in listings.
type ArticleListItem struct {
	ID            int64      `json:"id" doc:"Article ID"`
	Title         string     `json:"title" doc:"Title"`
	Author        string     `json:"author,omitempty" doc:"Author"`
	Summary       string     `json:"summary,omitempty" doc:"Summary"`
	CoverImage    string     `json:"cover_image,omitempty" doc:"Cover image URL"`
	SourceURL     string     `json:"source_url,omitempty" doc:"Original URL"`
	PublicAccount string     `json:"public_account,omitempty" doc:"Public account name"`
	PublishTime   *time.Time `json:"publish_time,omitempty" doc:"Publication time"`
	ReadCount     int        `json:"read_count" doc:"Recorded reads"`
	LikeCount     int        `json:"like_count" doc:"Recorded likes"`
	IsFavorite    bool       `json:"is_favorite" doc:"Marked as favorite"`
	IsArchived    bool       `json:"is_archived" doc:"Archived"`
	CreatedAt     time.Time  `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time  `json:"updated_at" doc:"Last update time"`
	Tags          []string   `json:"tags" doc:"Tag names"`
}

func toListItem(a domain.Article) ArticleListItem {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return ArticleListItem{
		ID:            a.ID,
		Title:         a.Title,
		Author:        a.Author,
		Summary:       a.Summary,
		CoverImage:    a.CoverImage,
		SourceURL:     a.SourceURL,
		PublicAccount: a.PublicAccount,
		PublishTime:   a.PublishTime,
		ReadCount:     a.ReadCount,
		LikeCount:     a.LikeCount,
		IsFavorite:    a.IsFavorite,
		IsArchived:    a.IsArchived,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		Tags:          tags,
	}
}

// ListArticlesInput contains parameters for listing articles.
type ListArticlesInput struct {
	dto.PaginationParams
	dto.SortParams
	dto.ArticleFilterParams
}

// ListArticlesOutput wraps an article page for Huma.
type ListArticlesOutput struct {
	Body dto.ListResponse[ArticleListItem]
}

// CreateArticleRequest is the request body for creating an article.
type CreateArticleRequest struct {
	Title         string     `json:"title" minLength:"1" maxLength:"500" doc:"Title"`
	Author        string     `json:"author,omitempty" maxLength:"200" doc:"Author"`
	Content       string     `json:"content" minLength:"1" doc:"Plain-text body"`
	HTMLContent   string     `json:"html_content,omitempty" doc:"Rendered HTML body"`
	Summary       string     `json:"summary,omitempty" doc:"Summary"`
	CoverImage    string     `json:"cover_image,omitempty" validate:"omitempty,url" doc:"Cover image URL"`
	SourceURL     string     `json:"source_url,omitempty" validate:"omitempty,url" doc:"Original URL"`
	PublicAccount string     `json:"public_account,omitempty" maxLength:"200" doc:"Public account name"`
	PublishTime   *time.Time `json:"publish_time,omitempty" doc:"Publication time"`
	Tags          []string   `json:"tags,omitempty" validate:"omitempty,max=20,dive,tagname" doc:"Tag names"`
}

// CreateArticleInput wraps the create request for Huma.
type CreateArticleInput struct {
	Body CreateArticleRequest
}

// ArticleOutput wraps a full article for Huma.
type ArticleOutput struct {
	Body *domain.Article
}

// UpdateArticleRequest is the request body for a partial article update.
type UpdateArticleRequest struct {
	Title         *string    `json:"title,omitempty" minLength:"1" maxLength:"500" doc:"Title"`
	Author        *string    `json:"author,omitempty" maxLength:"200" doc:"Author"`
	Content       *string    `json:"content,omitempty" minLength:"1" doc:"Plain-text body"`
	HTMLContent   *string    `json:"html_content,omitempty" doc:"Rendered HTML body"`
	Summary       *string    `json:"summary,omitempty" doc:"Summary"`
	CoverImage    *string    `json:"cover_image,omitempty" doc:"Cover image URL"`
	SourceURL     *string    `json:"source_url,omitempty" doc:"Original URL"`
	PublicAccount *string    `json:"public_account,omitempty" maxLength:"200" doc:"Public account name"`
	PublishTime   *time.Time `json:"publish_time,omitempty" doc:"Publication time"`
	IsFavorite    *bool      `json:"is_favorite,omitempty" doc:"Favorite flag"`
	IsArchived    *bool      `json:"is_archived,omitempty" doc:"Archive flag"`
	Tags          []string   `json:"tags,omitempty" validate:"omitempty,max=20,dive,tagname" doc:"Replacement tag set"`
}

// UpdateArticleInput wraps the update request for Huma.
type UpdateArticleInput struct {
	dto.IDParam
	Body UpdateArticleRequest
}

// DeleteArticlesInput wraps the batch delete request for Huma.
type DeleteArticlesInput struct {
	Body dto.IDsRequest
}

// ArticleStatsOutput wraps article statistics for Huma.
type ArticleStatsOutput struct {
	Body domain.ArticleStats
}

// NameCountsResponse lists names with article counts.
type NameCountsResponse struct {
	Items []domain.NameCount `json:"items" doc:"Names with article counts"`
}

// NameCountsOutput wraps name counts for Huma.
type NameCountsOutput struct {
	Body NameCountsResponse
}

// SimilarArticlesInput contains parameters for similar articles.
type SimilarArticlesInput struct {
	dto.IDParam
	Limit int `query:"limit" default:"5" minimum:"1" maximum:"20" doc:"Maximum number of results"`
}

// SearchResultsResponse lists search hits.
type SearchResultsResponse struct {
	Items []search.Result `json:"items" doc:"Matching articles"`
}

// SearchResultsOutput wraps search hits for Huma.
type SearchResultsOutput struct {
	Body SearchResultsResponse
}

// === Handlers ===

func (s *Server) handleScrapeArticles(ctx context.Context, input *ScrapeInput) (*ScrapeOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(input.Body.URLs))
	for _, u := range input.Body.URLs {
		urls = append(urls, strings.TrimSpace(u))
	}

	job, err := s.services.Ingest.Scrape(ctx, urls, input.Body.Tags)
	if err != nil {
		return nil, err
	}
	return &ScrapeOutput{Body: job}, nil
}

func (s *Server) handleListArticles(ctx context.Context, input *ListArticlesInput) (*ListArticlesOutput, error) {
	filter, err := input.ArticleFilterParams.ToStore()
	if err != nil {
		return nil, err
	}

	page, err := s.services.Article.List(ctx, filter, input.PaginationParams.ToStore(), input.SortParams.ToStore())
	if err != nil {
		return nil, err
	}

	return &ListArticlesOutput{Body: dto.FromPage(page, toListItem)}, nil
}

func (s *Server) handleCreateArticle(ctx context.Context, input *CreateArticleInput) (*ArticleOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	req := input.Body
	a, err := s.services.Article.Create(ctx, domain.NewArticle{
		Title:         req.Title,
		Author:        req.Author,
		Content:       req.Content,
		HTMLContent:   req.HTMLContent,
		Summary:       req.Summary,
		CoverImage:    req.CoverImage,
		SourceURL:     req.SourceURL,
		PublicAccount: req.PublicAccount,
		PublishTime:   req.PublishTime,
		Tags:          req.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &ArticleOutput{Body: a}, nil
}

func (s *Server) handleGetArticle(ctx context.Context, input *dto.IDParam) (*ArticleOutput, error) {
	a, err := s.services.Article.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ArticleOutput{Body: a}, nil
}

func (s *Server) handleUpdateArticle(ctx context.Context, input *UpdateArticleInput) (*ArticleOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	req := input.Body
	a, err := s.services.Article.Update(ctx, input.ID, domain.ArticleUpdate{
		Title:         req.Title,
		Author:        req.Author,
		Content:       req.Content,
		HTMLContent:   req.HTMLContent,
		Summary:       req.Summary,
		CoverImage:    req.CoverImage,
		SourceURL:     req.SourceURL,
		PublicAccount: req.PublicAccount,
		PublishTime:   req.PublishTime,
		IsFavorite:    req.IsFavorite,
		IsArchived:    req.IsArchived,
		Tags:          req.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &ArticleOutput{Body: a}, nil
}

func (s *Server) handleDeleteArticle(ctx context.Context, input *dto.IDParam) (*dto.MessageOutput, error) {
	if err := s.services.Article.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Article deleted"}}, nil
}

func (s *Server) handleDeleteArticles(ctx context.Context, input *DeleteArticlesInput) (*dto.CountOutput, error) {
	n, err := s.services.Article.DeleteBatch(ctx, input.Body.IDs)
	if err != nil {
		return nil, err
	}
	return &dto.CountOutput{Body: dto.CountResponse{Count: n}}, nil
}

func (s *Server) handleMarkRead(ctx context.Context, input *dto.IDParam) (*ArticleOutput, error) {
	return articleOutput(s.services.Article.MarkRead(ctx, input.ID))
}

func (s *Server) handleLike(ctx context.Context, input *dto.IDParam) (*ArticleOutput, error) {
	return articleOutput(s.services.Article.Like(ctx, input.ID))
}

func (s *Server) handleToggleFavorite(ctx context.Context, input *dto.IDParam) (*ArticleOutput, error) {
	return articleOutput(s.services.Article.ToggleFavorite(ctx, input.ID))
}

func (s *Server) handleToggleArchive(ctx context.Context, input *dto.IDParam) (*ArticleOutput, error) {
	return articleOutput(s.services.Article.ToggleArchive(ctx, input.ID))
}

func articleOutput(a *domain.Article, err error) (*ArticleOutput, error) {
	if err != nil {
		return nil, err
	}
	return &ArticleOutput{Body: a}, nil
}

func (s *Server) handleArticleStats(ctx context.Context, _ *struct{}) (*ArticleStatsOutput, error) {
	stats, err := s.services.Article.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &ArticleStatsOutput{Body: stats}, nil
}

func (s *Server) handleListAccounts(ctx context.Context, _ *struct{}) (*NameCountsOutput, error) {
	return nameCountsOutput(s.services.Article.PublicAccounts(ctx))
}

func (s *Server) handleListAuthors(ctx context.Context, _ *struct{}) (*NameCountsOutput, error) {
	return nameCountsOutput(s.services.Article.Authors(ctx))
}

func nameCountsOutput(items []domain.NameCount, err error) (*NameCountsOutput, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.NameCount{}
	}
	return &NameCountsOutput{Body: NameCountsResponse{Items: items}}, nil
}

func (s *Server) handleGetArticleTags(ctx context.Context, input *dto.IDParam) (*ListTagsOutput, error) {
	if _, err := s.services.Article.Get(ctx, input.ID); err != nil {
		return nil, err
	}
	return tagsOutput(s.services.Tag.ArticleTags(ctx, input.ID))
}

func (s *Server) handleSimilarArticles(ctx context.Context, input *SimilarArticlesInput) (*SearchResultsOutput, error) {
	results, err := s.services.Search.Similar(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, err
	}
	return searchResultsOutput(results), nil
}

func searchResultsOutput(results []search.Result) *SearchResultsOutput {
	if results == nil {
		results = []search.Result{}
	}
	return &SearchResultsOutput{Body: SearchResultsResponse{Items: results}}
}
