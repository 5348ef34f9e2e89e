package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/articlevault/internal/api/dto"
	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns every tag with its article count",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Creates a new tag",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPopularTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/popular",
		Summary:     "Popular tags",
		Description: "Returns the most used tags",
		Tags:        []string{"Tags"},
	}, s.handlePopularTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagCloud",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/cloud",
		Summary:     "Tag cloud",
		Description: "Returns every tag attached to at least one article",
		Tags:        []string{"Tags"},
	}, s.handleTagCloud)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/stats",
		Summary:     "Tag statistics",
		Description: "Returns totals for tags, used and unused tags, and associations",
		Tags:        []string{"Tags"},
	}, s.handleTagStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/search",
		Summary:     "Search tags",
		Description: "Substring match on tag names and descriptions",
		Tags:        []string{"Tags"},
	}, s.handleSearchTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/delete-batch",
		Summary:     "Delete tags",
		Description: "Deletes several tags at once and reports how many existed",
		Tags:        []string{"Tags"},
	}, s.handleDeleteTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "cleanupTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/cleanup",
		Summary:     "Clean up tags",
		Description: "Deletes tags not attached to any article",
		Tags:        []string{"Tags"},
	}, s.handleCleanupTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Update tag",
		Description: "Updates a tag",
		Tags:        []string{"Tags"},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Deletes a tag and detaches it from its articles",
		Tags:        []string{"Tags"},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "mergeTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{id}/merge",
		Summary:     "Merge tag",
		Description: "Moves every article of this tag onto the target tag and deletes this tag",
		Tags:        []string{"Tags"},
	}, s.handleMergeTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRelatedTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}/related",
		Summary:     "Related tags",
		Description: "Returns tags that share articles with this tag, most shared first",
		Tags:        []string{"Tags"},
	}, s.handleRelatedTags)
}

// === DTOs ===

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Sort string `query:"sort" default:"name" enum:"name,article_count,created_at" doc:"Ordering"`
}

// ListTagsResponse contains a list of tags.
type ListTagsResponse struct {
	Tags []domain.Tag `json:"tags" doc:"List of tags"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"50" validate:"required,tagname" doc:"Tag name"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor" doc:"Display color, defaults to #1890ff"`
	Description string `json:"description,omitempty" maxLength:"500" doc:"Description"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Body CreateTagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body *domain.Tag
}

// UpdateTagRequest is the request body for updating a tag.
type UpdateTagRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,tagname" doc:"Tag name"`
	Color       *string `json:"color,omitempty" validate:"omitempty,hexcolor" doc:"Display color"`
	Description *string `json:"description,omitempty" maxLength:"500" doc:"Description"`
}

// UpdateTagInput wraps the update tag request for Huma.
type UpdateTagInput struct {
	dto.IDParam
	Body UpdateTagRequest
}

// DeleteTagsInput wraps the batch delete request for Huma.
type DeleteTagsInput struct {
	Body dto.IDsRequest
}

// MergeTagRequest is the request body for merging tags.
type MergeTagRequest struct {
	TargetID int64 `json:"target_id" minimum:"1" doc:"Tag that absorbs this one"`
}

// MergeTagInput wraps the merge request for Huma.
type MergeTagInput struct {
	dto.IDParam
	Body MergeTagRequest
}

// MergeTagResponse reports whether a merge happened.
type MergeTagResponse struct {
	Merged bool `json:"merged" doc:"False when the source tag no longer existed"`
}

// MergeTagOutput wraps the merge response for Huma.
type MergeTagOutput struct {
	Body MergeTagResponse
}

// RelatedTagsInput contains parameters for related tags.
type RelatedTagsInput struct {
	dto.IDParam
	Limit int `query:"limit" default:"10" minimum:"1" maximum:"100" doc:"Maximum number of results"`
}

// RelatedTagsResponse lists related tags.
type RelatedTagsResponse struct {
	Tags []domain.RelatedTag `json:"tags" doc:"Related tags"`
}

// RelatedTagsOutput wraps related tags for Huma.
type RelatedTagsOutput struct {
	Body RelatedTagsResponse
}

// SearchTagsInput contains parameters for tag search.
type SearchTagsInput struct {
	Query string `query:"q" maxLength:"50" doc:"Substring to look for"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of results"`
}

// TagStatsOutput wraps tag statistics for Huma.
type TagStatsOutput struct {
	Body domain.TagStats
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	return tagsOutput(s.services.Tag.List(ctx, sqlite.TagSort(input.Sort)))
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	t, err := s.services.Tag.Create(ctx, input.Body.Name, input.Body.Color, input.Body.Description)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: t}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *dto.IDParam) (*TagOutput, error) {
	t, err := s.services.Tag.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: t}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	t, err := s.services.Tag.Update(ctx, input.ID, domain.TagUpdate{
		Name:        input.Body.Name,
		Color:       input.Body.Color,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: t}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *dto.IDParam) (*dto.MessageOutput, error) {
	if err := s.services.Tag.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Tag deleted"}}, nil
}

func (s *Server) handleDeleteTags(ctx context.Context, input *DeleteTagsInput) (*dto.CountOutput, error) {
	n, err := s.services.Tag.DeleteBatch(ctx, input.Body.IDs)
	if err != nil {
		return nil, err
	}
	return &dto.CountOutput{Body: dto.CountResponse{Count: n}}, nil
}

func (s *Server) handleMergeTag(ctx context.Context, input *MergeTagInput) (*MergeTagOutput, error) {
	merged, err := s.services.Tag.Merge(ctx, input.ID, input.Body.TargetID)
	if err != nil {
		return nil, err
	}
	return &MergeTagOutput{Body: MergeTagResponse{Merged: merged}}, nil
}

func (s *Server) handleCleanupTags(ctx context.Context, _ *struct{}) (*dto.CountOutput, error) {
	n, err := s.services.Tag.CleanupUnused(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.CountOutput{Body: dto.CountResponse{Count: n}}, nil
}

func (s *Server) handleRelatedTags(ctx context.Context, input *RelatedTagsInput) (*RelatedTagsOutput, error) {
	related, err := s.services.Tag.Related(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, err
	}
	if related == nil {
		related = []domain.RelatedTag{}
	}
	return &RelatedTagsOutput{Body: RelatedTagsResponse{Tags: related}}, nil
}

func (s *Server) handlePopularTags(ctx context.Context, input *LimitInput) (*ListTagsOutput, error) {
	return tagsOutput(s.services.Tag.Popular(ctx, input.Limit))
}

func (s *Server) handleTagCloud(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	return tagsOutput(s.services.Tag.Cloud(ctx))
}

func (s *Server) handleSearchTags(ctx context.Context, input *SearchTagsInput) (*ListTagsOutput, error) {
	return tagsOutput(s.services.Tag.Search(ctx, input.Query, input.Limit))
}

func (s *Server) handleTagStats(ctx context.Context, _ *struct{}) (*TagStatsOutput, error) {
	stats, err := s.services.Tag.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &TagStatsOutput{Body: stats}, nil
}

func tagsOutput(tags []domain.Tag, err error) (*ListTagsOutput, error) {
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return &ListTagsOutput{Body: ListTagsResponse{Tags: tags}}, nil
}
