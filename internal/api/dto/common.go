// Package dto provides request and response types shared by the API handlers.
// These types are used by huma to generate OpenAPI documentation and perform validation.
package dto

import "github.com/listenupapp/articlevault/internal/store"

// ListResponse is a generic paginated list response.
type ListResponse[T any] struct {
	Items      []T  `json:"items" doc:"List of items"`
	Total      int  `json:"total" doc:"Total count across all pages"`
	Page       int  `json:"page" doc:"Current page number"`
	PageSize   int  `json:"page_size" doc:"Items per page"`
	TotalPages int  `json:"total_pages" doc:"Number of pages"`
	HasMore    bool `json:"has_more" doc:"Whether more pages exist"`
}

// FromPage converts a store page, mapping each item.
func FromPage[T, U any](p store.Page[T], mapItem func(T) U) ListResponse[U] {
	items := make([]U, len(p.Items))
	for i, it := range p.Items {
		items[i] = mapItem(it)
	}
	return ListResponse[U]{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		HasMore:    p.Page < p.TotalPages,
	}
}

// PaginationParams defines common pagination query parameters.
type PaginationParams struct {
	Page     int `query:"page" default:"1" minimum:"1" doc:"Page number"`
	PageSize int `query:"page_size" default:"20" minimum:"1" maximum:"100" doc:"Items per page"`
}

// ToStore converts to store pagination.
func (p PaginationParams) ToStore() store.PageParams {
	return store.PageParams{Page: p.Page, PageSize: p.PageSize}
}

// SortParams defines common sorting query parameters.
type SortParams struct {
	SortBy    string `query:"sort_by" default:"created_at" enum:"created_at,publish_time,updated_at,read_count,like_count" doc:"Field to sort by"`
	SortOrder string `query:"sort_order" enum:"asc,desc" default:"desc" doc:"Sort direction"`
}

// ToStore converts to a store sort.
func (s SortParams) ToStore() store.Sort {
	return store.ParseSort(s.SortBy, s.SortOrder)
}

// IDParam is a path parameter for resource IDs.
type IDParam struct {
	ID int64 `path:"id" minimum:"1" doc:"Resource identifier"`
}

// IDsRequest is a request body carrying a list of IDs.
type IDsRequest struct {
	IDs []int64 `json:"ids" minItems:"1" maxItems:"500" doc:"Resource identifiers"`
}

// CountResponse reports how many rows an operation affected.
type CountResponse struct {
	Count int `json:"count" doc:"Number of affected items"`
}

// CountOutput wraps a count response for huma.
type CountOutput struct {
	Body CountResponse
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}
