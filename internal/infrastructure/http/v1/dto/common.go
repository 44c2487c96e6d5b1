// Package dto provides the request shapes of the HTTP API. Responses
// are the domain records themselves.
package dto

import "pharmaflow/internal/domain"

// ListQuery is the shared pagination and sorting query.
type ListQuery struct {
	Page   *int   `form:"page" binding:"omitempty,min=1"`
	Limit  *int   `form:"limit" binding:"omitempty,min=1,max=100"`
	Sort   string `form:"sort"`
	Order  string `form:"order" binding:"omitempty,oneof=asc desc"`
	Search string `form:"search"`
}

// Filter converts the query, applying defaults for missing values.
func (q ListQuery) Filter() domain.ListFilter {
	f := domain.DefaultListFilter()
	if q.Page != nil {
		f.Page = *q.Page
	}
	if q.Limit != nil {
		f.Limit = *q.Limit
	}
	if q.Sort != "" {
		f.Sort = q.Sort
	}
	if q.Order != "" {
		f.Order = domain.SortOrder(q.Order)
	}
	f.Search = q.Search
	return f
}

// BulkRequest carries the ids of a bulk operation. Ids are validated per
// item so one malformed id does not fail the whole request.
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// ReasonRequest is the body of reject operations.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RemarksRequest is the optional body of approve operations.
type RemarksRequest struct {
	Remarks string `json:"remarks"`
}

// ErrorResponse is the shape rendered by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
