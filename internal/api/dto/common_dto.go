package dto

import (
	"bytes"
	"encoding/json"

	"github.com/spec-kit/helpdesk/internal/query"
)

// PaginationResponse describes the page returned by list endpoints.
type PaginationResponse struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NewPagination maps query metadata to its wire form.
func NewPagination(meta query.Meta) PaginationResponse {
	return PaginationResponse{
		Page:    meta.Page,
		PerPage: meta.PerPage,
		Total:   meta.Total,
		Pages:   meta.Pages,
		HasNext: meta.HasNext,
		HasPrev: meta.HasPrev,
	}
}

// NullableInt64 tells an explicit JSON null apart from an absent field.
type NullableInt64 struct {
	Set   bool
	Value *int64
}

func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}
