package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description"`
	Color       *string `json:"color"`
}

// UpdateCategoryRequest is a partial update.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"is_active"`
}

// CategoryResponse is the wire form of a category.
type CategoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	TicketCount int64     `json:"ticket_count"`
}

// NewCategoryResponse maps a category. It returns nil for a nil category.
func NewCategoryResponse(category *domain.Category) *CategoryResponse {
	if category == nil {
		return nil
	}
	return &CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Color:       category.Color,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt,
		TicketCount: category.TicketCount,
	}
}

// NewCategoryList maps a slice of categories.
func NewCategoryList(categories []domain.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		out = append(out, *NewCategoryResponse(&categories[i]))
	}
	return out
}
