package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// CategoryService manages ticket categories.
type CategoryService struct {
	categories repository.CategoryRepository
	tx         persistence.Transactor
	logger     *zap.Logger
	now        Clock
}

// CategoryDependencies bundles collaborators for the category service.
type CategoryDependencies struct {
	CategoryRepo repository.CategoryRepository
	Transactor   persistence.Transactor
	Logger       *zap.Logger
	Clock        Clock
}

// NewCategoryService constructs the service.
func NewCategoryService(deps CategoryDependencies) *CategoryService {
	return &CategoryService{
		categories: deps.CategoryRepo,
		tx:         deps.Transactor,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// CategoryInput is the create payload. Nil Color selects the default color.
type CategoryInput struct {
	Name        string
	Description string
	Color       *string
}

// CategoryUpdateInput is a partial update.
type CategoryUpdateInput struct {
	Name        *string
	Description *string
	Color       *string
	IsActive    *bool
}

// List returns categories ordered by name. Inactive categories are only
// returned to admins that ask for them.
func (s *CategoryService) List(ctx context.Context, actor *domain.User, includeInactive bool) ([]domain.Category, error) {
	includeInactive = includeInactive && actor != nil && actor.Role == domain.RoleAdmin
	categories, err := s.categories.List(ctx, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

// Get returns a category regardless of its active flag.
func (s *CategoryService) Get(ctx context.Context, id int64) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "category", id))
	}
	return category, nil
}

// Create validates and stores a new active category.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("category name is required", map[string]any{"field": "name"})
	}
	color := domain.DefaultCategoryColor
	if in.Color != nil {
		color = strings.TrimSpace(*in.Color)
	}
	if err := domain.ValidateCategoryColor(color); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "color"})
	}
	if err := s.ensureUniqueName(ctx, name, 0); err != nil {
		return nil, err
	}

	category := &domain.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.MapError(conflict(err, "category name already exists"))
	}
	return category, nil
}

// Update applies a partial update.
func (s *CategoryService) Update(ctx context.Context, id int64, in CategoryUpdateInput) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "category", id))
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("category name is required", map[string]any{"field": "name"})
		}
		if err := s.ensureUniqueName(ctx, name, id); err != nil {
			return nil, err
		}
		category.Name = name
	}
	if in.Description != nil {
		category.Description = strings.TrimSpace(*in.Description)
	}
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if err := domain.ValidateCategoryColor(color); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "color"})
		}
		category.Color = color
	}
	if in.IsActive != nil {
		category.IsActive = *in.IsActive
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, apperrors.MapError(conflict(notFound(err, "category", id), "category name already exists"))
	}
	return s.Get(ctx, id)
}

// Delete removes a category outright when no ticket references it and
// otherwise deactivates it.
func (s *CategoryService) Delete(ctx context.Context, id int64) (domain.CategoryDeleteResult, error) {
	var result domain.CategoryDeleteResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		category, err := s.categories.GetByID(ctx, id)
		if err != nil {
			return notFound(err, "category", id)
		}
		count, err := s.categories.CountTickets(ctx, id)
		if err != nil {
			return err
		}
		if count == 0 {
			result = domain.CategoryHardDeleted
			return notFound(s.categories.Delete(ctx, id), "category", id)
		}
		result = domain.CategorySoftDeleted
		category.IsActive = false
		return s.categories.Update(ctx, category)
	})
	if err != nil {
		return "", apperrors.MapError(err)
	}
	s.logger.Info("category deleted", zap.Int64("category_id", id), zap.String("mode", string(result)))
	return result, nil
}

func (s *CategoryService) ensureUniqueName(ctx context.Context, name string, selfID int64) error {
	existing, err := s.categories.GetByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return apperrors.MapError(err)
	case existing.ID != selfID:
		return apperrors.NewValidationError("category name already exists", map[string]any{"field": "name"})
	}
	return nil
}
