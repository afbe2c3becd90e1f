package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CategoriesHandler exposes category endpoints.
type CategoriesHandler struct {
	service *service.CategoryService
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categoryService *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{service: categoryService}
}

// List GET /categories.
func (h *CategoriesHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	categories, err := h.service.List(c.UserContext(), user, c.QueryBool("include_inactive", false))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewCategoryList(categories), "")
}

// Get GET /categories/:id.
func (h *CategoriesHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewCategoryResponse(category), "")
}

// Create POST /categories.
func (h *CategoriesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateCategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.Create(c.UserContext(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewCategoryResponse(category), "category created successfully")
}

// Update PUT /categories/:id.
func (h *CategoriesHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateCategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.Update(c.UserContext(), id, service.CategoryUpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewCategoryResponse(category), "category updated successfully")
}

// Delete DELETE /categories/:id.
func (h *CategoriesHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.service.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	message := "category deleted successfully"
	if result == domain.CategorySoftDeleted {
		message = "category deactivated because tickets still reference it"
	}
	return respond(c, http.StatusOK, fiber.Map{"result": result}, message)
}
