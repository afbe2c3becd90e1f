package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// UsersHandler exposes account management endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	res, err := h.users.List(c.UserContext(), service.UserListInput{
		Page:    parseInt(c.Query("page"), 1),
		PerPage: parseInt(c.Query("per_page"), 0),
		Role:    c.Query("role"),
		Search:  c.Query("search"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewUserList(res.Users),
		"pagination": dto.NewPagination(res.Meta),
	})
}

// Agents GET /users/agents.
func (h *UsersHandler) Agents(c *fiber.Ctx) error {
	agents, err := h.users.Agents(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserList(agents), "")
}

// Stats GET /users/stats.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.users.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserStats(stats), "")
}

// Get GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(user), "")
}

// Update PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.UserContext(), actor, id, service.UserUpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(user), "user updated successfully")
}

// Activate POST /users/:id/activate.
func (h *UsersHandler) Activate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// Deactivate POST /users/:id/deactivate.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *UsersHandler) setActive(c *fiber.Ctx, active bool) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if active {
		user, err := h.users.Activate(c.UserContext(), actor, id)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, dto.NewUserResponse(user), "user activated successfully")
	}
	user, err := h.users.Deactivate(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(user), "user deactivated successfully")
}
