package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/render"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket, comment and vote endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	markdown *render.Markdown
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, markdown *render.Markdown) *TicketsHandler {
	if markdown == nil {
		markdown = render.NewMarkdown()
	}
	return &TicketsHandler{service: ticketService, markdown: markdown}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	input, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	res, err := h.service.ListTickets(c.UserContext(), user, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewTicketList(res.Tickets),
		"pagination": dto.NewPagination(res.Meta),
	})
}

// CreateTicket POST /tickets. Accepts multipart or urlencoded forms and JSON.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Priority:    req.Priority,
	}

	if form, err := c.MultipartForm(); err == nil {
		if files := form.File["attachment"]; len(files) > 0 && files[0].Filename != "" {
			content, err := files[0].Open()
			if err != nil {
				return apperrors.NewInternalError(err)
			}
			defer content.Close()
			input.Attachment = &service.AttachmentInput{Filename: files[0].Filename, Content: content}
		}
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user, input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewTicketResponse(ticket), "ticket created successfully")
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewTicketDetail(detail.Ticket, detail.Comments, h.markdown), "")
}

// Attachment GET /tickets/:id/attachment.
func (h *TicketsHandler) Attachment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	file, err := h.service.OpenAttachment(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	c.Attachment(file.Name)
	// fasthttp closes the stream once the body is written.
	return c.SendStream(file.Content)
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), user, id, service.TicketUpdateInput{
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedToSet: req.AssignedTo.Set,
		AssignedTo:    req.AssignedTo.Value,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewTicketResponse(ticket), "ticket updated successfully")
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	comment, err := h.service.AddComment(c.UserContext(), user, id, req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewCommentResponse(comment, h.markdown), "comment added successfully")
}

// Vote POST /tickets/:id/vote.
func (h *TicketsHandler) Vote(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.VoteRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	isUpvote := req.IsUpvote == nil || *req.IsUpvote

	tally, err := h.service.Vote(c.UserContext(), user, id, isUpvote)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewVoteResponse(tally), "vote recorded successfully")
}

// RemoveVote DELETE /tickets/:id/vote.
func (h *TicketsHandler) RemoveVote(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tally, err := h.service.RemoveVote(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewVoteResponse(tally), "vote removed successfully")
}

func parseTicketListQuery(c *fiber.Ctx) (service.TicketListInput, error) {
	input := service.TicketListInput{
		Page:      parseInt(c.Query("page"), 1),
		PerPage:   parseInt(c.Query("per_page"), 0),
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Queue:     c.Query("queue"),
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return input, apperrors.NewInvalidFilterValue("category_id", raw)
		}
		input.CategoryID = &categoryID
	}
	if raw := c.Query("my_tickets"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			return input, apperrors.NewInvalidFilterValue("my_tickets", raw)
		}
		input.MyTickets = &mine
	}
	return input, nil
}
