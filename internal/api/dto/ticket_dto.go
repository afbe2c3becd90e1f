package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/render"
)

// UpdateTicketRequest is a partial update. AssignedTo may be null to unassign.
type UpdateTicketRequest struct {
	Status     *string       `json:"status"`
	Priority   *string       `json:"priority"`
	AssignedTo NullableInt64 `json:"assigned_to"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content" validate:"required"`
	IsInternal bool   `json:"is_internal"`
}

// VoteRequest payload. A missing is_upvote counts as an upvote.
type VoteRequest struct {
	IsUpvote *bool `json:"is_upvote"`
}

// VoteResponse carries fresh tallies.
type VoteResponse struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID              int64                 `json:"id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	DescriptionHTML string                `json:"description_html,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	AttachmentPath  *string               `json:"attachment_path"`
	UserID          int64                 `json:"user_id"`
	AssignedTo      *int64                `json:"assigned_to"`
	CategoryID      int64                 `json:"category_id"`
	Upvotes         int64                 `json:"upvotes"`
	Downvotes       int64                 `json:"downvotes"`
	CommentCount    int64                 `json:"comment_count"`
	Creator         *UserResponse         `json:"creator"`
	Assignee        *UserResponse         `json:"assignee"`
	Category        *CategoryResponse     `json:"category"`
	Comments        []CommentResponse     `json:"comments,omitempty"`
}

// CommentResponse is the wire form of a comment.
type CommentResponse struct {
	ID          int64         `json:"id"`
	Content     string        `json:"content"`
	ContentHTML string        `json:"content_html,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	IsInternal  bool          `json:"is_internal"`
	TicketID    int64         `json:"ticket_id"`
	UserID      int64         `json:"user_id"`
	Author      *UserResponse `json:"author"`
}

// NewTicketResponse maps a ticket without rendered markdown.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		Subject:        ticket.Subject,
		Description:    ticket.Description,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		ResolvedAt:     ticket.ResolvedAt,
		AttachmentPath: ticket.AttachmentPath,
		UserID:         ticket.UserID,
		AssignedTo:     ticket.AssignedTo,
		CategoryID:     ticket.CategoryID,
		Upvotes:        ticket.Upvotes,
		Downvotes:      ticket.Downvotes,
		CommentCount:   ticket.CommentCount,
		Creator:        NewUserResponse(ticket.Creator),
		Assignee:       NewUserResponse(ticket.Assignee),
		Category:       NewCategoryResponse(ticket.Category),
	}
}

// NewTicketList maps a page of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketDetail maps a ticket with its comments and renders markdown bodies.
func NewTicketDetail(ticket *domain.Ticket, comments []domain.Comment, md *render.Markdown) TicketResponse {
	resp := NewTicketResponse(ticket)
	resp.DescriptionHTML = md.MustHTML(ticket.Description)
	resp.Comments = make([]CommentResponse, 0, len(comments))
	for i := range comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&comments[i], md))
	}
	return resp
}

// NewCommentResponse maps a comment. md may be nil to skip rendering.
func NewCommentResponse(comment *domain.Comment, md *render.Markdown) CommentResponse {
	resp := CommentResponse{
		ID:         comment.ID,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
		UpdatedAt:  comment.UpdatedAt,
		IsInternal: comment.IsInternal,
		TicketID:   comment.TicketID,
		UserID:     comment.UserID,
		Author:     NewUserResponse(comment.Author),
	}
	if md != nil {
		resp.ContentHTML = md.MustHTML(comment.Content)
	}
	return resp
}

// NewVoteResponse maps tallies.
func NewVoteResponse(tally domain.VoteTally) VoteResponse {
	return VoteResponse{Upvotes: tally.Upvotes, Downvotes: tally.Downvotes}
}

// CreateTicketRequest is decoded from a multipart form, an urlencoded form or JSON.
type CreateTicketRequest struct {
	Subject     string `json:"subject" form:"subject" validate:"required,max=200"`
	Description string `json:"description" form:"description" validate:"required"`
	CategoryID  int64  `json:"category_id" form:"category_id" validate:"required"`
	Priority    string `json:"priority" form:"priority" validate:"omitempty,oneof=low medium high urgent"`
}
