package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/query"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MaxSubjectLength bounds ticket subjects.
const MaxSubjectLength = 200

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	votes       repository.VoteRepository
	categories  repository.CategoryRepository
	users       repository.UserRepository
	tx          persistence.Transactor
	attachments storage.AttachmentStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	VoteRepo     repository.VoteRepository
	CategoryRepo repository.CategoryRepository
	UserRepo     repository.UserRepository
	Transactor   persistence.Transactor
	Attachments  storage.AttachmentStore
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        Clock
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		votes:       deps.VoteRepo,
		categories:  deps.CategoryRepo,
		users:       deps.UserRepo,
		tx:          deps.Transactor,
		attachments: deps.Attachments,
		dispatcher:  deps.Dispatcher,
		logger:      defaultLogger(deps.Logger),
		now:         defaultClock(deps.Clock),
	}
}

// TicketListInput carries raw listing parameters as received from the client.
type TicketListInput struct {
	Page       int
	PerPage    int
	Status     string
	Priority   string
	CategoryID *int64
	Search     string
	SortBy     string
	SortOrder  string
	Queue      string
	MyTickets  *bool
}

// TicketListResult is one page of tickets.
type TicketListResult struct {
	Tickets []domain.Ticket
	Meta    query.Meta
}

// AttachmentInput is an uploaded file.
type AttachmentInput struct {
	Filename string
	Content  io.Reader
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	CategoryID  int64
	Priority    string
	Attachment  *AttachmentInput
}

// TicketUpdateInput is a partial update. AssignedToSet distinguishes an
// explicit null (unassign) from an absent field.
type TicketUpdateInput struct {
	Status        *string
	Priority      *string
	AssignedToSet bool
	AssignedTo    *int64
}

// TicketDetail is a ticket with the comments visible to the caller.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Comments []domain.Comment
}

// BuildTicketFilter validates listing parameters and applies role scoping.
func BuildTicketFilter(actor *domain.User, in TicketListInput) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		CategoryID: in.CategoryID,
		Search:     strings.TrimSpace(in.Search),
		Page:       query.NewPage(in.Page, in.PerPage, query.DefaultPerPage),
	}

	sortBy, err := query.ParseTicketSort(in.SortBy)
	if err != nil {
		return filter, apperrors.NewInvalidFilterValue("sort_by", in.SortBy)
	}
	order, err := query.ParseSortOrder(in.SortOrder)
	if err != nil {
		return filter, apperrors.NewInvalidFilterValue("sort_order", in.SortOrder)
	}
	queue, err := query.ParseQueue(in.Queue)
	if err != nil {
		return filter, apperrors.NewInvalidFilterValue("queue", in.Queue)
	}
	filter.SortBy, filter.Order = sortBy, order

	if in.Status != "" {
		status, err := domain.ParseTicketStatus(in.Status)
		if err != nil {
			return filter, apperrors.NewInvalidFilterValue("status", in.Status)
		}
		filter.Status = &status
	}
	if in.Priority != "" {
		priority, err := domain.ParseTicketPriority(in.Priority)
		if err != nil {
			return filter, apperrors.NewInvalidFilterValue("priority", in.Priority)
		}
		filter.Priority = &priority
	}

	if !actor.IsStaff() {
		// End users only ever see their own tickets; my_tickets=false does not widen the scope.
		creatorID := actor.ID
		filter.CreatorID = &creatorID
		return filter, nil
	}

	switch queue {
	case query.QueueMyTickets:
		assigneeID := actor.ID
		filter.AssigneeID = &assigneeID
	case query.QueueUnassigned:
		filter.Unassigned = true
	}
	return filter, nil
}

// ListTickets returns a filtered, sorted page of tickets visible to actor.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, in TicketListInput) (*TicketListResult, error) {
	filter, err := BuildTicketFilter(actor, in)
	if err != nil {
		return nil, err
	}
	tickets, total, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketListResult{Tickets: tickets, Meta: query.NewMeta(filter.Page, total)}, nil
}

// CreateTicket stores the attachment, then inserts the ticket. If the insert
// fails the attachment is removed again.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, in TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(in.Subject)
	description := strings.TrimSpace(in.Description)

	switch {
	case subject == "":
		return nil, apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	case utf8.RuneCountInString(subject) > MaxSubjectLength:
		return nil, apperrors.NewValidationError("subject is too long", map[string]any{"field": "subject", "max": MaxSubjectLength})
	case description == "":
		return nil, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	case in.CategoryID <= 0:
		return nil, apperrors.NewValidationError("category is required", map[string]any{"field": "category_id"})
	}

	priority := domain.TicketPriorityMedium
	if in.Priority != "" {
		parsed, err := domain.ParseTicketPriority(in.Priority)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority"})
		}
		priority = parsed
	}

	category, err := s.categories.GetByID(ctx, in.CategoryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	if category == nil || !category.IsActive {
		return nil, apperrors.NewValidationError("invalid category", map[string]any{"field": "category_id"})
	}

	var attachmentPath *string
	if in.Attachment != nil && in.Attachment.Filename != "" {
		ref, err := s.saveAttachment(ctx, in.Attachment)
		if err != nil {
			return nil, err
		}
		attachmentPath = &ref
	}

	now := s.now()
	ticket := &domain.Ticket{
		Subject:        subject,
		Description:    description,
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		UserID:         actor.ID,
		CategoryID:     category.ID,
		AttachmentPath: attachmentPath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.tickets.Create(ctx, ticket)
	})
	if err != nil {
		if attachmentPath != nil {
			if rmErr := s.attachments.Remove(*attachmentPath); rmErr != nil {
				s.logger.Warn("remove orphaned attachment", zap.String("path", *attachmentPath), zap.Error(rmErr))
			}
		}
		return nil, apperrors.MapError(err)
	}

	created, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCreated, created.ID, actorOf(actor), now,
		events.TicketCreatedPayload{
			Subject:    created.Subject,
			CategoryID: created.CategoryID,
			Priority:   created.Priority,
		}))
	return created, nil
}

func (s *TicketService) saveAttachment(ctx context.Context, in *AttachmentInput) (string, error) {
	if s.attachments == nil {
		return "", apperrors.NewInternalError(errors.New("attachment storage not configured"))
	}
	ref, err := s.attachments.Save(ctx, in.Filename, in.Content)
	switch {
	case errors.Is(err, storage.ErrExtensionNotAllowed), errors.Is(err, storage.ErrInvalidFilename):
		return "", apperrors.NewValidationError("file type not allowed", map[string]any{"field": "attachment"})
	case errors.Is(err, storage.ErrFileTooLarge):
		return "", apperrors.NewValidationError("file too large", map[string]any{"field": "attachment"})
	case err != nil:
		return "", apperrors.NewInternalError(err)
	}
	return ref, nil
}

// AttachmentFile is an open ticket attachment. The caller closes Content.
type AttachmentFile struct {
	Name    string
	Content io.ReadCloser
}

// OpenAttachment returns the file attached to a ticket the actor may read.
func (s *TicketService) OpenAttachment(ctx context.Context, actor *domain.User, ticketID int64) (*AttachmentFile, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.AttachmentPath == nil || *ticket.AttachmentPath == "" || s.attachments == nil {
		return nil, apperrors.NewNotFound("attachment", map[string]any{"ticket_id": ticketID})
	}
	content, err := s.attachments.Open(*ticket.AttachmentPath)
	switch {
	case errors.Is(err, storage.ErrAttachmentMissing), errors.Is(err, storage.ErrInvalidFilename):
		return nil, apperrors.NewNotFound("attachment", map[string]any{"ticket_id": ticketID})
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}
	return &AttachmentFile{Name: storage.DisplayName(*ticket.AttachmentPath), Content: content}, nil
}

// GetTicket returns a ticket with its comments. Internal comments are only
// included for staff.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID int64) (*TicketDetail, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, actor.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: ticket, Comments: comments}, nil
}

// UpdateTicket applies a partial update. Status and assignee are staff-only;
// priority may be changed by the owner or staff.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID int64, in TicketUpdateInput) (*domain.Ticket, error) {
	var pending []events.Event

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.loadVisible(ctx, actor, ticketID)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && (in.Status != nil || in.AssignedToSet) {
			return apperrors.NewForbidden("only staff may change status or assignment")
		}

		now := s.now()
		actorInfo := actorOf(actor)

		if in.Status != nil {
			status, err := domain.ParseTicketStatus(*in.Status)
			if err != nil {
				return apperrors.NewValidationError("invalid status", map[string]any{"field": "status"})
			}
			if status != ticket.Status {
				pending = append(pending, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, actorInfo, now,
					events.TicketStatusChangedPayload{OldStatus: ticket.Status, NewStatus: status}))
			}
			ticket.SetStatus(status, now)
		}

		if in.AssignedToSet {
			if in.AssignedTo != nil {
				if err := s.checkAssignee(ctx, *in.AssignedTo); err != nil {
					return err
				}
			}
			if !sameAssignee(ticket.AssignedTo, in.AssignedTo) {
				pending = append(pending, events.NewEvent(events.EventTicketAssigned, ticket.ID, actorInfo, now,
					events.TicketAssignedPayload{OldAssignee: ticket.AssignedTo, NewAssignee: in.AssignedTo}))
			}
			ticket.AssignedTo = in.AssignedTo
		}

		if in.Priority != nil {
			priority, err := domain.ParseTicketPriority(*in.Priority)
			if err != nil {
				return apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority"})
			}
			if priority != ticket.Priority {
				pending = append(pending, events.NewEvent(events.EventTicketPriorityChanged, ticket.ID, actorInfo, now,
					events.TicketPriorityChangedPayload{OldPriority: ticket.Priority, NewPriority: priority}))
			}
			ticket.Priority = priority
		}

		ticket.UpdatedAt = now
		return notFound(s.tickets.Update(ctx, ticket), "ticket", ticket.ID)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	updated, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "ticket", ticketID))
	}
	for _, event := range pending {
		publish(ctx, s.dispatcher, s.logger, event)
	}
	return updated, nil
}

func (s *TicketService) checkAssignee(ctx context.Context, userID int64) error {
	assignee, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if assignee == nil || !assignee.IsStaff() {
		return apperrors.NewValidationError("invalid assignee", map[string]any{"field": "assigned_to"})
	}
	return nil
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// AddComment appends a comment and touches the ticket's updated_at.
// Only staff can post internal comments; the flag is dropped for end users.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID int64, content string, isInternal bool) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"field": "content"})
	}

	comment := &domain.Comment{
		TicketID:   ticketID,
		UserID:     actor.ID,
		Content:    content,
		IsInternal: isInternal && actor.IsStaff(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.loadVisible(ctx, actor, ticketID); err != nil {
			return err
		}
		now := s.now()
		comment.CreatedAt = now
		comment.UpdatedAt = now
		if err := s.comments.Create(ctx, comment); err != nil {
			return err
		}
		return s.tickets.Touch(ctx, ticketID, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	author := *actor
	comment.Author = &author

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCommentAdded, ticketID, actorOf(actor), comment.CreatedAt,
		events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Content, 120),
		}))
	return comment, nil
}

// Vote records or overwrites the actor's vote and returns fresh tallies.
func (s *TicketService) Vote(ctx context.Context, actor *domain.User, ticketID int64, isUpvote bool) (domain.VoteTally, error) {
	var tally domain.VoteTally
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
			return notFound(err, "ticket", ticketID)
		}
		vote := &domain.Vote{TicketID: ticketID, UserID: actor.ID, IsUpvote: isUpvote, CreatedAt: s.now()}
		if err := s.votes.Upsert(ctx, vote); err != nil {
			return err
		}
		var err error
		tally, err = s.votes.Tally(ctx, ticketID)
		return err
	})
	if err != nil {
		return domain.VoteTally{}, apperrors.MapError(err)
	}
	return tally, nil
}

// RemoveVote deletes the actor's vote and returns fresh tallies.
func (s *TicketService) RemoveVote(ctx context.Context, actor *domain.User, ticketID int64) (domain.VoteTally, error) {
	var tally domain.VoteTally
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.votes.Delete(ctx, ticketID, actor.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewVoteNotFound()
			}
			return err
		}
		var err error
		tally, err = s.votes.Tally(ctx, ticketID)
		return err
	})
	if err != nil {
		return domain.VoteTally{}, apperrors.MapError(err)
	}
	return tally, nil
}

// loadVisible fetches a ticket, rejecting end users who do not own it.
func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	if !actor.IsStaff() && !ticket.OwnedBy(actor.ID) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}
