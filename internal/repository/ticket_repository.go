package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/query"
)

// TicketFilter captures the ticket listing parameters after role scoping.
type TicketFilter struct {
	CreatorID  *int64
	AssigneeID *int64
	Unassigned bool
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	CategoryID *int64
	Search     string
	SortBy     query.TicketSort
	Order      query.SortOrder
	Page       query.Page
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Touch(ctx context.Context, id int64, at time.Time) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.subject, t.description, t.status, t.priority, t.user_id, t.assigned_to,
               t.category_id, t.attachment_path, t.created_at, t.updated_at, t.resolved_at,
               cu.id, cu.username, cu.email, cu.role, cu.is_active, cu.created_at,
               au.id, au.username, au.email, au.role, au.is_active, au.created_at,
               c.id, c.name, c.description, c.color, c.is_active, c.created_at,
               (SELECT COUNT(*) FROM comments cm WHERE cm.ticket_id = t.id) AS comment_count,
               (SELECT COUNT(*) FROM votes v WHERE v.ticket_id = t.id AND v.is_upvote) AS upvotes,
               (SELECT COUNT(*) FROM votes v WHERE v.ticket_id = t.id AND NOT v.is_upvote) AS downvotes
        FROM tickets t
        JOIN users cu ON cu.id = t.user_id
        LEFT JOIN users au ON au.id = t.assigned_to
        JOIN categories c ON c.id = t.category_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const q = `
        INSERT INTO tickets (subject, description, status, priority, user_id, assigned_to, category_id,
                             attachment_path, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        RETURNING id`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, q,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.UserID,
		ticket.AssignedTo,
		ticket.CategoryID,
		ticket.AttachmentPath,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const q = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, assigned_to=$5,
            resolved_at=$6, updated_at=$7
        WHERE id=$8`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, q,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ResolvedAt,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var ticket domain.Ticket
	row := persistence.Conn(ctx, r.pool).QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id)
	if err := scanTicket(row, &ticket); err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error) {
	where, args := buildTicketWhere(filter)
	conn := persistence.Conn(ctx, r.pool)

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketSelect, where, ticketOrderBy(filter.SortBy, filter.Order), filter.Page.Limit(), filter.Page.Offset())

	rows, err := conn.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

// buildTicketWhere renders the WHERE clause and positional args for a listing.
func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("t.user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.assigned_to IS NULL")
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, containsPattern(term))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(t.subject ILIKE %s OR t.description ILIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

// ticketOrderBy renders the ORDER BY list. Ties always break on id ascending.
func ticketOrderBy(sortBy query.TicketSort, order query.SortOrder) string {
	column := "t.created_at"
	switch sortBy {
	case query.SortUpdatedAt:
		column = "t.updated_at"
	case query.SortMostReplied:
		column = "comment_count"
	}
	return fmt.Sprintf("%s %s, t.id ASC", column, order.SQL())
}

// nullableUser receives the LEFT JOINed assignee columns.
type nullableUser struct {
	ID        *int64
	Username  *string
	Email     *string
	Role      *string
	IsActive  *bool
	CreatedAt *time.Time
}

func (n nullableUser) user() *domain.User {
	if n.ID == nil {
		return nil
	}
	u := &domain.User{ID: *n.ID}
	if n.Username != nil {
		u.Username = *n.Username
	}
	if n.Email != nil {
		u.Email = *n.Email
	}
	if n.Role != nil {
		u.Role = domain.Role(*n.Role)
	}
	if n.IsActive != nil {
		u.IsActive = *n.IsActive
	}
	if n.CreatedAt != nil {
		u.CreatedAt = *n.CreatedAt
	}
	return u
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	var (
		status, priority, creatorRole string
		creator                       domain.User
		assignee                      nullableUser
		category                      domain.Category
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&status,
		&priority,
		&ticket.UserID,
		&ticket.AssignedTo,
		&ticket.CategoryID,
		&ticket.AttachmentPath,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&creator.ID,
		&creator.Username,
		&creator.Email,
		&creatorRole,
		&creator.IsActive,
		&creator.CreatedAt,
		&assignee.ID,
		&assignee.Username,
		&assignee.Email,
		&assignee.Role,
		&assignee.IsActive,
		&assignee.CreatedAt,
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Color,
		&category.IsActive,
		&category.CreatedAt,
		&ticket.CommentCount,
		&ticket.Upvotes,
		&ticket.Downvotes,
	); err != nil {
		return err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.Priority = domain.TicketPriority(priority)
	creator.Role = domain.Role(creatorRole)
	ticket.Creator = &creator
	ticket.Assignee = assignee.user()
	ticket.Category = &category
	return nil
}
