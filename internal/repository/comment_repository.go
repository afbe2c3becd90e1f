package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const q = `
        INSERT INTO comments (ticket_id, user_id, content, is_internal, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        RETURNING id`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, q,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.IsInternal,
		comment.CreatedAt,
	).Scan(&comment.ID)
	return translate(err)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error) {
	q := `
        SELECT cm.id, cm.ticket_id, cm.user_id, cm.content, cm.is_internal, cm.created_at, cm.updated_at,
               u.id, u.username, u.email, u.role, u.is_active, u.created_at
        FROM comments cm
        JOIN users u ON u.id = cm.user_id
        WHERE cm.ticket_id=$1`
	if !includeInternal {
		q += ` AND NOT cm.is_internal`
	}
	q += ` ORDER BY cm.created_at ASC, cm.id ASC`

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var (
			comment domain.Comment
			author  domain.User
			role    string
		)
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.UserID,
			&comment.Content,
			&comment.IsInternal,
			&comment.CreatedAt,
			&comment.UpdatedAt,
			&author.ID,
			&author.Username,
			&author.Email,
			&role,
			&author.IsActive,
			&author.CreatedAt,
		); err != nil {
			return nil, err
		}
		author.Role = domain.Role(role)
		comment.Author = &author
		result = append(result, comment)
	}
	return result, rows.Err()
}
