package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

// VoteRepository stores one vote per (ticket, user).
type VoteRepository interface {
	Upsert(ctx context.Context, vote *domain.Vote) error
	Delete(ctx context.Context, ticketID, userID int64) error
	Tally(ctx context.Context, ticketID int64) (domain.VoteTally, error)
}

type voteRepository struct {
	pool *pgxpool.Pool
}

// NewVoteRepository creates repository.
func NewVoteRepository(pool *pgxpool.Pool) VoteRepository {
	return &voteRepository{pool: pool}
}

func (r *voteRepository) Upsert(ctx context.Context, vote *domain.Vote) error {
	const q = `
        INSERT INTO votes (ticket_id, user_id, is_upvote, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (ticket_id, user_id) DO UPDATE SET is_upvote = EXCLUDED.is_upvote
        RETURNING id, created_at`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, q,
		vote.TicketID,
		vote.UserID,
		vote.IsUpvote,
		vote.CreatedAt,
	).Scan(&vote.ID, &vote.CreatedAt)
	return translate(err)
}

func (r *voteRepository) Delete(ctx context.Context, ticketID, userID int64) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM votes WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *voteRepository) Tally(ctx context.Context, ticketID int64) (domain.VoteTally, error) {
	const q = `
        SELECT COUNT(*) FILTER (WHERE is_upvote),
               COUNT(*) FILTER (WHERE NOT is_upvote)
        FROM votes WHERE ticket_id=$1`
	var tally domain.VoteTally
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, q, ticketID).Scan(&tally.Upvotes, &tally.Downvotes)
	return tally, err
}
