package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/query"
)

func TestBuildTicketWhere(t *testing.T) {
	creator := int64(7)
	category := int64(3)
	status := domain.TicketStatusOpen
	priority := domain.TicketPriorityHigh

	tests := []struct {
		name      string
		filter    TicketFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filters",
			filter:    TicketFilter{},
			wantWhere: "1=1",
			wantArgs:  []any{},
		},
		{
			name:      "creator scope",
			filter:    TicketFilter{CreatorID: &creator},
			wantWhere: "1=1 AND t.user_id=$1",
			wantArgs:  []any{int64(7)},
		},
		{
			name:      "unassigned queue",
			filter:    TicketFilter{Unassigned: true, Status: &status},
			wantWhere: "1=1 AND t.assigned_to IS NULL AND t.status=$1",
			wantArgs:  []any{"open"},
		},
		{
			name: "every filter",
			filter: TicketFilter{
				AssigneeID: &creator,
				Status:     &status,
				Priority:   &priority,
				CategoryID: &category,
				Search:     "  printer  ",
			},
			wantWhere: "1=1 AND t.assigned_to=$1 AND t.status=$2 AND t.priority=$3 AND t.category_id=$4 AND (t.subject ILIKE $5 OR t.description ILIKE $5)",
			wantArgs:  []any{int64(7), "open", "high", int64(3), "%printer%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTicketWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildTicketWhere_EscapesWildcards(t *testing.T) {
	_, args := buildTicketWhere(TicketFilter{Search: `50%_off\`})
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestTicketOrderBy(t *testing.T) {
	assert.Equal(t, "t.created_at DESC, t.id ASC", ticketOrderBy(query.SortCreatedAt, query.OrderDesc))
	assert.Equal(t, "t.updated_at ASC, t.id ASC", ticketOrderBy(query.SortUpdatedAt, query.OrderAsc))
	assert.Equal(t, "comment_count DESC, t.id ASC", ticketOrderBy(query.SortMostReplied, query.OrderDesc))
	assert.Equal(t, "t.created_at DESC, t.id ASC", ticketOrderBy("", ""))
}

func TestBuildUserWhere(t *testing.T) {
	role := domain.RoleSupportAgent
	where, args := buildUserWhere(UserFilter{Role: &role, Search: "ali"})

	assert.Equal(t, "1=1 AND role=$1 AND (username ILIKE $2 OR email ILIKE $2)", where)
	assert.Equal(t, []any{"support_agent", "%ali%"}, args)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	err := translate(dup)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "users_email_key")

	other := errors.New("connection refused")
	assert.Equal(t, other, translate(other))
}
