package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/query"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestBuildTicketFilter_EndUserAlwaysScopedToOwnTickets(t *testing.T) {
	user := &domain.User{ID: 7, Role: domain.RoleEndUser}

	filter, err := BuildTicketFilter(user, TicketListInput{MyTickets: boolPtr(false), Queue: "unassigned"})
	require.NoError(t, err)

	require.NotNil(t, filter.CreatorID)
	assert.Equal(t, int64(7), *filter.CreatorID)
	assert.False(t, filter.Unassigned)
	assert.Nil(t, filter.AssigneeID)
}

func TestBuildTicketFilter_StaffQueues(t *testing.T) {
	agent := &domain.User{ID: 3, Role: domain.RoleSupportAgent}

	mine, err := BuildTicketFilter(agent, TicketListInput{Queue: "my_tickets"})
	require.NoError(t, err)
	require.NotNil(t, mine.AssigneeID)
	assert.Equal(t, int64(3), *mine.AssigneeID)
	assert.Nil(t, mine.CreatorID)

	unassigned, err := BuildTicketFilter(agent, TicketListInput{Queue: "unassigned"})
	require.NoError(t, err)
	assert.True(t, unassigned.Unassigned)

	all, err := BuildTicketFilter(agent, TicketListInput{})
	require.NoError(t, err)
	assert.Nil(t, all.CreatorID)
	assert.Nil(t, all.AssigneeID)
	assert.Equal(t, query.SortCreatedAt, all.SortBy)
	assert.Equal(t, query.OrderDesc, all.Order)
	assert.Equal(t, query.DefaultPerPage, all.Page.PerPage)
}

func TestBuildTicketFilter_InvalidValues(t *testing.T) {
	agent := &domain.User{ID: 3, Role: domain.RoleSupportAgent}
	tests := []struct {
		name  string
		input TicketListInput
	}{
		{"status", TicketListInput{Status: "pending"}},
		{"priority", TicketListInput{Priority: "critical"}},
		{"sort_by", TicketListInput{SortBy: "votes"}},
		{"sort_order", TicketListInput{SortOrder: "up"}},
		{"queue", TicketListInput{Queue: "everything"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTicketFilter(agent, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidFilterValue))
		})
	}
}

func TestListTickets_PaginationAndScope(t *testing.T) {
	f := newTicketFixture(t)
	for i := 0; i < 12; i++ {
		f.seedTicket(f.owner, func(tk *domain.Ticket) {
			tk.CreatedAt = fixedNow.Add(time.Duration(i) * time.Minute)
		})
	}
	f.seedTicket(f.other, nil)

	res, err := f.svc.ListTickets(context.Background(), &f.owner, TicketListInput{Page: 2, PerPage: 5})
	require.NoError(t, err)
	assert.Len(t, res.Tickets, 5)
	assert.Equal(t, int64(12), res.Meta.Total)
	assert.Equal(t, 3, res.Meta.Pages)
	assert.True(t, res.Meta.HasNext)
	assert.True(t, res.Meta.HasPrev)
	for _, tk := range res.Tickets {
		assert.Equal(t, f.owner.ID, tk.UserID)
	}

	all, err := f.svc.ListTickets(context.Background(), &f.agent, TicketListInput{PerPage: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(13), all.Meta.Total)
}

func TestCreateTicket(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.svc.CreateTicket(context.Background(), &f.owner, TicketCreateInput{
		Subject:     "  VPN down  ",
		Description: "Cannot connect",
		CategoryID:  f.category.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "VPN down", ticket.Subject)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, f.owner.ID, ticket.UserID)
	assert.Nil(t, ticket.AssignedTo)
	assert.Nil(t, ticket.ResolvedAt)
	assert.Equal(t, fixedNow, ticket.CreatedAt)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.events.types())
}

func TestCreateTicket_Validation(t *testing.T) {
	f := newTicketFixture(t)
	inactive := f.store.SeedCategory(domain.Category{Name: "Old", IsActive: false})

	tests := []struct {
		name  string
		input TicketCreateInput
	}{
		{"missing subject", TicketCreateInput{Description: "d", CategoryID: f.category.ID}},
		{"long subject", TicketCreateInput{Subject: strings.Repeat("x", MaxSubjectLength+1), Description: "d", CategoryID: f.category.ID}},
		{"missing description", TicketCreateInput{Subject: "s", CategoryID: f.category.ID}},
		{"missing category", TicketCreateInput{Subject: "s", Description: "d"}},
		{"unknown category", TicketCreateInput{Subject: "s", Description: "d", CategoryID: 9999}},
		{"inactive category", TicketCreateInput{Subject: "s", Description: "d", CategoryID: inactive.ID}},
		{"bad priority", TicketCreateInput{Subject: "s", Description: "d", CategoryID: f.category.ID, Priority: "critical"}},
		{"bad attachment", TicketCreateInput{Subject: "s", Description: "d", CategoryID: f.category.ID,
			Attachment: &AttachmentInput{Filename: "run.exe", Content: strings.NewReader("MZ")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTicket(context.Background(), &f.owner, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.store.TicketCount())
}

func TestCreateTicket_WithAttachment(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.svc.CreateTicket(context.Background(), &f.owner, TicketCreateInput{
		Subject:     "Screenshot",
		Description: "See attached",
		CategoryID:  f.category.ID,
		Priority:    "high",
		Attachment:  &AttachmentInput{Filename: "screen shot.png", Content: strings.NewReader("png-bytes")},
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.AttachmentPath)
	assert.True(t, strings.HasPrefix(*ticket.AttachmentPath, "uploads/"))
	assert.True(t, strings.HasSuffix(*ticket.AttachmentPath, "_screen_shot.png"))
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Len(t, uploadedFiles(t, f.dir), 1)
}

func TestOpenAttachment(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, &f.owner, TicketCreateInput{
		Subject:     "Invoice",
		Description: "attached",
		CategoryID:  f.category.ID,
		Attachment:  &AttachmentInput{Filename: "invoice.pdf", Content: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)

	for _, actor := range []domain.User{f.owner, f.agent} {
		file, err := f.svc.OpenAttachment(ctx, &actor, ticket.ID)
		require.NoError(t, err, actor.Username)
		body, err := io.ReadAll(file.Content)
		require.NoError(t, err)
		require.NoError(t, file.Content.Close())
		assert.Equal(t, "%PDF-1.4", string(body))
		assert.Equal(t, "invoice.pdf", file.Name)
	}

	_, err = f.svc.OpenAttachment(ctx, &f.other, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "got %v", err)

	plain := f.seedTicket(f.owner, nil)
	_, err = f.svc.OpenAttachment(ctx, &f.owner, plain.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)

	_, err = f.svc.OpenAttachment(ctx, &f.owner, 9999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestCreateTicket_InsertFailureRemovesAttachment(t *testing.T) {
	f := newTicketFixture(t)
	f.store.FailTicketCreate = errors.New("disk full")

	_, err := f.svc.CreateTicket(context.Background(), &f.owner, TicketCreateInput{
		Subject:     "Screenshot",
		Description: "See attached",
		CategoryID:  f.category.ID,
		Attachment:  &AttachmentInput{Filename: "log.txt", Content: strings.NewReader("trace")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.Empty(t, uploadedFiles(t, f.dir))
	assert.Equal(t, 0, f.store.TicketCount())
	assert.Empty(t, f.events.types())
}

func TestGetTicket_Visibility(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)
	f.store.SeedComment(domain.Comment{TicketID: ticket.ID, UserID: f.owner.ID, Content: "any news?", CreatedAt: fixedNow})
	f.store.SeedComment(domain.Comment{TicketID: ticket.ID, UserID: f.agent.ID, Content: "looks like user error", IsInternal: true, CreatedAt: fixedNow.Add(time.Minute)})

	detail, err := f.svc.GetTicket(context.Background(), &f.owner, ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.False(t, detail.Comments[0].IsInternal)

	staffView, err := f.svc.GetTicket(context.Background(), &f.agent, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, staffView.Comments, 2)

	_, err = f.svc.GetTicket(context.Background(), &f.other, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.GetTicket(context.Background(), &f.agent, 424242)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdateTicket_ResolveSetsResolvedAt(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	updated, err := f.svc.UpdateTicket(context.Background(), &f.agent, ticket.ID, TicketUpdateInput{Status: strPtr("resolved")})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, fixedNow, *updated.ResolvedAt)
	assert.Equal(t, fixedNow, updated.UpdatedAt)

	reopened, err := f.svc.UpdateTicket(context.Background(), &f.agent, ticket.ID, TicketUpdateInput{Status: strPtr("open")})
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt, "leaving resolved keeps the timestamp")

	assert.Equal(t, []events.EventType{events.EventTicketStatusChanged, events.EventTicketStatusChanged}, f.events.types())
}

func TestUpdateTicket_Assignment(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	assigned, err := f.svc.UpdateTicket(context.Background(), &f.admin, ticket.ID, TicketUpdateInput{
		AssignedToSet: true,
		AssignedTo:    int64Ptr(f.agent.ID),
	})
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, f.agent.ID, *assigned.AssignedTo)
	require.NotNil(t, assigned.Assignee)
	assert.Equal(t, "agent", assigned.Assignee.Username)

	_, err = f.svc.UpdateTicket(context.Background(), &f.admin, ticket.ID, TicketUpdateInput{
		AssignedToSet: true,
		AssignedTo:    int64Ptr(f.other.ID),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.UpdateTicket(context.Background(), &f.admin, ticket.ID, TicketUpdateInput{
		AssignedToSet: true,
		AssignedTo:    int64Ptr(9999),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	unassigned, err := f.svc.UpdateTicket(context.Background(), &f.admin, ticket.ID, TicketUpdateInput{AssignedToSet: true})
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedTo)
}

func TestUpdateTicket_EndUserRestrictions(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	_, err := f.svc.UpdateTicket(context.Background(), &f.owner, ticket.ID, TicketUpdateInput{Status: strPtr("closed")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.UpdateTicket(context.Background(), &f.owner, ticket.ID, TicketUpdateInput{AssignedToSet: true, AssignedTo: int64Ptr(f.agent.ID)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.UpdateTicket(context.Background(), &f.other, ticket.ID, TicketUpdateInput{Priority: strPtr("low")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	updated, err := f.svc.UpdateTicket(context.Background(), &f.owner, ticket.ID, TicketUpdateInput{Priority: strPtr("urgent")})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
}

func TestUpdateTicket_InvalidValuesRollBack(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	_, err := f.svc.UpdateTicket(context.Background(), &f.agent, ticket.ID, TicketUpdateInput{
		Status:   strPtr("in_progress"),
		Priority: strPtr("critical"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	stored, err := f.store.Tickets().GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, f.events.types())
}

func TestAddComment(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, func(tk *domain.Ticket) {
		tk.CreatedAt = fixedNow.Add(-time.Hour)
	})

	comment, err := f.svc.AddComment(context.Background(), &f.owner, ticket.ID, "  please hurry  ", true)
	require.NoError(t, err)
	assert.Equal(t, "please hurry", comment.Content)
	assert.False(t, comment.IsInternal, "end users cannot post internal notes")
	require.NotNil(t, comment.Author)
	assert.Equal(t, "alice", comment.Author.Username)

	internal, err := f.svc.AddComment(context.Background(), &f.agent, ticket.ID, "checking logs", true)
	require.NoError(t, err)
	assert.True(t, internal.IsInternal)

	stored, err := f.store.Tickets().GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.UpdatedAt)
	assert.Equal(t, int64(2), stored.CommentCount)

	_, err = f.svc.AddComment(context.Background(), &f.owner, ticket.ID, "   ", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.AddComment(context.Background(), &f.other, ticket.ID, "me too", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestVote_OneRowPerUser(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	tally, err := f.svc.Vote(context.Background(), &f.other, ticket.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{Upvotes: 1}, tally)

	tally, err = f.svc.Vote(context.Background(), &f.other, ticket.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{Upvotes: 1}, tally)

	tally, err = f.svc.Vote(context.Background(), &f.other, ticket.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{Downvotes: 1}, tally)
	assert.Equal(t, 1, f.store.VoteCount(ticket.ID))

	tally, err = f.svc.Vote(context.Background(), &f.agent, ticket.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{Upvotes: 1, Downvotes: 1}, tally)

	_, err = f.svc.Vote(context.Background(), &f.other, 9999, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRemoveVote(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.seedTicket(f.owner, nil)

	_, err := f.svc.RemoveVote(context.Background(), &f.other, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeVoteNotFound))

	_, err = f.svc.Vote(context.Background(), &f.other, ticket.ID, true)
	require.NoError(t, err)

	tally, err := f.svc.RemoveVote(context.Background(), &f.other, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{}, tally)
	assert.Equal(t, 0, f.store.VoteCount(ticket.ID))
}

func TestStringPreview(t *testing.T) {
	assert.Equal(t, "short", stringPreview("  short ", 10))
	assert.Equal(t, "abcdefg...", stringPreview("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", stringPreview("abcdef", 2))
}
