package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/storage"
	"github.com/spec-kit/helpdesk/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type ticketFixture struct {
	store    *testutil.Store
	svc      *TicketService
	events   *recordedEvents
	dir      string
	category domain.Category
	owner    domain.User
	other    domain.User
	agent    domain.User
	admin    domain.User
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	store := testutil.NewStore()
	dir := t.TempDir()
	attachments, err := storage.NewLocalStore(dir, 1024)
	require.NoError(t, err)

	recorder := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketAssigned,
		events.EventTicketCommentAdded,
	} {
		dispatcher.Subscribe(et, recorder.handler)
	}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets(),
		CommentRepo:  store.Comments(),
		VoteRepo:     store.Votes(),
		CategoryRepo: store.Categories(),
		UserRepo:     store.Users(),
		Transactor:   store,
		Attachments:  attachments,
		Dispatcher:   dispatcher,
		Clock:        fixedClock,
	})

	return &ticketFixture{
		store:    store,
		svc:      svc,
		events:   recorder,
		dir:      dir,
		category: store.SeedCategory(domain.Category{Name: "Billing", IsActive: true}),
		owner:    store.SeedUser(domain.User{Username: "alice", Email: "alice@example.com", Role: domain.RoleEndUser, IsActive: true}),
		other:    store.SeedUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleEndUser, IsActive: true}),
		agent:    store.SeedUser(domain.User{Username: "agent", Email: "agent@example.com", Role: domain.RoleSupportAgent, IsActive: true}),
		admin:    store.SeedUser(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin, IsActive: true}),
	}
}

func (f *ticketFixture) seedTicket(owner domain.User, mutate func(*domain.Ticket)) domain.Ticket {
	ticket := domain.Ticket{
		Subject:     "Printer on fire",
		Description: "It is actually on fire",
		UserID:      owner.ID,
		CategoryID:  f.category.ID,
	}
	if mutate != nil {
		mutate(&ticket)
	}
	return f.store.SeedTicket(ticket)
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Join(dir, e.Name()))
	}
	return names
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }
