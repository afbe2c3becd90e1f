// Package testutil provides an in-memory implementation of the repository
// interfaces for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/query"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type voteKey struct {
	ticketID int64
	userID   int64
}

type tables struct {
	users      map[int64]domain.User
	categories map[int64]domain.Category
	tickets    map[int64]domain.Ticket
	comments   map[int64]domain.Comment
	votes      map[voteKey]domain.Vote
}

func (t tables) clone() tables {
	out := tables{
		users:      make(map[int64]domain.User, len(t.users)),
		categories: make(map[int64]domain.Category, len(t.categories)),
		tickets:    make(map[int64]domain.Ticket, len(t.tickets)),
		comments:   make(map[int64]domain.Comment, len(t.comments)),
		votes:      make(map[voteKey]domain.Vote, len(t.votes)),
	}
	for k, v := range t.users {
		out.users[k] = v
	}
	for k, v := range t.categories {
		out.categories[k] = v
	}
	for k, v := range t.tickets {
		out.tickets[k] = v
	}
	for k, v := range t.comments {
		out.comments[k] = v
	}
	for k, v := range t.votes {
		out.votes[k] = v
	}
	return out
}

// Store holds every table in memory. Transactions snapshot the tables and
// restore them when the callback fails.
type Store struct {
	mu     sync.Mutex
	data   tables
	nextID int64

	// FailTicketCreate, when set, is returned by the next ticket insert.
	FailTicketCreate error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: tables{}.clone()}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Categories returns the category repository view.
func (s *Store) Categories() repository.CategoryRepository { return categoryRepo{s} }

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the comment repository view.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// Votes returns the vote repository view.
func (s *Store) Votes() repository.VoteRepository { return voteRepo{s} }

// WithinTx implements persistence.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// SeedUser inserts u and returns it with its id and timestamps filled.
func (s *Store) SeedUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Add(time.Duration(u.ID) * time.Second)
	}
	s.data.users[u.ID] = u
	return u
}

// SeedCategory inserts c.
func (s *Store) SeedCategory(c domain.Category) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	if c.Color == "" {
		c.Color = domain.DefaultCategoryColor
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.data.categories[c.ID] = c
	return c
}

// SeedTicket inserts t as-is apart from the id.
func (s *Store) SeedTicket(t domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	if t.Status == "" {
		t.Status = domain.TicketStatusOpen
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	s.data.tickets[t.ID] = t
	return t
}

// SeedComment inserts c.
func (s *Store) SeedComment(c domain.Comment) domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	s.data.comments[c.ID] = c
	return c
}

// VoteCount returns the number of stored vote rows for a ticket.
func (s *Store) VoteCount(ticketID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.data.votes {
		if k.ticketID == ticketID {
			n++
		}
	}
	return n
}

// TicketCount returns the number of stored tickets.
func (s *Store) TicketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.tickets)
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) uniqueLocked(u *domain.User) error {
	for _, existing := range r.s.data.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return fmt.Errorf("%w: users_username_key", repository.ErrDuplicate)
		}
		if existing.Email == u.Email {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
	}
	return nil
}

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	u.ID = r.s.id()
	u.CreatedAt = time.Now().UTC()
	r.s.data.users[u.ID] = *u
	return nil
}

func (r userRepo) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	r.s.data.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r userRepo) ListWithFilter(_ context.Context, filter repository.UserFilter) ([]domain.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := []domain.User{}
	for _, u := range r.s.data.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(u.Username), term) && !strings.Contains(strings.ToLower(u.Email), term) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (r userRepo) ListStaff(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	staff := []domain.User{}
	for _, u := range r.s.data.users {
		if u.Role.IsStaff() && u.IsActive {
			staff = append(staff, u)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].Username < staff[j].Username })
	return staff, nil
}

func (r userRepo) Stats(_ context.Context) (domain.UserStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var stats domain.UserStats
	for _, u := range r.s.data.users {
		stats.TotalUsers++
		if u.IsActive {
			stats.ActiveUsers++
		} else {
			stats.InactiveUsers++
		}
		switch u.Role {
		case domain.RoleEndUser:
			stats.EndUsers++
		case domain.RoleSupportAgent:
			stats.SupportAgents++
		case domain.RoleAdmin:
			stats.Admins++
		}
	}
	return stats, nil
}

// --- categories ---

type categoryRepo struct{ s *Store }

func (r categoryRepo) uniqueLocked(c *domain.Category) error {
	for _, existing := range r.s.data.categories {
		if existing.ID != c.ID && existing.Name == c.Name {
			return fmt.Errorf("%w: categories_name_key", repository.ErrDuplicate)
		}
	}
	return nil
}

func (r categoryRepo) withCountLocked(c domain.Category) domain.Category {
	c.TicketCount = 0
	for _, t := range r.s.data.tickets {
		if t.CategoryID == c.ID {
			c.TicketCount++
		}
	}
	return c
}

func (r categoryRepo) Create(_ context.Context, c *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.uniqueLocked(c); err != nil {
		return err
	}
	c.ID = r.s.id()
	c.CreatedAt = time.Now().UTC()
	r.s.data.categories[c.ID] = *c
	return nil
}

func (r categoryRepo) Update(_ context.Context, c *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.categories[c.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.uniqueLocked(c); err != nil {
		return err
	}
	stored := *c
	stored.TicketCount = 0
	r.s.data.categories[c.ID] = stored
	return nil
}

func (r categoryRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.categories[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.categories, id)
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c = r.withCountLocked(c)
	return &c, nil
}

func (r categoryRepo) GetByName(_ context.Context, name string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.categories {
		if c.Name == name {
			c = r.withCountLocked(c)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r categoryRepo) List(_ context.Context, includeInactive bool) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Category{}
	for _, c := range r.s.data.categories {
		if !includeInactive && !c.IsActive {
			continue
		}
		out = append(out, r.withCountLocked(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r categoryRepo) CountTickets(_ context.Context, id int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.withCountLocked(domain.Category{ID: id}).TicketCount, nil
}

// --- tickets ---

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailTicketCreate; err != nil {
		r.s.FailTicketCreate = nil
		return err
	}
	t.ID = r.s.id()
	t.UpdatedAt = t.CreatedAt
	r.s.data.tickets[t.ID] = stripDerived(*t)
	return nil
}

func (r ticketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tickets[t.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.tickets[t.ID] = stripDerived(*t)
	return nil
}

func (r ticketRepo) Touch(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = at
	r.s.data.tickets[id] = t
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t = r.populateLocked(t)
	return &t, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(f.Search))
	matched := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		switch {
		case f.CreatorID != nil && t.UserID != *f.CreatorID:
			continue
		case f.AssigneeID != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssigneeID):
			continue
		case f.Unassigned && t.AssignedTo != nil:
			continue
		case f.Status != nil && t.Status != *f.Status:
			continue
		case f.Priority != nil && t.Priority != *f.Priority:
			continue
		case f.CategoryID != nil && t.CategoryID != *f.CategoryID:
			continue
		case term != "" && !strings.Contains(strings.ToLower(t.Subject), term) &&
			!strings.Contains(strings.ToLower(t.Description), term):
			continue
		}
		matched = append(matched, r.populateLocked(t))
	}

	sort.Slice(matched, func(i, j int) bool {
		cmp := compareTickets(matched[i], matched[j], f.SortBy)
		if cmp == 0 {
			return matched[i].ID < matched[j].ID
		}
		if f.Order == query.OrderAsc {
			return cmp < 0
		}
		return cmp > 0
	})
	return paginate(matched, f.Page), int64(len(matched)), nil
}

func compareTickets(a, b domain.Ticket, sortBy query.TicketSort) int {
	switch sortBy {
	case query.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case query.SortMostReplied:
		switch {
		case a.CommentCount < b.CommentCount:
			return -1
		case a.CommentCount > b.CommentCount:
			return 1
		}
		return 0
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r ticketRepo) populateLocked(t domain.Ticket) domain.Ticket {
	if u, ok := r.s.data.users[t.UserID]; ok {
		creator := u
		t.Creator = &creator
	}
	t.Assignee = nil
	if t.AssignedTo != nil {
		if u, ok := r.s.data.users[*t.AssignedTo]; ok {
			assignee := u
			t.Assignee = &assignee
		}
	}
	if c, ok := r.s.data.categories[t.CategoryID]; ok {
		category := c
		t.Category = &category
	}
	t.CommentCount, t.Upvotes, t.Downvotes = 0, 0, 0
	for _, c := range r.s.data.comments {
		if c.TicketID == t.ID {
			t.CommentCount++
		}
	}
	for k, v := range r.s.data.votes {
		if k.ticketID != t.ID {
			continue
		}
		if v.IsUpvote {
			t.Upvotes++
		} else {
			t.Downvotes++
		}
	}
	return t
}

func stripDerived(t domain.Ticket) domain.Ticket {
	t.Creator, t.Assignee, t.Category = nil, nil, nil
	t.CommentCount, t.Upvotes, t.Downvotes = 0, 0, 0
	return t
}

// --- comments ---

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tickets[c.TicketID]; !ok {
		return fmt.Errorf("comments_ticket_id_fkey violated for ticket %d", c.TicketID)
	}
	c.ID = r.s.id()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	stored.Author = nil
	r.s.data.comments[c.ID] = stored
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.s.data.comments {
		if c.TicketID != ticketID || (c.IsInternal && !includeInternal) {
			continue
		}
		if u, ok := r.s.data.users[c.UserID]; ok {
			author := u
			c.Author = &author
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- votes ---

type voteRepo struct{ s *Store }

func (r voteRepo) Upsert(_ context.Context, v *domain.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := voteKey{ticketID: v.TicketID, userID: v.UserID}
	if existing, ok := r.s.data.votes[key]; ok {
		existing.IsUpvote = v.IsUpvote
		r.s.data.votes[key] = existing
		*v = existing
		return nil
	}
	v.ID = r.s.id()
	r.s.data.votes[key] = *v
	return nil
}

func (r voteRepo) Delete(_ context.Context, ticketID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := voteKey{ticketID: ticketID, userID: userID}
	if _, ok := r.s.data.votes[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.votes, key)
	return nil
}

func (r voteRepo) Tally(_ context.Context, ticketID int64) (domain.VoteTally, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var tally domain.VoteTally
	for k, v := range r.s.data.votes {
		if k.ticketID != ticketID {
			continue
		}
		if v.IsUpvote {
			tally.Upvotes++
		} else {
			tally.Downvotes++
		}
	}
	return tally, nil
}

func paginate[T any](items []T, page query.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
