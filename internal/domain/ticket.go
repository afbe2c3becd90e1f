package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var ticketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ParseTicketStatus converts the wire representation into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, status := range ticketStatuses {
		if string(status) == value {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: status %q", ErrInvalidEnum, value)
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

var ticketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// ParseTicketPriority converts the wire representation into a TicketPriority.
func ParseTicketPriority(value string) (TicketPriority, error) {
	for _, priority := range ticketPriorities {
		if string(priority) == value {
			return priority, nil
		}
	}
	return "", fmt.Errorf("%w: priority %q", ErrInvalidEnum, value)
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             int64
	Subject        string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	UserID         int64
	AssignedTo     *int64
	CategoryID     int64
	AttachmentPath *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time

	// Populated on read.
	Creator      *User
	Assignee     *User
	Category     *Category
	CommentCount int64
	Upvotes      int64
	Downvotes    int64
}

// SetStatus applies a status change. Moving to resolved stamps ResolvedAt;
// no other transition touches it.
func (t *Ticket) SetStatus(status TicketStatus, now time.Time) {
	t.Status = status
	if status == TicketStatusResolved {
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
	}
}

// OwnedBy reports whether userID created the ticket.
func (t *Ticket) OwnedBy(userID int64) bool {
	return t.UserID == userID
}
