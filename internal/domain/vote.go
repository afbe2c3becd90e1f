package domain

import "time"

// Vote is a single user's up or down vote on a ticket.
type Vote struct {
	ID        int64
	TicketID  int64
	UserID    int64
	IsUpvote  bool
	CreatedAt time.Time
}

// VoteTally is computed on read from vote rows.
type VoteTally struct {
	Upvotes   int64
	Downvotes int64
}
