package domain

import "time"

// Comment is a note on a ticket thread. Internal comments are staff-only.
type Comment struct {
	ID         int64
	TicketID   int64
	UserID     int64
	Content    string
	IsInternal bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Author *User
}
