package domain

import "time"

// Session is the server-side record backing an issued access token.
type Session struct {
	ID        string
	UserID    int64
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}
