package models

import "time"

// Contact represents a connection from one user to another. The pair is
// mutual by convention once both sides added each other.
type Contact struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	ContactID string    `json:"contactId" db:"contact_id"`
	AddedAt   time.Time `json:"addedAt" db:"added_at"`
}

// ContactWithUser includes the contact's user information
type ContactWithUser struct {
	ID       string       `json:"id"`
	UserID   string       `json:"userId"`
	Contact  UserResponse `json:"contact"`
	AddedAt  time.Time    `json:"addedAt"`
	IsOnline bool         `json:"isOnline"`
}

// Block marks that a user blocked another user. A blocked pair cannot open
// a chat in either direction.
type Block struct {
	UserID    string    `json:"userId" db:"user_id"`
	BlockedID string    `json:"blockedId" db:"blocked_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
