package models

import (
	"strings"
	"time"
)

// Chat represents a pairwise conversation thread between exactly two users.
// At most one chat exists per unordered pair of participants; PairKey is the
// normalized identity used to enforce that.
type Chat struct {
	ID            string    `json:"id" db:"id"`
	Participants  [2]string `json:"participants" db:"-"` // sorted, see NormalizePair
	LastMessageID *string   `json:"lastMessageId,omitempty" db:"last_message_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// HasParticipant reports whether the user belongs to the chat.
func (c *Chat) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Chat) OtherParticipant(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// NormalizePair orders a participant pair so {A,B} and {B,A} map to the
// same chat identity.
func NormalizePair(a, b string) (string, string) {
	if strings.Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}

// PairKey returns the normalized pair key for two participants.
func PairKey(a, b string) string {
	lo, hi := NormalizePair(a, b)
	return lo + ":" + hi
}

// LastMessageSummary is the last-message preview attached to a chat listing.
type LastMessageSummary struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatSummary is a chat with participant display info and last-message
// preview, as returned by the chat listing.
type ChatSummary struct {
	ID           string              `json:"id"`
	Participants []UserResponse      `json:"participants"`
	LastMessage  *LastMessageSummary `json:"lastMessage,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}
