package models

import "time"

// Status is the delivery status of a message. It only moves forward:
// pending -> sent -> delivered -> read, or to failed from any non-terminal
// state. read and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ParseStatus validates a status string from the wire.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// Valid reports whether the status is a known enum value.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusFailed
}

// CanTransitionTo reports whether moving to next is a legal forward
// transition. Same-status updates are allowed as idempotent no-ops.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if next == StatusFailed {
		return !s.Terminal()
	}
	if s.Terminal() || s == StatusFailed {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// AttachmentKind distinguishes image from generic file attachments.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is a URL reference carried by a message. The server never
// stores attachment bytes, only their location.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	URL         string         `json:"url"`
	DisplayName string         `json:"displayName,omitempty"`
}

// Valid reports whether the attachment is well-formed.
func (a Attachment) Valid() bool {
	return (a.Kind == AttachmentImage || a.Kind == AttachmentFile) && a.URL != ""
}

// Message represents a chat message
type Message struct {
	ID          string       `json:"id" db:"id"`
	ChatID      string       `json:"chatId" db:"chat_id"`
	SenderID    string       `json:"senderId" db:"sender_id"`
	Content     string       `json:"content" db:"content"`
	Attachments []Attachment `json:"attachments,omitempty" db:"attachments"`
	Status      Status       `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

// MessageWithSender includes sender display information
type MessageWithSender struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chatId"`
	Sender      UserResponse `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
