// Package store owns persistent state: users, chats, messages, contacts.
// Two implementations exist: Postgres (production) and an in-memory store
// used by tests and by the database-less development mode.
package store

import (
	"context"
	"time"

	"obrolin/server/internal/models"
)

// UserStore owns user identity, profile and presence.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Search matches users whose name or email contains the query,
	// case-insensitive, ordered by name.
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// ChatStore owns the set of pairwise chat threads. Chat identity is the
// normalized participant pair; CreateOrGet must never produce two chats for
// the same pair, even under concurrent calls.
type ChatStore interface {
	// CreateOrGet inserts the chat unless one already exists for its pair.
	// It returns the persisted chat and whether it was newly created.
	CreateOrGet(ctx context.Context, chat *models.Chat) (*models.Chat, bool, error)
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	GetByPair(ctx context.Context, a, b string) (*models.Chat, error)
	// ListForUser returns the user's chats ordered by updatedAt descending.
	ListForUser(ctx context.Context, userID string) ([]models.Chat, error)
	SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error
}

// MessageStore owns the ordered message log within chats.
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListByChat returns all messages of a chat, createdAt ascending.
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
	// FindRecentDuplicate looks for a message with the same chat, sender
	// and content created at or after since. Used for best-effort
	// duplicate-send suppression, not exactly-once delivery.
	FindRecentDuplicate(ctx context.Context, chatID, senderID, content string, since time.Time) (*models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Message, error)
}

// ContactStore owns the contact and block lists.
type ContactStore interface {
	Add(ctx context.Context, contact *models.Contact) error
	Remove(ctx context.Context, userID, contactID string) error
	List(ctx context.Context, userID string) ([]models.Contact, error)
	// HasContact reports whether userID has contactID in their list.
	HasContact(ctx context.Context, userID, contactID string) (bool, error)
	// AreConnected reports whether either side has the other as a contact.
	AreConnected(ctx context.Context, a, b string) (bool, error)
	Block(ctx context.Context, userID, blockedID string, at time.Time) error
	Unblock(ctx context.Context, userID, blockedID string) error
	// IsBlocked reports whether either side blocked the other.
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// Stores bundles the four stores for wiring.
type Stores struct {
	Users    UserStore
	Chats    ChatStore
	Messages MessageStore
	Contacts ContactStore
}
