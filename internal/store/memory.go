package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
)

// Memory is an in-memory implementation of all stores. A single mutex
// serializes every operation, which also closes the concurrent chat
// creation race: check-then-insert runs as one critical section.
type Memory struct {
	mu       sync.Mutex
	users    map[string]*models.User
	emails   map[string]string // email -> user id
	chats    map[string]*models.Chat
	pairs    map[string]string // pair key -> chat id
	messages map[string]*models.Message
	byChat   map[string][]string // chat id -> message ids, insert order
	contacts map[string]map[string]models.Contact
	blocks   map[string]map[string]time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*models.User),
		emails:   make(map[string]string),
		chats:    make(map[string]*models.Chat),
		pairs:    make(map[string]string),
		messages: make(map[string]*models.Message),
		byChat:   make(map[string][]string),
		contacts: make(map[string]map[string]models.Contact),
		blocks:   make(map[string]map[string]time.Time),
	}
}

// Stores returns the memory store wired as every store.
func (m *Memory) Stores() Stores {
	return Stores{
		Users:    &memUsers{m},
		Chats:    &memChats{m},
		Messages: &memMessages{m},
		Contacts: &memContacts{m},
	}
}

type memUsers struct{ *Memory }
type memChats struct{ *Memory }
type memMessages struct{ *Memory }
type memContacts struct{ *Memory }

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func copyChat(c *models.Chat) *models.Chat {
	cp := *c
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		cp.LastMessageID = &id
	}
	return &cp
}

func copyMessage(msg *models.Message) *models.Message {
	cp := *msg
	cp.Attachments = append([]models.Attachment(nil), msg.Attachments...)
	return &cp
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.emails[user.Email]; ok {
		return apperr.Conflict("Email already registered")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.users[user.ID] = copyUser(user)
	m.emails[user.Email] = user.ID
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return copyUser(user), nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return copyUser(m.users[id]), nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return apperr.NotFound("User not found")
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *memUsers) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	out := make([]models.User, 0)
	for _, user := range m.users {
		if strings.Contains(strings.ToLower(user.Name), q) ||
			strings.Contains(strings.ToLower(user.Email), q) {
			out = append(out, *copyUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	user.IsOnline = online
	user.LastSeen = at
	return nil
}

func (m *memChats) CreateOrGet(ctx context.Context, chat *models.Chat) (*models.Chat, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(chat.Participants[0], chat.Participants[1])
	if id, ok := m.pairs[key]; ok {
		return copyChat(m.chats[id]), false, nil
	}
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	m.chats[chat.ID] = copyChat(chat)
	m.pairs[key] = chat.ID
	return copyChat(chat), true, nil
}

func (m *memChats) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[id]
	if !ok {
		return nil, apperr.NotFound("Chat not found")
	}
	return copyChat(chat), nil
}

func (m *memChats) GetByPair(ctx context.Context, a, b string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.pairs[models.PairKey(a, b)]
	if !ok {
		return nil, apperr.NotFound("Chat not found")
	}
	return copyChat(m.chats[id]), nil
}

func (m *memChats) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Chat, 0)
	for _, chat := range m.chats {
		if chat.HasParticipant(userID) {
			out = append(out, *copyChat(chat))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *memChats) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return apperr.NotFound("Chat not found")
	}
	id := messageID
	chat.LastMessageID = &id
	chat.UpdatedAt = at
	return nil
}

func (m *memMessages) Insert(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.messages[msg.ID] = copyMessage(msg)
	m.byChat[msg.ChatID] = append(m.byChat[msg.ChatID], msg.ID)
	return nil
}

func (m *memMessages) GetByID(ctx context.Context, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, apperr.NotFound("Message not found")
	}
	return copyMessage(msg), nil
}

func (m *memMessages) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byChat[chatID]
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *copyMessage(m.messages[id]))
	}
	// Insert order already matches createdAt ascending; the sort keeps the
	// ordering a contract rather than an assumption.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memMessages) FindRecentDuplicate(ctx context.Context, chatID, senderID, content string, since time.Time) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byChat[chatID]
	for i := len(ids) - 1; i >= 0; i-- {
		msg := m.messages[ids[i]]
		if msg.CreatedAt.Before(since) {
			break
		}
		if msg.SenderID == senderID && msg.Content == content {
			return copyMessage(msg), nil
		}
	}
	return nil, apperr.NotFound("Message not found")
}

func (m *memMessages) UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, apperr.NotFound("Message not found")
	}
	msg.Status = status
	msg.UpdatedAt = at
	return copyMessage(msg), nil
}

func (m *memContacts) Add(ctx context.Context, contact *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.contacts[contact.UserID] == nil {
		m.contacts[contact.UserID] = make(map[string]models.Contact)
	}
	if _, ok := m.contacts[contact.UserID][contact.ContactID]; ok {
		return apperr.Conflict("Contact already added")
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	m.contacts[contact.UserID][contact.ContactID] = *contact
	return nil
}

func (m *memContacts) Remove(ctx context.Context, userID, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contacts[userID][contactID]; !ok {
		return apperr.NotFound("Contact not found")
	}
	delete(m.contacts[userID], contactID)
	return nil
}

func (m *memContacts) List(ctx context.Context, userID string) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Contact, 0, len(m.contacts[userID]))
	for _, c := range m.contacts[userID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

func (m *memContacts) HasContact(ctx context.Context, userID, contactID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.contacts[userID][contactID]
	return ok, nil
}

func (m *memContacts) AreConnected(ctx context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contacts[a][b]; ok {
		return true, nil
	}
	_, ok := m.contacts[b][a]
	return ok, nil
}

func (m *memContacts) Block(ctx context.Context, userID, blockedID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.blocks[userID] == nil {
		m.blocks[userID] = make(map[string]time.Time)
	}
	m.blocks[userID][blockedID] = at
	return nil
}

func (m *memContacts) Unblock(ctx context.Context, userID, blockedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blocks[userID], blockedID)
	return nil
}

func (m *memContacts) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[a][b]; ok {
		return true, nil
	}
	_, ok := m.blocks[b][a]
	return ok, nil
}
