// Package ws is the real-time hub: it maintains live chat-room and
// presence-channel subscriptions and fans events out to subscribed
// connections. Delivery is best-effort, at most once per connection per
// event; a disconnected subscriber recovers via history replay on rejoin.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"obrolin/server/internal/models"
)

// MessageService is the slice of the message core the hub drives: socket
// commands and history replay.
type MessageService interface {
	Send(ctx context.Context, chatID, senderID, content string, attachments []models.Attachment) (*models.MessageWithSender, error)
	UpdateStatus(ctx context.Context, messageID string, status models.Status) (*models.MessageWithSender, error)
	List(ctx context.Context, chatID string) ([]models.MessageWithSender, error)
}

// PresenceStore owns the persisted presence flag.
type PresenceStore interface {
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

const hubOpTimeout = 5 * time.Second

// Hub maintains the set of active connections and their subscriptions.
// Rooms are keyed by chat id, presence channels by user id; tables are
// process-local and mutex-guarded.
type Hub struct {
	// Register requests from new connections
	Register chan *Client

	// Unregister requests from closing connections
	Unregister chan *Client

	mu       sync.RWMutex
	clients  map[*Client]bool
	rooms    map[string]map[*Client]bool
	presence map[string]map[*Client]bool

	messages MessageService
	users    PresenceStore
	log      *zap.Logger
	quit     chan struct{}
}

// NewHub creates a hub over the message core and presence store.
func NewHub(messages MessageService, users PresenceStore, log *zap.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		presence:   make(map[string]map[*Client]bool),
		messages:   messages,
		users:      users,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.Disconnect(client)
		case <-h.quit:
			return
		}
	}
}

// Close stops the run loop.
func (h *Hub) Close() {
	close(h.quit)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.log.Debug("client connected")
}

// JoinChatRoom subscribes the connection to the chat's room and replays
// the room's history to that connection only. A malformed chat id yields
// a connection-scoped error event; the connection stays open.
func (h *Hub) JoinChatRoom(client *Client, chatID string) {
	if _, err := uuid.Parse(chatID); err != nil {
		client.SendEvent(WSMessage{
			Type:      EventError,
			Payload:   ErrorPayload{Message: "Invalid chat ID"},
			Timestamp: time.Now(),
		})
		return
	}

	// Subscribe before the history read so no message published in
	// between is lost; a client may then see a message both in history
	// and as a push, which it deduplicates by id.
	h.mu.Lock()
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[*Client]bool)
	}
	h.rooms[chatID][client] = true
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), hubOpTimeout)
	defer cancel()

	history, err := h.messages.List(ctx, chatID)
	if err != nil {
		client.SendEvent(WSMessage{
			Type:      EventError,
			Payload:   ErrorPayload{Message: "Failed to load chat history"},
			Timestamp: time.Now(),
		})
		return
	}

	client.SendEvent(WSMessage{
		Type:      EventChatHistory,
		Payload:   history,
		Timestamp: time.Now(),
	})

	h.log.Debug("client joined chat room", zap.String("chatId", chatID))
}

// JoinPresence subscribes the connection to the user's presence channel,
// marks the user online and broadcasts the change. No history replay.
func (h *Hub) JoinPresence(client *Client, userID string) {
	if _, err := uuid.Parse(userID); err != nil {
		client.SendEvent(WSMessage{
			Type:      EventError,
			Payload:   ErrorPayload{Message: "Invalid user ID"},
			Timestamp: time.Now(),
		})
		return
	}

	h.mu.Lock()
	if h.presence[userID] == nil {
		h.presence[userID] = make(map[*Client]bool)
	}
	h.presence[userID][client] = true
	client.UserID = userID
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), hubOpTimeout)
	defer cancel()
	if err := h.users.SetPresence(ctx, userID, true, time.Now()); err != nil {
		h.log.Warn("failed to update online status", zap.String("userId", userID), zap.Error(err))
	}

	h.PublishPresenceChange(userID, "online")
}

// Disconnect removes all of the connection's subscriptions. Idempotent:
// a second disconnect for the same connection is a no-op.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for chatID, room := range h.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	userID := client.UserID
	lastOfUser := false
	if userID != "" {
		channel := h.presence[userID]
		delete(channel, client)
		if len(channel) == 0 {
			delete(h.presence, userID)
			lastOfUser = true
		}
	}
	close(client.Send)
	h.mu.Unlock()

	// Only the user's last connection flips them offline; other devices
	// keep the presence channel alive.
	if lastOfUser {
		ctx, cancel := context.WithTimeout(context.Background(), hubOpTimeout)
		defer cancel()
		if err := h.users.SetPresence(ctx, userID, false, time.Now()); err != nil {
			h.log.Warn("failed to update offline status", zap.String("userId", userID), zap.Error(err))
		}
		h.PublishPresenceChange(userID, "offline")
	}

	h.log.Debug("client disconnected")
}

// PublishNewMessage delivers the message to every connection subscribed
// to its chat's room, at most once each.
func (h *Hub) PublishNewMessage(chatID string, msg models.MessageWithSender) {
	h.publishToRoom(chatID, WSMessage{
		Type:      EventNewMessage,
		Payload:   msg,
		Timestamp: time.Now(),
	})
}

// PublishStatusChange delivers a status update to the room of the
// message's own chat id. The room key is always the chat id, never the
// message id.
func (h *Hub) PublishStatusChange(chatID string, msg models.MessageWithSender) {
	h.publishToRoom(chatID, WSMessage{
		Type:      EventMessageStatus,
		Payload:   msg,
		Timestamp: time.Now(),
	})
}

func (h *Hub) publishToRoom(chatID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[chatID] {
		select {
		case client.Send <- data:
		default:
			h.log.Warn("dropping event for slow client", zap.String("chatId", chatID))
		}
	}
}

// PublishPresenceChange broadcasts a presence update to every connected
// client (global broadcast, not scoped per contact).
func (h *Hub) PublishPresenceChange(userID, status string) {
	data, err := json.Marshal(WSMessage{
		Type: EventUserStatusChange,
		Payload: PresencePayload{
			UserID:   userID,
			Status:   status,
			LastSeen: time.Now(),
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("failed to marshal presence event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.log.Warn("dropping presence event for slow client")
		}
	}
}

// OnlineUsers returns the user ids with at least one live presence
// subscription.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]string, 0, len(h.presence))
	for userID := range h.presence {
		userIDs = append(userIDs, userID)
	}
	return userIDs
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
