package ws

import (
	"encoding/json"
	"time"

	"obrolin/server/internal/models"
)

// EventType tags every frame on the wire.
type EventType string

const (
	// Client -> hub
	EventJoinChat            EventType = "joinChat"
	EventSendMessage         EventType = "sendMessage"
	EventUpdateMessageStatus EventType = "updateMessageStatus"
	EventJoinUser            EventType = "joinUser"

	// Hub -> client
	EventChatHistory      EventType = "chatHistory"
	EventNewMessage       EventType = "newMessage"
	EventMessageStatus    EventType = "messageStatus"
	EventUserStatusChange EventType = "userStatusChange"
	EventError            EventType = "error"
)

// WSMessage is the outbound frame structure.
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Envelope is an inbound frame; the payload is decoded per event type.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinChatPayload subscribes the connection to a chat room.
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

// SendMessagePayload carries a message send over the socket.
type SendMessagePayload struct {
	ChatID      string              `json:"chatId"`
	SenderID    string              `json:"senderId"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// UpdateStatusPayload carries a delivery-status update.
type UpdateStatusPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// JoinUserPayload subscribes the connection to its user's presence channel.
type JoinUserPayload struct {
	UserID string `json:"userId"`
}

// PresencePayload announces a user's presence status.
type PresencePayload struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// ErrorPayload reports a connection-scoped error.
type ErrorPayload struct {
	Message string `json:"message"`
}
