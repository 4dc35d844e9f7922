package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	// UserID is set once the connection joins its presence channel.
	UserID string
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// ReadPump handles incoming frames from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error: " + err.Error())
			}
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError("Invalid event payload")
			continue
		}

		c.handleEvent(envelope)
	}
}

// WritePump handles outgoing frames to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent dispatches an inbound frame by its event type.
func (c *Client) handleEvent(envelope Envelope) {
	switch envelope.Type {
	case EventJoinChat:
		var p JoinChatPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			c.sendError("Invalid joinChat payload")
			return
		}
		c.Hub.JoinChatRoom(c, p.ChatID)

	case EventJoinUser:
		var p JoinUserPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			c.sendError("Invalid joinUser payload")
			return
		}
		c.Hub.JoinPresence(c, p.UserID)

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			c.sendError("Invalid sendMessage payload")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), hubOpTimeout)
		defer cancel()
		if _, err := c.Hub.messages.Send(ctx, p.ChatID, p.SenderID, p.Content, p.Attachments); err != nil {
			c.sendError(apperr.Message(err))
		}

	case EventUpdateMessageStatus:
		var p UpdateStatusPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			c.sendError("Invalid updateMessageStatus payload")
			return
		}
		status, ok := models.ParseStatus(p.Status)
		if !ok {
			c.sendError("Invalid status value")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), hubOpTimeout)
		defer cancel()
		if _, err := c.Hub.messages.UpdateStatus(ctx, p.MessageID, status); err != nil {
			c.sendError(apperr.Message(err))
		}

	default:
		c.sendError("Unknown event type")
	}
}

// SendEvent queues an outbound frame; a full buffer drops the frame, not
// the connection.
func (c *Client) SendEvent(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("dropping event for slow client")
	}
}

func (c *Client) sendError(message string) {
	c.SendEvent(WSMessage{
		Type:      EventError,
		Payload:   ErrorPayload{Message: message},
		Timestamp: time.Now(),
	})
}
