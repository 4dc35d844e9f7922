package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/ws"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func (h *Handlers) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"success": false,
		"error":   "WebSocket upgrade required",
	})
}

// WebSocketHandler handles WebSocket connections. The connection
// identifies itself by joining chat rooms and its presence channel.
func (h *Handlers) WebSocketHandler(c *websocket.Conn) {
	client := ws.NewClient(c, h.hub)

	h.hub.Register <- client

	go client.WritePump()
	client.ReadPump() // Blocks until the connection closes
}

// GetWebSocketStats returns live connection statistics
func (h *Handlers) GetWebSocketStats(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{
		"connections": h.hub.ConnectionCount(),
		"onlineUsers": h.hub.OnlineUsers(),
	})
}
