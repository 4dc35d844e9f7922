package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/handlers"
	"obrolin/server/internal/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handlers, jwtSecret []byte) {
	auth := middleware.Auth(jwtSecret)

	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Obrolin API is running",
		})
	})

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.StrictRateLimiter(), h.Register)
	authGroup.Post("/login", middleware.StrictRateLimiter(), h.Login)
	authGroup.Post("/logout", auth, h.Logout)
	authGroup.Get("/me", auth, h.GetMe)

	// User routes (protected)
	users := api.Group("/users", auth)
	users.Get("/", h.SearchUsers)
	users.Get("/:userId", h.GetUser)
	users.Put("/:userId", h.UpdateProfile)
	users.Post("/:userId/block", h.BlockUser)
	users.Delete("/:userId/block", h.UnblockUser)

	// Contact routes (protected)
	contacts := api.Group("/contacts", auth)
	contacts.Post("/", h.AddContact)
	contacts.Get("/", h.GetContacts)
	contacts.Delete("/:contactId", h.RemoveContact)

	// Chat routes. Identity travels in the request bodies, matching the
	// socket command surface.
	chats := api.Group("/chats")
	chats.Post("/create", h.CreateChat)
	chats.Get("/user/:userId", h.GetUserChats)
	chats.Get("/messages/:senderId/:recipientId", h.GetMessagesBetween)
	chats.Post("/:chatId/send", h.SendMessage)
	chats.Get("/:chatId/messages", h.GetChatMessages)

	// Message routes
	messages := api.Group("/messages")
	messages.Patch("/:messageId/status", h.UpdateMessageStatus)

	// WebSocket route
	api.Get("/ws", h.WebSocketUpgrade, websocket.New(h.WebSocketHandler))

	// WebSocket stats (protected, for debugging)
	api.Get("/ws/stats", auth, h.GetWebSocketStats)
}
