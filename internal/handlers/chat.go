package handlers

import (
	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/apperr"
)

// CreateChatRequest represents create chat request body
type CreateChatRequest struct {
	ParticipantIDs []string `json:"participantIds"`
}

// CreateChat resolves or creates the chat for a participant pair.
// Returns 201 for a new chat, 200 when the pair already has one.
func (h *Handlers) CreateChat(c *fiber.Ctx) error {
	var req CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	if len(req.ParticipantIDs) != 2 {
		return h.fail(c, apperr.InvalidArgument("participantIds must contain exactly 2 user IDs"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	chat, created, err := h.registry.CreateOrGet(ctx, req.ParticipantIDs[0], req.ParticipantIDs[1])
	if err != nil {
		return h.fail(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return ok(c, status, chat)
}

// GetUserChats returns a user's chats sorted by recent activity descending
func (h *Handlers) GetUserChats(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	chats, err := h.registry.ListForUser(ctx, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, chats)
}
