package handlers

import (
	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
)

// SendMessageRequest represents send message request body
type SendMessageRequest struct {
	SenderID    string              `json:"senderId"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// UpdateStatusRequest represents status update request body
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SendMessage persists a message in a chat and fans it out to the room
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	chatID := c.Params("chatId")

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	msg, err := h.messages.Send(ctx, chatID, req.SenderID, req.Content, req.Attachments)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusCreated, msg)
}

// GetChatMessages returns a chat's messages, oldest first
func (h *Handlers) GetChatMessages(c *fiber.Ctx) error {
	chatID := c.Params("chatId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	msgs, err := h.messages.List(ctx, chatID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, msgs)
}

// GetMessagesBetween returns the history of a sender/recipient pair.
// Legacy pair-addressed path; an empty array when no chat exists.
func (h *Handlers) GetMessagesBetween(c *fiber.Ctx) error {
	senderID := c.Params("senderId")
	recipientID := c.Params("recipientId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	msgs, err := h.messages.FindBetween(ctx, senderID, recipientID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, msgs)
}

// UpdateMessageStatus moves a message's delivery status forward
func (h *Handlers) UpdateMessageStatus(c *fiber.Ctx) error {
	messageID := c.Params("messageId")

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	status, valid := models.ParseStatus(req.Status)
	if !valid {
		return h.fail(c, apperr.InvalidArgument("Invalid status. Must be pending, sent, delivered, read, or failed"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	msg, err := h.messages.UpdateStatus(ctx, messageID, status)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, msg)
}
