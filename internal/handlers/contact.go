package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/middleware"
	"obrolin/server/internal/models"
)

// AddContactRequest represents add contact request body
type AddContactRequest struct {
	ContactID string `json:"contactId"`
}

// AddContact adds another user to the caller's contact list. When the
// other side already added the caller, the connection becomes mutual and
// their chat is opened.
func (h *Handlers) AddContact(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req AddContactRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}
	if req.ContactID == "" {
		return h.fail(c, apperr.InvalidArgument("contactId is required"))
	}
	if req.ContactID == userID {
		return h.fail(c, apperr.InvalidArgument("You cannot add yourself as a contact"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	contactUser, err := h.users.GetByID(ctx, req.ContactID)
	if err != nil {
		return h.fail(c, err)
	}

	blocked, err := h.contacts.IsBlocked(ctx, userID, req.ContactID)
	if err != nil {
		return h.fail(c, err)
	}
	if blocked {
		return h.fail(c, apperr.Forbidden("Cannot add this user as a contact"))
	}

	contact := &models.Contact{
		UserID:    userID,
		ContactID: req.ContactID,
		AddedAt:   time.Now(),
	}
	if err := h.contacts.Add(ctx, contact); err != nil {
		return h.fail(c, err)
	}

	// A mutual add is the accepted-request interaction that opens a chat.
	mutual, err := h.contacts.HasContact(ctx, req.ContactID, userID)
	if err == nil && mutual {
		if _, _, err := h.registry.CreateOrGet(ctx, userID, req.ContactID); err != nil {
			h.log.Warn("failed to open chat for mutual contacts: " + err.Error())
		}
	}

	return ok(c, fiber.StatusCreated, models.ContactWithUser{
		ID:       contact.ID,
		UserID:   contact.UserID,
		Contact:  contactUser.ToResponse(),
		AddedAt:  contact.AddedAt,
		IsOnline: contactUser.IsOnline,
	})
}

// GetContacts returns the caller's contact list with user info
func (h *Handlers) GetContacts(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	ctx, cancel := h.opCtx(c)
	defer cancel()

	contacts, err := h.contacts.List(ctx, userID)
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]models.ContactWithUser, 0, len(contacts))
	for _, contact := range contacts {
		user, err := h.users.GetByID(ctx, contact.ContactID)
		if err != nil {
			continue
		}
		out = append(out, models.ContactWithUser{
			ID:       contact.ID,
			UserID:   contact.UserID,
			Contact:  user.ToResponse(),
			AddedAt:  contact.AddedAt,
			IsOnline: user.IsOnline,
		})
	}
	return ok(c, fiber.StatusOK, out)
}

// RemoveContact deletes a contact from the caller's list
func (h *Handlers) RemoveContact(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	contactID := c.Params("contactId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	if err := h.contacts.Remove(ctx, userID, contactID); err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Contact removed"})
}

// BlockUser blocks another user; a blocked pair cannot open a chat
func (h *Handlers) BlockUser(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	blockedID := c.Params("userId")

	if blockedID == userID {
		return h.fail(c, apperr.InvalidArgument("You cannot block yourself"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	if _, err := h.users.GetByID(ctx, blockedID); err != nil {
		return h.fail(c, err)
	}
	if err := h.contacts.Block(ctx, userID, blockedID, time.Now()); err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "User blocked"})
}

// UnblockUser removes a block
func (h *Handlers) UnblockUser(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	blockedID := c.Params("userId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	if err := h.contacts.Unblock(ctx, userID, blockedID); err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "User unblocked"})
}
