package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/middleware"
	"obrolin/server/internal/models"
)

// UpdateProfileRequest represents profile update request body
type UpdateProfileRequest struct {
	Name          *string `json:"name,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	StatusMessage *string `json:"statusMessage,omitempty"`
}

const searchLimit = 20

// SearchUsers finds users by name or email substring
func (h *Handlers) SearchUsers(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return h.fail(c, apperr.InvalidArgument("Query parameter q is required"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	users, err := h.users.Search(ctx, query, searchLimit)
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return ok(c, fiber.StatusOK, out)
}

// GetUser returns a user's public profile
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := h.opCtx(c)
	defer cancel()

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, user.ToResponse())
}

// UpdateProfile updates the caller's own profile fields
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if c.Params("userId") != userID {
		return h.fail(c, apperr.Forbidden("You can only update your own profile"))
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return h.fail(c, err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return h.fail(c, apperr.InvalidArgument("Name cannot be empty"))
		}
		user.Name = name
	}
	if req.Avatar != nil {
		user.Avatar = req.Avatar
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.StatusMessage != nil {
		user.StatusMessage = *req.StatusMessage
	}
	user.UpdatedAt = time.Now()

	if err := h.users.Update(ctx, user); err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, user.ToResponse())
}
