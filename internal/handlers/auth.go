package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/middleware"
	"obrolin/server/internal/models"
	"obrolin/server/internal/utils"
)

const defaultStatusMessage = "Hey there! I am using this app."

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new user account
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return h.fail(c, apperr.InvalidArgument("Name, email and password are required"))
	}
	if !strings.Contains(req.Email, "@") {
		return h.fail(c, apperr.InvalidArgument("Invalid email address"))
	}
	if len(req.Password) < 6 {
		return h.fail(c, apperr.InvalidArgument("Password must be at least 6 characters"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return h.fail(c, apperr.Internal("Failed to hash password", err))
	}

	now := time.Now()
	user := &models.User{
		Email:         req.Email,
		Name:          req.Name,
		Password:      string(hash),
		StatusMessage: defaultStatusMessage,
		LastSeen:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	if err := h.users.Create(ctx, user); err != nil {
		return h.fail(c, err)
	}

	token, err := utils.GenerateToken(h.secret, user.ID, user.Email)
	if err != nil {
		return h.fail(c, apperr.Internal("Failed to generate token", err))
	}
	h.setTokenCookie(c, token)

	return ok(c, fiber.StatusCreated, fiber.Map{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Login authenticates a user and issues a token
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.InvalidArgument("Invalid request body"))
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return h.fail(c, apperr.InvalidArgument("Email and password are required"))
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return h.fail(c, apperr.Unauthorized("Invalid email or password"))
		}
		return h.fail(c, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return h.fail(c, apperr.Unauthorized("Invalid email or password"))
	}

	token, err := utils.GenerateToken(h.secret, user.ID, user.Email)
	if err != nil {
		return h.fail(c, apperr.Internal("Failed to generate token", err))
	}
	h.setTokenCookie(c, token)

	return ok(c, fiber.StatusOK, fiber.Map{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Logout clears the auth cookie
func (h *Handlers) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Logged out"})
}

// GetMe returns the authenticated user's profile
func (h *Handlers) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	ctx, cancel := h.opCtx(c)
	defer cancel()

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, fiber.StatusOK, user.ToResponse())
}

func (h *Handlers) setTokenCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}
