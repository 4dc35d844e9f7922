// Package handlers translates HTTP requests into chat core and store
// operations. All components are injected; handlers hold no global state.
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/chat"
	"obrolin/server/internal/store"
	"obrolin/server/internal/ws"
)

// Handlers bundles the injected dependencies of all HTTP handlers.
type Handlers struct {
	users    store.UserStore
	contacts store.ContactStore
	registry *chat.Registry
	messages *chat.Messages
	hub      *ws.Hub
	secret   []byte
	timeout  time.Duration
	log      *zap.Logger
}

// New wires the handler set.
func New(st store.Stores, registry *chat.Registry, messages *chat.Messages, hub *ws.Hub, secret []byte, timeout time.Duration, log *zap.Logger) *Handlers {
	return &Handlers{
		users:    st.Users,
		contacts: st.Contacts,
		registry: registry,
		messages: messages,
		hub:      hub,
		secret:   secret,
		timeout:  timeout,
		log:      log,
	}
}

// opCtx bounds a storage operation with the configured request timeout;
// a timeout surfaces as a retryable 503.
func (h *Handlers) opCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// fail renders an error with its taxonomy status code.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
		"success": false,
		"error":   apperr.Message(err),
	})
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
