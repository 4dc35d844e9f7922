// Package chat implements the messaging core: the chat registry, which
// owns pairwise chat threads, and the message service, which owns the
// message log and delivery statuses.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
	"obrolin/server/internal/store"
)

// RegistryConfig tunes chat creation policy.
type RegistryConfig struct {
	// RequireContact restricts chat creation to pairs that are already
	// connected as contacts. Blocks always apply regardless.
	RequireContact bool
}

// Registry resolves and creates pairwise chats. At most one chat exists
// per unordered participant pair; creation is idempotent.
type Registry struct {
	chats    store.ChatStore
	users    store.UserStore
	messages store.MessageStore
	contacts store.ContactStore
	cfg      RegistryConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewRegistry wires a registry over the given stores.
func NewRegistry(st store.Stores, cfg RegistryConfig, log *zap.Logger) *Registry {
	return &Registry{
		chats:    st.Chats,
		users:    st.Users,
		messages: st.Messages,
		contacts: st.Contacts,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func parseID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.InvalidArgument("Invalid %s", what)
	}
	return nil
}

// CreateOrGet returns the chat for the unordered pair {a,b}, creating it if
// none exists. The returned bool reports whether the chat was created. An
// existing chat is returned unchanged, without an updatedAt bump.
func (r *Registry) CreateOrGet(ctx context.Context, a, b string) (*models.Chat, bool, error) {
	if err := parseID(a, "participant ID"); err != nil {
		return nil, false, err
	}
	if err := parseID(b, "participant ID"); err != nil {
		return nil, false, err
	}
	if a == b {
		return nil, false, apperr.InvalidArgument("Cannot create a chat with yourself")
	}

	// The registry never creates a chat for a nonexistent user.
	if _, err := r.users.GetByID(ctx, a); err != nil {
		return nil, false, err
	}
	if _, err := r.users.GetByID(ctx, b); err != nil {
		return nil, false, err
	}

	blocked, err := r.contacts.IsBlocked(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, apperr.Forbidden("Chat is not allowed between these users")
	}
	if r.cfg.RequireContact {
		connected, err := r.contacts.AreConnected(ctx, a, b)
		if err != nil {
			return nil, false, err
		}
		if !connected {
			return nil, false, apperr.Forbidden("Users must be contacts to chat")
		}
	}

	lo, hi := models.NormalizePair(a, b)
	now := r.now()
	chat, created, err := r.chats.CreateOrGet(ctx, &models.Chat{
		Participants: [2]string{lo, hi},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		r.log.Info("chat created",
			zap.String("chatId", chat.ID),
			zap.String("participantA", lo),
			zap.String("participantB", hi))
	}
	return chat, created, nil
}

// Get returns a chat by id.
func (r *Registry) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	if err := parseID(chatID, "chat ID"); err != nil {
		return nil, err
	}
	return r.chats.GetByID(ctx, chatID)
}

// ListForUser returns the user's chats, most recently active first, with
// participant display info and a last-message summary resolved. A user
// with no chats gets an empty slice, not an error.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	if err := parseID(userID, "user ID"); err != nil {
		return nil, err
	}

	chats, err := r.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatSummary, 0, len(chats))
	for _, c := range chats {
		summary := models.ChatSummary{
			ID:           c.ID,
			Participants: make([]models.UserResponse, 0, 2),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		for _, pid := range c.Participants {
			user, err := r.users.GetByID(ctx, pid)
			if err != nil {
				return nil, err
			}
			summary.Participants = append(summary.Participants, user.ToResponse())
		}
		if c.LastMessageID != nil {
			msg, err := r.messages.GetByID(ctx, *c.LastMessageID)
			if err == nil {
				summary.LastMessage = &models.LastMessageSummary{
					ID:        msg.ID,
					SenderID:  msg.SenderID,
					Content:   msg.Content,
					Status:    msg.Status,
					CreatedAt: msg.CreatedAt,
				}
			} else {
				// A dangling last-message pointer is a weak reference,
				// never a reason to fail the listing.
				r.log.Warn("last message missing",
					zap.String("chatId", c.ID),
					zap.String("messageId", *c.LastMessageID))
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

// RecordLastMessage points the chat at its most recent message and bumps
// updatedAt. Idempotent for repeated identical calls.
func (r *Registry) RecordLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	if err := parseID(chatID, "chat ID"); err != nil {
		return err
	}
	if err := parseID(messageID, "message ID"); err != nil {
		return err
	}
	return r.chats.SetLastMessage(ctx, chatID, messageID, at)
}
