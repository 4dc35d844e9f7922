package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
	"obrolin/server/internal/store"
)

// duplicateWindow is the look-back used for best-effort duplicate-send
// suppression. A heuristic, not an idempotency key.
const duplicateWindow = 5 * time.Second

// Publisher receives events after they are persisted. The real-time hub
// implements it; publish failures never fail the originating call.
type Publisher interface {
	PublishNewMessage(chatID string, msg models.MessageWithSender)
	PublishStatusChange(chatID string, msg models.MessageWithSender)
}

type noopPublisher struct{}

func (noopPublisher) PublishNewMessage(string, models.MessageWithSender)   {}
func (noopPublisher) PublishStatusChange(string, models.MessageWithSender) {}

// Messages owns the message lifecycle: validated sends, ordered listing
// and forward-only status transitions.
type Messages struct {
	messages store.MessageStore
	chats    store.ChatStore
	users    store.UserStore
	registry *Registry
	pub      Publisher
	log      *zap.Logger
	now      func() time.Time
}

// NewMessages wires the message service. The publisher defaults to a no-op
// until SetPublisher is called with the hub.
func NewMessages(st store.Stores, registry *Registry, log *zap.Logger) *Messages {
	return &Messages{
		messages: st.Messages,
		chats:    st.Chats,
		users:    st.Users,
		registry: registry,
		pub:      noopPublisher{},
		log:      log,
		now:      time.Now,
	}
}

// SetPublisher attaches the real-time publisher. Called once at wiring
// time; the hub and this service reference each other, so one side has to
// be attached after construction.
func (s *Messages) SetPublisher(pub Publisher) {
	s.pub = pub
}

func (s *Messages) withSender(ctx context.Context, msg *models.Message) (*models.MessageWithSender, error) {
	sender, err := s.users.GetByID(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}
	return &models.MessageWithSender{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		Sender:      sender.ToResponse(),
		Content:     msg.Content,
		Attachments: msg.Attachments,
		Status:      msg.Status,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}, nil
}

// Send validates and persists a message with status sent, records it as
// the chat's last message, and only then publishes the newMessage event.
// Empty content is allowed when attachments are present; it is normalized
// to a single-space placeholder rather than dropped.
func (s *Messages) Send(ctx context.Context, chatID, senderID, content string, attachments []models.Attachment) (*models.MessageWithSender, error) {
	if err := parseID(chatID, "chat ID"); err != nil {
		return nil, err
	}
	if err := parseID(senderID, "sender ID"); err != nil {
		return nil, err
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(senderID) {
		return nil, apperr.Forbidden("Sender is not a participant of this chat")
	}

	for _, a := range attachments {
		if !a.Valid() {
			return nil, apperr.InvalidArgument("Invalid attachment")
		}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		if len(attachments) == 0 {
			return nil, apperr.InvalidArgument("Message content or attachments required")
		}
		content = " "
	}

	now := s.now()
	if dup, err := s.messages.FindRecentDuplicate(ctx, chatID, senderID, content, now.Add(-duplicateWindow)); err == nil {
		s.log.Debug("duplicate send suppressed",
			zap.String("chatId", chatID),
			zap.String("messageId", dup.ID))
		return s.withSender(ctx, dup)
	}

	msg := &models.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
		Status:      models.StatusSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.registry.RecordLastMessage(ctx, chatID, msg.ID, now); err != nil {
		return nil, err
	}

	out, err := s.withSender(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Publish strictly after commit so a subscriber never sees a push for
	// a message that history replay cannot return yet.
	s.pub.PublishNewMessage(chat.ID, *out)
	return out, nil
}

// List returns all messages of a chat, oldest first, with sender display
// fields resolved. Restartable: every call recomputes from current state.
func (s *Messages) List(ctx context.Context, chatID string) ([]models.MessageWithSender, error) {
	if err := parseID(chatID, "chat ID"); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	out := make([]models.MessageWithSender, 0, len(msgs))
	for i := range msgs {
		m, err := s.withSender(ctx, &msgs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// UpdateStatus moves a message to a new delivery status. Transitions are
// forward-only; a regression is rejected with Conflict. The resulting
// messageStatus event is keyed by the message's chat id.
func (s *Messages) UpdateStatus(ctx context.Context, messageID string, status models.Status) (*models.MessageWithSender, error) {
	if err := parseID(messageID, "message ID"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.InvalidArgument("Invalid status. Must be pending, sent, delivered, read, or failed")
	}

	current, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		// Idempotent repeat; nothing to persist or publish.
		return s.withSender(ctx, current)
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, apperr.Conflict("Cannot move message status from %s to %s", current.Status, status)
	}

	updated, err := s.messages.UpdateStatus(ctx, messageID, status, s.now())
	if err != nil {
		return nil, err
	}

	out, err := s.withSender(ctx, updated)
	if err != nil {
		return nil, err
	}

	s.pub.PublishStatusChange(updated.ChatID, *out)
	return out, nil
}

// FindBetween returns the message history of the pair's chat, oldest
// first. No chat for the pair yields an empty slice, not an error.
func (s *Messages) FindBetween(ctx context.Context, a, b string) ([]models.MessageWithSender, error) {
	if err := parseID(a, "user ID"); err != nil {
		return nil, err
	}
	if err := parseID(b, "user ID"); err != nil {
		return nil, err
	}

	chat, err := s.chats.GetByPair(ctx, a, b)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return []models.MessageWithSender{}, nil
		}
		return nil, err
	}
	return s.List(ctx, chat.ID)
}
