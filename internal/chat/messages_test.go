package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
	"obrolin/server/internal/store"
)

type recordedEvent struct {
	kind   string
	chatID string
	msg    models.MessageWithSender
}

// capturePub records published events; onNewMessage, when set, runs
// synchronously inside the publish call.
type capturePub struct {
	mu           sync.Mutex
	events       []recordedEvent
	onNewMessage func(chatID string, msg models.MessageWithSender)
}

func (p *capturePub) PublishNewMessage(chatID string, msg models.MessageWithSender) {
	p.mu.Lock()
	p.events = append(p.events, recordedEvent{kind: "newMessage", chatID: chatID, msg: msg})
	hook := p.onNewMessage
	p.mu.Unlock()
	if hook != nil {
		hook(chatID, msg)
	}
}

func (p *capturePub) PublishStatusChange(chatID string, msg models.MessageWithSender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: "messageStatus", chatID: chatID, msg: msg})
}

func (p *capturePub) all() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

func newMessages(t *testing.T) (*Messages, *Registry, store.Stores, *capturePub) {
	t.Helper()
	st := store.NewMemory().Stores()
	reg := NewRegistry(st, RegistryConfig{}, zap.NewNop())
	svc := NewMessages(st, reg, zap.NewNop())
	pub := &capturePub{}
	svc.SetPublisher(pub)
	return svc, reg, st, pub
}

func TestSendAndListOrdering(t *testing.T) {
	svc, reg, st, _ := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	base := time.Now()
	svc.now = func() time.Time { return base }
	first, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusSent, first.Status)

	svc.now = func() time.Time { return base.Add(time.Second) }
	second, err := svc.Send(context.Background(), chat.ID, bob, "hello", nil)
	require.NoError(t, err)

	msgs, err := svc.List(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, second.ID, msgs[1].ID)
	require.Equal(t, "alice", msgs[0].Sender.Name)
	require.Equal(t, "bob", msgs[1].Sender.Name)

	stored, err := st.Chats.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageID)
	require.Equal(t, second.ID, *stored.LastMessageID)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	svc, reg, st, pub := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	carol := addUser(t, st, "carol")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), chat.ID, carol, "hey", nil)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
	require.Empty(t, pub.all())
}

func TestSendUnknownChat(t *testing.T) {
	svc, _, st, _ := newMessages(t)
	alice := addUser(t, st, "alice")

	_, err := svc.Send(context.Background(), uuid.NewString(), alice, "hey", nil)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.Send(context.Background(), "nope", alice, "hey", nil)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))
}

func TestSendContentValidation(t *testing.T) {
	svc, reg, st, _ := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), chat.ID, alice, "", nil)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))

	_, err = svc.Send(context.Background(), chat.ID, alice, "   ", nil)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))

	// Attachment-only sends get the placeholder body.
	att := models.Attachment{Kind: models.AttachmentImage, URL: "https://cdn.example.com/pic.png"}
	sent, err := svc.Send(context.Background(), chat.ID, alice, "", []models.Attachment{att})
	require.NoError(t, err)
	require.Equal(t, " ", sent.Content)

	msgs, err := svc.List(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, " ", msgs[0].Content)
	require.Len(t, msgs[0].Attachments, 1)
	require.Equal(t, att, msgs[0].Attachments[0])

	_, err = svc.Send(context.Background(), chat.ID, alice, "look",
		[]models.Attachment{{Kind: "video", URL: "https://cdn.example.com/x.mp4"}})
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))
}

func TestSendDuplicateSuppressed(t *testing.T) {
	svc, reg, st, pub := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	base := time.Now()
	svc.now = func() time.Time { return base }

	first, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)

	// Identical retry inside the window resolves to the earlier message.
	svc.now = func() time.Time { return base.Add(2 * time.Second) }
	retry, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, retry.ID)

	// Same text from the other participant is not a duplicate.
	fromBob, err := svc.Send(context.Background(), chat.ID, bob, "hi", nil)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, fromBob.ID)

	// Past the window the same send is a new message again.
	svc.now = func() time.Time { return base.Add(10 * time.Second) }
	later, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, later.ID)

	var newEvents int
	for _, ev := range pub.all() {
		if ev.kind == "newMessage" {
			newEvents++
		}
	}
	require.Equal(t, 3, newEvents)
}

func TestSendPublishesAfterPersist(t *testing.T) {
	svc, reg, st, pub := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	// At publish time the message must already be readable from history.
	pub.onNewMessage = func(chatID string, msg models.MessageWithSender) {
		msgs, err := svc.List(context.Background(), chatID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, msg.ID, msgs[0].ID)

		stored, err := st.Chats.GetByID(context.Background(), chatID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastMessageID)
		require.Equal(t, msg.ID, *stored.LastMessageID)
	}

	sent, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 1)
	require.Equal(t, "newMessage", events[0].kind)
	require.Equal(t, chat.ID, events[0].chatID)
	require.Equal(t, sent.ID, events[0].msg.ID)
}

func TestUpdateStatusFlow(t *testing.T) {
	svc, reg, st, pub := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	sent, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)

	delivered, err := svc.UpdateStatus(context.Background(), sent.ID, models.StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, delivered.Status)

	read, err := svc.UpdateStatus(context.Background(), sent.ID, models.StatusRead)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, read.Status)

	// No regressions once read.
	_, err = svc.UpdateStatus(context.Background(), sent.ID, models.StatusDelivered)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	_, err = svc.UpdateStatus(context.Background(), sent.ID, models.StatusFailed)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	before := len(pub.all())

	// Idempotent repeat succeeds without a new event.
	again, err := svc.UpdateStatus(context.Background(), sent.ID, models.StatusRead)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, again.Status)
	require.Len(t, pub.all(), before)

	_, err = svc.UpdateStatus(context.Background(), sent.ID, models.Status("seen"))
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))

	_, err = svc.UpdateStatus(context.Background(), uuid.NewString(), models.StatusRead)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdateStatusEventKeyedByChat(t *testing.T) {
	svc, reg, st, pub := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	sent, err := svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), sent.ID, models.StatusDelivered)
	require.NoError(t, err)

	events := pub.all()
	last := events[len(events)-1]
	require.Equal(t, "messageStatus", last.kind)
	require.Equal(t, chat.ID, last.chatID)
	require.NotEqual(t, sent.ID, last.chatID)
	require.Equal(t, models.StatusDelivered, last.msg.Status)
}

func TestFindBetween(t *testing.T) {
	svc, reg, st, _ := newMessages(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	// No chat for the pair is not an error.
	msgs, err := svc.FindBetween(context.Background(), alice, bob)
	require.NoError(t, err)
	require.Empty(t, msgs)

	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err = svc.Send(context.Background(), chat.ID, alice, "hi", nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return base.Add(time.Second) }
	_, err = svc.Send(context.Background(), chat.ID, bob, "hello", nil)
	require.NoError(t, err)

	msgs, err = svc.FindBetween(context.Background(), alice, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Content)
	require.Equal(t, "hello", msgs[1].Content)

	// Symmetric in argument order.
	flipped, err := svc.FindBetween(context.Background(), bob, alice)
	require.NoError(t, err)
	require.Equal(t, msgs, flipped)
}
