package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
)

func seedUser(t *testing.T, st Stores, name string) string {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, st.Users.Create(context.Background(), user))
	return user.ID
}

func TestMemoryUsersUniqueEmail(t *testing.T) {
	st := NewMemory().Stores()

	require.NoError(t, st.Users.Create(context.Background(), &models.User{
		Name: "alice", Email: "alice@example.com", Password: "hash",
	}))

	err := st.Users.Create(context.Background(), &models.User{
		Name: "other", Email: "alice@example.com", Password: "hash",
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestMemoryUsersSearch(t *testing.T) {
	st := NewMemory().Stores()
	seedUser(t, st, "alice")
	seedUser(t, st, "alicia")
	seedUser(t, st, "bob")

	users, err := st.Users.Search(context.Background(), "ALI", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Name)
	require.Equal(t, "alicia", users[1].Name)

	// Matches on email too.
	users, err = st.Users.Search(context.Background(), "bob@example", 10)
	require.NoError(t, err)
	require.Len(t, users, 1)

	users, err = st.Users.Search(context.Background(), "ali", 1)
	require.NoError(t, err)
	require.Len(t, users, 1)

	users, err = st.Users.Search(context.Background(), "zzz", 10)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestMemoryChatsPairIdentity(t *testing.T) {
	st := NewMemory().Stores()
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	lo, hi := models.NormalizePair(alice, bob)

	now := time.Now()
	first, created, err := st.Chats.CreateOrGet(context.Background(), &models.Chat{
		Participants: [2]string{lo, hi}, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := st.Chats.CreateOrGet(context.Background(), &models.Chat{
		Participants: [2]string{lo, hi}, CreatedAt: now.Add(time.Hour), UpdatedAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.CreatedAt.Equal(now))

	// Pair lookup works in either order.
	byPair, err := st.Chats.GetByPair(context.Background(), hi, lo)
	require.NoError(t, err)
	require.Equal(t, first.ID, byPair.ID)

	_, err = st.Chats.GetByPair(context.Background(), alice, "someone-else")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestMemoryMessagesReturnCopies(t *testing.T) {
	st := NewMemory().Stores()
	now := time.Now()

	msg := &models.Message{
		ChatID:   "chat-1",
		SenderID: "alice",
		Content:  "hi",
		Status:   models.StatusSent,
		Attachments: []models.Attachment{
			{Kind: models.AttachmentImage, URL: "https://cdn.example.com/a.png"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Messages.Insert(context.Background(), msg))

	got, err := st.Messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)

	// Mutating the returned value must not leak into the store.
	got.Content = "tampered"
	got.Attachments[0].URL = "https://evil.example.com"

	again, err := st.Messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, "hi", again.Content)
	require.Equal(t, "https://cdn.example.com/a.png", again.Attachments[0].URL)
}

func TestMemoryFindRecentDuplicateWindow(t *testing.T) {
	st := NewMemory().Stores()
	base := time.Now()

	old := &models.Message{ChatID: "chat-1", SenderID: "alice", Content: "hi", Status: models.StatusSent, CreatedAt: base}
	require.NoError(t, st.Messages.Insert(context.Background(), old))
	recent := &models.Message{ChatID: "chat-1", SenderID: "alice", Content: "hi", Status: models.StatusSent, CreatedAt: base.Add(8 * time.Second)}
	require.NoError(t, st.Messages.Insert(context.Background(), recent))

	// Only messages at or after the cutoff are considered.
	dup, err := st.Messages.FindRecentDuplicate(context.Background(), "chat-1", "alice", "hi", base.Add(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, recent.ID, dup.ID)

	_, err = st.Messages.FindRecentDuplicate(context.Background(), "chat-1", "alice", "hi", base.Add(9*time.Second))
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = st.Messages.FindRecentDuplicate(context.Background(), "chat-1", "bob", "hi", base)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = st.Messages.FindRecentDuplicate(context.Background(), "chat-1", "alice", "different", base)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestMemoryContactsSymmetry(t *testing.T) {
	st := NewMemory().Stores()
	ctx := context.Background()

	require.NoError(t, st.Contacts.Add(ctx, &models.Contact{UserID: "alice", ContactID: "bob", AddedAt: time.Now()}))

	// One direction is enough for the pair to count as connected.
	connected, err := st.Contacts.AreConnected(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, connected)

	has, err := st.Contacts.HasContact(ctx, "bob", "alice")
	require.NoError(t, err)
	require.False(t, has)

	// A block by either side covers the pair both ways.
	require.NoError(t, st.Contacts.Block(ctx, "alice", "bob", time.Now()))
	blocked, err := st.Contacts.IsBlocked(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, blocked)

	require.NoError(t, st.Contacts.Unblock(ctx, "alice", "bob"))
	blocked, err = st.Contacts.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestMemorySetPresence(t *testing.T) {
	st := NewMemory().Stores()
	alice := seedUser(t, st, "alice")

	at := time.Now()
	require.NoError(t, st.Users.SetPresence(context.Background(), alice, true, at))

	user, err := st.Users.GetByID(context.Background(), alice)
	require.NoError(t, err)
	require.True(t, user.IsOnline)
	require.True(t, user.LastSeen.Equal(at))

	err = st.Users.SetPresence(context.Background(), "missing", false, at)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
