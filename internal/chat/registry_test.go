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

func newRegistry(t *testing.T, cfg RegistryConfig) (*Registry, store.Stores) {
	t.Helper()
	st := store.NewMemory().Stores()
	return NewRegistry(st, cfg, zap.NewNop()), st
}

func addUser(t *testing.T, st store.Stores, name string) string {
	t.Helper()
	user := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hash",
	}
	require.NoError(t, st.Users.Create(context.Background(), user))
	return user.ID
}

func TestCreateOrGetIdempotent(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	first, created, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)
	require.True(t, created)
	require.Nil(t, first.LastMessageID)

	// Reversed participant order resolves to the same chat, unchanged.
	second, created, err := reg.CreateOrGet(context.Background(), bob, alice)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestCreateOrGetValidation(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")

	_, _, err := reg.CreateOrGet(context.Background(), "not-a-uuid", alice)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))

	_, _, err = reg.CreateOrGet(context.Background(), alice, alice)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))

	_, _, err = reg.CreateOrGet(context.Background(), alice, uuid.NewString())
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateOrGetBlockedPair(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	require.NoError(t, st.Contacts.Block(context.Background(), bob, alice, time.Now()))

	_, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestCreateOrGetRequireContact(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{RequireContact: true})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	_, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	require.NoError(t, st.Contacts.Add(context.Background(), &models.Contact{
		UserID:    alice,
		ContactID: bob,
		AddedAt:   time.Now(),
	}))

	_, created, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)
	require.True(t, created)
}

func TestCreateOrGetConcurrent(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	const workers = 50
	ids := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 0 {
				a, b = bob, alice
			}
			chat, _, err := reg.CreateOrGet(context.Background(), a, b)
			require.NoError(t, err)
			ids[i] = chat.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}

	chats, err := st.Chats.ListForUser(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, chats, 1)
}

func TestListForUserOrderingAndMembership(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")
	carol := addUser(t, st, "carol")

	base := time.Now()
	reg.now = func() time.Time { return base }
	withBob, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	reg.now = func() time.Time { return base.Add(time.Second) }
	withCarol, _, err := reg.CreateOrGet(context.Background(), alice, carol)
	require.NoError(t, err)

	chats, err := reg.ListForUser(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, withCarol.ID, chats[0].ID)
	require.Equal(t, withBob.ID, chats[1].ID)

	// Activity in the older chat moves it to the front.
	require.NoError(t, reg.RecordLastMessage(context.Background(), withBob.ID, uuid.NewString(), base.Add(2*time.Second)))

	chats, err = reg.ListForUser(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, withBob.ID, chats[0].ID)

	// Every listed chat contains the queried user.
	for _, c := range chats {
		found := false
		for _, p := range c.Participants {
			if p.ID == alice {
				found = true
			}
		}
		require.True(t, found)
	}

	// A user with no chats gets an empty slice, not an error.
	dave := addUser(t, st, "dave")
	chats, err = reg.ListForUser(context.Background(), dave)
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestRecordLastMessage(t *testing.T) {
	reg, st := newRegistry(t, RegistryConfig{})
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	chat, _, err := reg.CreateOrGet(context.Background(), alice, bob)
	require.NoError(t, err)

	messageID := uuid.NewString()
	at := time.Now().Add(time.Minute)

	require.NoError(t, reg.RecordLastMessage(context.Background(), chat.ID, messageID, at))
	// Repeating the identical call is a no-op, not an error.
	require.NoError(t, reg.RecordLastMessage(context.Background(), chat.ID, messageID, at))

	stored, err := st.Chats.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageID)
	require.Equal(t, messageID, *stored.LastMessageID)
	require.True(t, stored.UpdatedAt.Equal(at))

	err = reg.RecordLastMessage(context.Background(), uuid.NewString(), messageID, at)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
