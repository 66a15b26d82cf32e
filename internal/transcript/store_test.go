package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client)
}

func TestStore_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "lead-1", Message{Sender: "user", Text: "hello"}))
	require.NoError(t, store.Append(ctx, "lead-1", Message{Sender: "ai", Text: "hi there"}))

	msgs, err := store.List(ctx, "lead-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "ai", msgs[1].Sender)
	assert.NotEmpty(t, msgs[0].ID)
	assert.WithinDuration(t, time.Now().UTC(), msgs[0].Timestamp, time.Minute)
	assert.Equal(t, "lead-1", msgs[0].LeadID)
}

func TestStore_ListIsScopedToLead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "lead-1", Message{Sender: "user", Text: "a"}))
	require.NoError(t, store.Append(ctx, "lead-2", Message{Sender: "user", Text: "b"}))

	msgs, err := store.List(ctx, "lead-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Text)
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "lead-1", Message{Sender: "user", Text: "a"}))
	require.NoError(t, store.Clear(ctx, "lead-1"))

	msgs, err := store.List(ctx, "lead-1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_NilIsSafe(t *testing.T) {
	var store *Store
	ctx := context.Background()

	assert.NoError(t, store.Append(ctx, "lead-1", Message{}))
	msgs, err := store.List(ctx, "lead-1", 10)
	assert.NoError(t, err)
	assert.Nil(t, msgs)
	assert.NoError(t, store.Clear(ctx, "lead-1"))
}

func TestStore_RequiresLeadID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Append(ctx, "", Message{}))
	_, err := store.List(ctx, "", 10)
	assert.Error(t, err)
}
