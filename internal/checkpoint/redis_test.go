package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkwei/parlor/backend/internal/checkpoint"
)

func newTestStore(t *testing.T, opts ...checkpoint.RedisOption) (*checkpoint.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return checkpoint.NewRedisStore(client, opts...), mr
}

func TestResumeEmptyThread(t *testing.T) {
	store, _ := newTestStore(t)

	turns, err := store.Resume(context.Background(), checkpoint.ThreadKey("s1"))
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAppendThenResumePreservesOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := checkpoint.ThreadKey("s1")

	require.NoError(t, store.Append(ctx, key,
		schema.UserMessage("Hello"),
		schema.AssistantMessage("Hi there!", nil),
	))
	require.NoError(t, store.Append(ctx, key,
		schema.UserMessage("How are you?"),
		schema.AssistantMessage("Doing well.", nil),
	))

	turns, err := store.Resume(ctx, key)
	require.NoError(t, err)
	require.Len(t, turns, 4)

	assert.Equal(t, schema.User, turns[0].Role)
	assert.Equal(t, "Hello", turns[0].Content)
	assert.Equal(t, schema.Assistant, turns[1].Role)
	assert.Equal(t, "Hi there!", turns[1].Content)
	assert.Equal(t, "How are you?", turns[2].Content)
	assert.Equal(t, "Doing well.", turns[3].Content)
}

func TestThreadsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, checkpoint.ThreadKey("s1"), schema.UserMessage("one")))
	require.NoError(t, store.Append(ctx, checkpoint.ThreadKey("s2"), schema.UserMessage("two")))

	turns, err := store.Resume(ctx, checkpoint.ThreadKey("s1"))
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "one", turns[0].Content)
}

func TestAppendRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t, checkpoint.WithTTL(time.Minute))
	ctx := context.Background()
	key := checkpoint.ThreadKey("s1")

	require.NoError(t, store.Append(ctx, key, schema.UserMessage("Hello")))

	mr.FastForward(2 * time.Minute)

	turns, err := store.Resume(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, turns, "thread should expire after the TTL")
}
