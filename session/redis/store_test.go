package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/internal/testutil"
	"github.com/hupe1980/routemesh/session/redis"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	sess := testutil.NewSessionBuilder("s1").
		Route(core.DefaultLevel, "billing").
		Route(core.DefaultLevel, "support").
		Intents("refund").
		Messages(core.UserMessage("refund please"), core.AssistantMessage("sure")).
		Build()
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	st := got.RouteState(core.DefaultLevel)
	assert.Equal(t, "support", st.CurrentRoute)
	assert.Equal(t, "billing", st.PreviousRoute)
	assert.Equal(t, []string{"billing", "support"}, st.RouteHistory)
	assert.Equal(t, []string{"refund"}, got.PreviousIntents())
	assert.Equal(t, sess.Messages, got.Messages)
}

func TestRedisStore_GetUnknownCreatesSession(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	got, err := store.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.ID)
	assert.NotNil(t, got.Routes)
	assert.False(t, mr.Exists(redis.DefaultPrefix+"session:fresh"))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, core.NewSession("s1")))
	assert.True(t, mr.Exists("test:session:s1"))
	assert.Equal(t, time.Minute, mr.TTL("test:session:s1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("test:session:s1"))
}

func TestRedisStore_Delete(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, core.NewSession("s1")))
	require.NoError(t, store.Delete(ctx, "s1"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"session:s1"))
}

func TestRedisStore_CorruptDocument(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, mr.Set(redis.DefaultPrefix+"session:bad", "{not json"))
	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Get(context.Background(), "s1")
	assert.Error(t, err)
}
