package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/types"
)

func TestParseTopic(t *testing.T) {
	topic, err := ParseTopic("routes")
	require.NoError(t, err)
	assert.Equal(t, TopicRoutes, topic)
	_, err = ParseTopic("drivers")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestRedisHubRoundTrip(t *testing.T) {
	addr := os.Getenv("ROUTEDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROUTEDESK_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	hub := NewRedisHub(rdb)
	hub.prefix = "routedesk:test:" + time.Now().Format("150405.000000") + ":"
	ctx := context.Background()

	changes, closeFn, err := hub.Subscribe(ctx, TopicAssignments)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, hub.Publish(ctx, Change{Topic: TopicRoutes, Kind: "imported", IDs: []types.ID{"r0"}}))
	require.NoError(t, hub.Publish(ctx, Change{Topic: TopicAssignments, Kind: "claimed", IDs: []types.ID{"r1"}}))

	select {
	case c := <-changes:
		assert.Equal(t, "claimed", c.Kind)
		assert.Equal(t, []types.ID{"r1"}, c.IDs)
		assert.False(t, c.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}
}
