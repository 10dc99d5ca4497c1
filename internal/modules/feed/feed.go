// README: Change feed for route and assignment updates, fanned out over Redis Pub/Sub.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"

	"routedesk/internal/types"
)

type Topic string

const (
	TopicRoutes      Topic = "routes"
	TopicAssignments Topic = "assignments"
)

var ErrUnknownTopic = errors.New("unknown feed topic")

func ParseTopic(v string) (Topic, error) {
	switch Topic(v) {
	case TopicRoutes, TopicAssignments:
		return Topic(v), nil
	}
	return "", ErrUnknownTopic
}

// Change tells subscribers which records moved; they re-read the records
// they care about.
type Change struct {
	Topic Topic      `json:"topic"`
	Kind  string     `json:"kind"`
	IDs   []types.ID `json:"ids"`
	At    time.Time  `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

type Subscriber interface {
	// Subscribe streams changes until ctx is cancelled or close is called.
	Subscribe(ctx context.Context, topic Topic) (changes <-chan Change, close func(), err error)
}

type RedisHub struct {
	redis  *redis.Client
	prefix string
}

func NewRedisHub(client *redis.Client) *RedisHub {
	return &RedisHub{redis: client, prefix: "routedesk:feed:"}
}

func (h *RedisHub) channel(t Topic) string {
	return h.prefix + string(t)
}

func (h *RedisHub) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, h.channel(c.Topic), body).Err()
}

func (h *RedisHub) Subscribe(ctx context.Context, topic Topic) (<-chan Change, func(), error) {
	sub := h.redis.Subscribe(ctx, h.channel(topic))
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Change, 16)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					log.WithField("topic", topic).Warnf("feed: bad payload: %v", err)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	closeFn := func() {
		cancel()
		_ = sub.Close()
	}
	return out, closeFn, nil
}

// Discard publishes nowhere.
type Discard struct{}

func (Discard) Publish(context.Context, Change) error { return nil }
