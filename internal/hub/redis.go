package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/carelink/internal/bus"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// redisChannelPrefix namespaces pairing topics inside a shared Redis.
const redisChannelPrefix = "carelink:topic:"

// Bridge fans events out across server instances through Redis pub/sub.
//
// When the bridge is in play, the directory publishes into Redis instead of
// the local bus; Run subscribes to the same channels and feeds every received
// event into the local bus. Each instance (including the publisher itself)
// therefore delivers an event exactly once to its own WebSocket clients.
type Bridge struct {
	rdb *redis.Client
	bus *bus.Bus
}

func NewBridge(opts *redis.Options, b *bus.Bus) *Bridge {
	return &Bridge{
		rdb: redis.NewClient(opts),
		bus: b,
	}
}

// Publish sends the event to the topic's Redis channel. Delivery is
// best-effort: a publish failure is logged and dropped, clients recover by
// re-listing.
func (br *Bridge) Publish(topic string, evt protocol.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal event for redis", "topic", topic, "error", err)
		return
	}
	if err := br.rdb.Publish(context.Background(), redisChannelPrefix+topic, payload).Err(); err != nil {
		slog.Error("redis publish failed", "topic", topic, "error", err)
	}
}

// Run consumes the Redis pattern subscription and forwards events into the
// local bus until the context is cancelled.
func (br *Bridge) Run(ctx context.Context) error {
	sub := br.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	// Fail fast if the subscription never establishes.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("redis bridge subscribed", "pattern", redisChannelPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			var evt protocol.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				slog.Warn("discarding malformed redis event", "channel", msg.Channel, "error", err)
				continue
			}
			br.bus.Publish(topic, evt)
		}
	}
}

// Close releases the Redis connection.
func (br *Bridge) Close() error {
	return br.rdb.Close()
}
