package chathub

import (
	"complaintdesk/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Broker carries live events between service instances. Every instance's
// Hub listens to the whole stream and fans events out to local viewers.
type Broker interface {
	Publish(ctx context.Context, ev models.LiveEvent) error
	// Listen returns the event stream. It is closed when ctx is done or the
	// underlying connection is lost.
	Listen(ctx context.Context) (<-chan models.LiveEvent, error)
}

const channelPrefix = "complaint:"

// ChannelName is the Redis channel events of one complaint are published on.
func ChannelName(complaintID string) string {
	return channelPrefix + complaintID
}

// RedisBroker implements Broker with Redis Pub/Sub, one channel per complaint.
type RedisBroker struct {
	Redis  *redis.Client
	Logger *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{Redis: rdb, Logger: logger}
}

// Publish serialises ev to JSON and publishes it on the complaint's channel.
func (b *RedisBroker) Publish(ctx context.Context, ev models.LiveEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.Redis.Publish(ctx, ChannelName(ev.ComplaintID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s event for complaint %s: %w", ev.Type, ev.ComplaintID, err)
	}
	return nil
}

// Listen subscribes to every complaint channel. The subscription is
// confirmed before Listen returns so no event published afterwards is lost.
func (b *RedisBroker) Listen(ctx context.Context) (<-chan models.LiveEvent, error) {
	pubsub := b.Redis.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to complaint channels: %w", err)
	}

	out := make(chan models.LiveEvent, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.LiveEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.Logger.Warn("dropping malformed live event", "channel", msg.Channel, "error", err)
					continue
				}
				if ev.ComplaintID == "" {
					ev.ComplaintID = strings.TrimPrefix(msg.Channel, channelPrefix)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MemoryBroker is an in-process Broker for a single instance and tests.
type MemoryBroker struct {
	ch chan models.LiveEvent
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	return &MemoryBroker{ch: make(chan models.LiveEvent, buffer)}
}

func (b *MemoryBroker) Publish(ctx context.Context, ev models.LiveEvent) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen hands out the single shared stream; only one Hub should listen.
func (b *MemoryBroker) Listen(ctx context.Context) (<-chan models.LiveEvent, error) {
	return b.ch, nil
}
