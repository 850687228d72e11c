package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "room:"

// RedisFeed fans room notifications out through Redis pub/sub so that every
// API instance wakes its local subscribers. Listen is served by a local Hub;
// Run must be running for remote publishes to reach it.
type RedisFeed struct {
	client *redis.Client
	local  *Hub
	log    *slog.Logger
}

// NewRedisFeed returns a feed publishing through client.
func NewRedisFeed(client *redis.Client, log *slog.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		local:  NewHub(),
		log:    log.With("component", "feed"),
	}
}

// Publish announces a change of roomID to all instances, this one included.
func (f *RedisFeed) Publish(ctx context.Context, roomID string) error {
	return f.client.Publish(ctx, channelPrefix+roomID, "changed").Err()
}

// Listen registers fn with the local hub.
func (f *RedisFeed) Listen(roomID string, fn func()) (cancel func()) {
	return f.local.Listen(roomID, fn)
}

// Run forwards Redis notifications into the local hub until ctx is done.
func (f *RedisFeed) Run(ctx context.Context) error {
	pubsub := f.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// wait for the subscription to be confirmed so early publishes are not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	f.log.Info("subscribed to room notifications")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID := strings.TrimPrefix(msg.Channel, channelPrefix)
			_ = f.local.Publish(ctx, roomID)
		}
	}
}
