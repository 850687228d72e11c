package feed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisFeed_DeliversAcrossInstances(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clientA := redis.NewClient(&redis.Options{Addr: addr})
	clientB := redis.NewClient(&redis.Options{Addr: addr})
	defer clientA.Close()
	defer clientB.Close()

	// two "instances": a publishes, b listens
	a := NewRedisFeed(clientA, log)
	b := NewRedisFeed(clientB, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	woke := make(chan struct{}, 1)
	stop := b.Listen("u1_u2", func() {
		select {
		case woke <- struct{}{}:
		default:
		}
	})
	defer stop()

	// Run subscribes asynchronously; publish until the notification arrives
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := a.Publish(ctx, "u1_u2"); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case <-woke:
			return
		case <-deadline:
			t.Fatal("notification never arrived")
		case <-tick.C:
		}
	}
}
