package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis"
)

const channelPrefix = "notifications:"

// RedisBus is a Bus backed by redis pub/sub, for running several server
// instances against one store.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedis connects to addr and pings it.
func NewRedis(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})

	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, logger: logger}
}

func channelName(userID string) string {
	return channelPrefix + userID
}

func (b *RedisBus) Publish(_ context.Context, userID string) error {
	if err := b.client.Publish(channelName(userID), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channelName(userID), err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	pubsub := b.client.Subscribe(channelName(userID))
	// Receive waits for the subscription confirmation.
	if _, err := pubsub.Receive(); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channelName(userID), err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				b.logger.Warn("Failed to close redis subscription", "user_id", userID, "error", err)
			}
		})
	}

	messages := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, cancel, nil
}
