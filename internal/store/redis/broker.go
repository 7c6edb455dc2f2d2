package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Broker wraps a Redis client used for pub/sub fan-out to API processes.
type Broker struct {
	client *redis.Client
}

func NewBroker(url string) (*Broker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Broker{client: client}, nil
}

func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}
