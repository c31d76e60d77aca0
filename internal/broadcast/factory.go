package broadcast

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"triplink_chat/pkg/config"
)

// New 依設定建立 Broadcaster：memory、redis 或 nats
func New(ctx context.Context, cfg config.ChatConfig, log zerolog.Logger) (Broadcaster, error) {
	switch cfg.Broker {
	case "", "memory":
		return NewHub(log), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisBroadcaster(ctx, client, log)
	case "nats":
		conn, err := nats.Connect(cfg.NatsURL, nats.Name("triplink-chat"))
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		b, err := NewNATSBroadcaster(conn, log)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported chat broker %q", cfg.Broker)
	}
}
