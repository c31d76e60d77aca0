package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannelPrefix = "chat:room:"

func redisChannel(roomID uint) string {
	return fmt.Sprintf("%s%d", redisChannelPrefix, roomID)
}

// RedisBroadcaster 以 Redis pub/sub 在多個程序之間轉送聊天室訊息
type RedisBroadcaster struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *Hub
	log    zerolog.Logger
	done   chan struct{}
}

// NewRedisBroadcaster 訂閱 chat:room:* 並開始轉送；訂閱確認後才回傳
func NewRedisBroadcaster(ctx context.Context, client *redis.Client, log zerolog.Logger) (*RedisBroadcaster, error) {
	pubsub := client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}

	b := &RedisBroadcaster{
		client: client,
		pubsub: pubsub,
		local:  NewHub(log),
		log:    log.With().Str("component", "redis_broadcaster").Logger(),
		done:   make(chan struct{}),
	}
	go b.run()
	return b, nil
}

// run 依 Redis 送達的順序分送到本地連線
func (b *RedisBroadcaster) run() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		roomID, err := roomFromTopic(msg.Channel, redisChannelPrefix)
		if err != nil {
			b.log.Warn().Err(err).Msg("ignoring redis message")
			continue
		}
		b.local.deliver(roomID, []byte(msg.Payload))
	}
}

func (b *RedisBroadcaster) Join(roomID uint, sub Subscriber)  { b.local.Join(roomID, sub) }
func (b *RedisBroadcaster) Leave(roomID uint, sub Subscriber) { b.local.Leave(roomID, sub) }
func (b *RedisBroadcaster) Count(roomID uint) int             { return b.local.Count(roomID) }

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID uint, payload []byte) error {
	return b.client.Publish(ctx, redisChannel(roomID), payload).Err()
}

func (b *RedisBroadcaster) Close() error {
	err := b.pubsub.Close()
	<-b.done
	_ = b.local.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
