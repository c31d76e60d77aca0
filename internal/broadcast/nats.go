package broadcast

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const natsSubjectPrefix = "chat.room."

func natsSubject(roomID uint) string {
	return fmt.Sprintf("%s%d", natsSubjectPrefix, roomID)
}

// NATSBroadcaster 以 NATS subject chat.room.<id> 在多個程序之間轉送聊天室訊息
type NATSBroadcaster struct {
	conn  *nats.Conn
	sub   *nats.Subscription
	local *Hub
	log   zerolog.Logger
}

func NewNATSBroadcaster(conn *nats.Conn, log zerolog.Logger) (*NATSBroadcaster, error) {
	b := &NATSBroadcaster{
		conn:  conn,
		local: NewHub(log),
		log:   log.With().Str("component", "nats_broadcaster").Logger(),
	}

	// 同一個 subscription 的 callback 依序執行，保持 NATS 送達的順序
	sub, err := conn.Subscribe(natsSubjectPrefix+"*", func(m *nats.Msg) {
		roomID, err := roomFromTopic(m.Subject, natsSubjectPrefix)
		if err != nil {
			b.log.Warn().Err(err).Msg("ignoring nats message")
			return
		}
		b.local.deliver(roomID, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}

	b.sub = sub
	return b, nil
}

func (b *NATSBroadcaster) Join(roomID uint, sub Subscriber)  { b.local.Join(roomID, sub) }
func (b *NATSBroadcaster) Leave(roomID uint, sub Subscriber) { b.local.Leave(roomID, sub) }
func (b *NATSBroadcaster) Count(roomID uint) int             { return b.local.Count(roomID) }

func (b *NATSBroadcaster) Publish(_ context.Context, roomID uint, payload []byte) error {
	return b.conn.Publish(natsSubject(roomID), payload)
}

func (b *NATSBroadcaster) Close() error {
	err := b.sub.Unsubscribe()
	_ = b.local.Close()
	b.conn.Close()
	return err
}
