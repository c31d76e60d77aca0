//go:generate go run go.uber.org/mock/mockgen@v0.4.0 -source=broadcast.go -destination=../mocks/mock_broadcast.go -package=mocks

// Package broadcast 提供聊天室的群組訊息能力。
//
// Broadcaster 維護「聊天室 → 在線連線」的對應，並將訊息送給同一聊天室的所有連線。
// 單一程序使用記憶體中的 Hub；多個程序時以 Redis 或 NATS 的 pub/sub 轉送，
// 每個程序再用本地的 Hub 分送給自己的連線。
package broadcast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Subscriber 代表一個訂閱聊天室的連線
type Subscriber interface {
	ID() string
	// Deliver 不可阻塞；回傳 false 表示送出佇列已滿或連線已關閉
	Deliver(payload []byte) bool
	Close()
}

// Broadcaster 聊天室群組訊息的抽象，Join/Leave/Publish 可被多個 goroutine 同時呼叫
type Broadcaster interface {
	Join(roomID uint, sub Subscriber)
	// Leave 可重複呼叫
	Leave(roomID uint, sub Subscriber)
	Publish(ctx context.Context, roomID uint, payload []byte) error
	Count(roomID uint) int
	Close() error
}

func roomFromTopic(topic, prefix string) (uint, error) {
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return 0, fmt.Errorf("unexpected topic %q", topic)
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected topic %q: %w", topic, err)
	}
	return uint(id), nil
}
