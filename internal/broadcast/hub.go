package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"triplink_chat/internal/metrics"
)

// Hub 單一程序內的 Broadcaster：兩層 map roomID -> subscriberID -> Subscriber
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[string]Subscriber
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[uint]map[string]Subscriber),
		log:   log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Join(roomID uint, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]Subscriber)
	}
	h.rooms[roomID][sub.ID()] = sub
}

func (h *Hub) Leave(roomID uint, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, sub.ID())
		// 如果房間空了，刪除房間
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Publish(_ context.Context, roomID uint, payload []byte) error {
	h.deliver(roomID, payload)
	return nil
}

// deliver 送給目前仍在房間內的連線；已離開的連線自然不會收到。
// 佇列已滿的連線會被移出房間並關閉。
func (h *Hub) deliver(roomID uint, payload []byte) {
	var slow []Subscriber

	h.mu.RLock()
	for _, sub := range h.rooms[roomID] {
		if !sub.Deliver(payload) {
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.Leave(roomID, sub)
		sub.Close()
		metrics.BroadcastDropped.Inc()
		h.log.Warn().Uint("room_id", roomID).Str("subscriber", sub.ID()).Msg("subscriber evicted, send queue full")
	}
}

func (h *Hub) Count(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// Close 關閉所有仍在線的連線
func (h *Hub) Close() error {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[uint]map[string]Subscriber)
	h.mu.Unlock()

	for _, subs := range rooms {
		for _, sub := range subs {
			sub.Close()
		}
	}
	return nil
}
