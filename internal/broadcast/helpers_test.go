package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id     string
	ch     chan []byte
	mu     sync.Mutex
	closed bool
}

func newFakeSubscriber(id string, buffer int) *fakeSubscriber {
	return &fakeSubscriber{id: id, ch: make(chan []byte, buffer)}
}

func (s *fakeSubscriber) ID() string { return s.id }

func (s *fakeSubscriber) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

func (s *fakeSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSubscriber) next(t *testing.T) string {
	t.Helper()
	select {
	case p := <-s.ch:
		return string(p)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for delivery", "subscriber %s", s.id)
		return ""
	}
}

func (s *fakeSubscriber) assertEmpty(t *testing.T) {
	t.Helper()
	select {
	case p := <-s.ch:
		require.FailNow(t, "unexpected delivery", "subscriber %s got %s", s.id, p)
	case <-time.After(50 * time.Millisecond):
	}
}
