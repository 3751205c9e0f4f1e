package presence

import (
	"sync"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
)

// fakeConn собирает отправленные сообщения вместо реального сокета.
type fakeConn struct {
	id     string
	userID int64

	mu       sync.Mutex
	sent     []contract.Message
	closed   bool
	overflow bool // имитация переполненной очереди
}

func newFakeConn(id string, userID int64) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) UserID() int64 { return c.userID }

func (c *fakeConn) TrySend(msg contract.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overflow {
		if msg.Class == contract.ClassCritical {
			return domain.ErrQueueOverflow
		}
		return nil
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages(t contract.EventType) []contract.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []contract.Message
	for _, m := range c.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func newTestSession(connID string, userID int64) (*Session, *fakeConn) {
	c := newFakeConn(connID, userID)
	return NewSession(connID, userID, c), c
}
