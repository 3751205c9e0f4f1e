package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/gorilla/websocket"
)

// wsConn — одно живое соединение. Исходящая очередь ограничена; её дренирует
// единственная writer-горутина, поэтому сообщения одному соединению уходят
// строго в порядке постановки.
type wsConn struct {
	id     string
	userID int64
	conn   *websocket.Conn

	out    chan contract.Message
	closed chan struct{}
	once   sync.Once

	pingEvery time.Duration
}

func newWsConn(conn *websocket.Conn, id string, userID int64, sendBuffer int, pingEvery time.Duration) *wsConn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &wsConn{
		id:        id,
		userID:    userID,
		conn:      conn,
		out:       make(chan contract.Message, sendBuffer),
		closed:    make(chan struct{}),
		pingEvery: pingEvery,
	}
}

func (c *wsConn) ID() string    { return c.id }
func (c *wsConn) UserID() int64 { return c.userID }

// TrySend — неблокирующая постановка в очередь. Переполнение для lossy-класса
// (presence/typing) — молчаливый drop: следующий broadcast самовосстановит
// картину. Для critical-класса возвращается ErrQueueOverflow, и вызывающий
// обязан закрыть соединение.
func (c *wsConn) TrySend(msg contract.Message) error {
	select {
	case <-c.closed:
		if msg.Class == contract.ClassCritical {
			return domain.ErrQueueOverflow
		}
		return nil
	default:
	}

	select {
	case c.out <- msg:
		return nil
	default:
		if msg.Class == contract.ClassCritical {
			return domain.ErrQueueOverflow
		}
		slog.Debug("dropping lossy message on full queue", "conn", c.id, "type", msg.Type)
		return nil
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.conn.Close()
}

// writeLoop — единственный писатель сокета: дренирует очередь и пингует.
func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
