package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
)

type typingKey struct {
	roomID domain.RoomID
	userID int64
}

type typingEntry struct {
	username  string
	ownerConn string // соединение, приславшее последний typing:start
	expiresAt time.Time
}

// TypingTracker владеет короткоживущими индикаторами «печатает» с TTL.
// Явный typing:stop и фоновая уборка закрывают одно и то же: упавший клиент,
// не приславший stop, не может «печатать» вечно.
type TypingTracker struct {
	mu      sync.Mutex
	entries map[typingKey]typingEntry

	rooms *RoomRegistry
	ttl   time.Duration
	now   func() time.Time
}

func NewTypingTracker(rooms *RoomRegistry, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = 4 * time.Second
	}
	return &TypingTracker{
		entries: make(map[typingKey]typingEntry),
		rooms:   rooms,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Start делает upsert записи. Broadcast уходит только если запись новая или
// прежняя уже истекла — refresh на каждое нажатие клавиши шум не создаёт.
func (t *TypingTracker) Start(connID string, roomID domain.RoomID, userID int64, username string) {
	now := t.now()
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	prev, existed := t.entries[key]
	t.entries[key] = typingEntry{
		username:  username,
		ownerConn: connID,
		expiresAt: now.Add(t.ttl),
	}
	t.mu.Unlock()

	if existed && prev.expiresAt.After(now) {
		return
	}
	t.broadcast(contract.EventTypingStart, roomID, userID, username)
}

func (t *TypingTracker) Stop(roomID domain.RoomID, userID int64) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	_, ok := t.entries[key]
	delete(t.entries, key)
	t.mu.Unlock()

	if !ok {
		return
	}
	t.broadcast(contract.EventTypingStop, roomID, userID, "")
}

// StopOwnedBy убирает все записи, которыми владеет соединение (teardown
// при disconnect). Идемпотентно.
func (t *TypingTracker) StopOwnedBy(connID string) {
	type stopped struct {
		roomID domain.RoomID
		userID int64
	}

	t.mu.Lock()
	var out []stopped
	for key, e := range t.entries {
		if e.ownerConn == connID {
			delete(t.entries, key)
			out = append(out, stopped{roomID: key.roomID, userID: key.userID})
		}
	}
	t.mu.Unlock()

	for _, s := range out {
		t.broadcast(contract.EventTypingStop, s.roomID, s.userID, "")
	}
}

// ActiveTypists — имена печатающих с ещё не истёкшим TTL (ленивая чистка).
func (t *TypingTracker) ActiveTypists(roomID domain.RoomID) map[int64]string {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int64]string)
	for key, e := range t.entries {
		if key.roomID != roomID {
			continue
		}
		if !e.expiresAt.After(now) {
			delete(t.entries, key)
			continue
		}
		out[key.userID] = e.username
	}
	return out
}

// Run гоняет фоновую уборку до отмены контекста.
func (t *TypingTracker) Run(ctx context.Context) {
	tick := time.NewTicker(t.ttl / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.sweep()
		}
	}
}

func (t *TypingTracker) sweep() {
	now := t.now()

	t.mu.Lock()
	var expired []typingKey
	for key, e := range t.entries {
		if !e.expiresAt.After(now) {
			delete(t.entries, key)
			expired = append(expired, key)
		}
	}
	t.mu.Unlock()

	for _, key := range expired {
		slog.Debug("typing expired", "room", key.roomID, "user", key.userID)
		t.broadcast(contract.EventTypingStop, key.roomID, key.userID, "")
	}
}

// broadcast шлёт typing-событие членам комнаты, кроме сессий самого
// печатающего.
func (t *TypingTracker) broadcast(ev contract.EventType, roomID domain.RoomID, userID int64, username string) {
	msg := contract.Lossy(ev, contract.TypingPayload{
		RoomID:   string(roomID),
		UserID:   userID,
		Username: username,
	})
	for _, s := range t.rooms.MembersOf(roomID) {
		if s.UserID == userID {
			continue
		}
		_ = s.Conn.TrySend(msg)
	}
}
