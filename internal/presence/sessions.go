package presence

import (
	"sync"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
)

// Session — одно живое соединение. У пользователя может быть несколько
// сессий одновременно (вкладки, устройства).
type Session struct {
	ConnID string
	UserID int64
	Conn   contract.Conn

	// joinedRooms принадлежит сессии; мутируется только через SessionRegistry.
	joinedRooms map[domain.RoomID]struct{}
}

func NewSession(connID string, userID int64, conn contract.Conn) *Session {
	return &Session{
		ConnID:      connID,
		UserID:      userID,
		Conn:        conn,
		joinedRooms: make(map[domain.RoomID]struct{}),
	}
}

// SessionRegistry владеет множеством живых соединений.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // connID -> session
	byUser   map[int64]map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		byUser:   make(map[int64]map[string]*Session),
	}
}

func (r *SessionRegistry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ConnID] = s
	us, ok := r.byUser[s.UserID]
	if !ok {
		us = make(map[string]*Session)
		r.byUser[s.UserID] = us
	}
	us[s.ConnID] = s
}

// Unregister снимает сессию и возвращает её вместе со списком комнат,
// из которых её ещё нужно вывести. Повторный вызов — no-op (nil, nil):
// на этом держится идемпотентность teardown.
func (r *SessionRegistry) Unregister(connID string) (*Session, []domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return nil, nil
	}
	delete(r.sessions, connID)
	if us, ok := r.byUser[s.UserID]; ok {
		delete(us, connID)
		if len(us) == 0 {
			delete(r.byUser, s.UserID)
		}
	}

	rooms := make([]domain.RoomID, 0, len(s.joinedRooms))
	for id := range s.joinedRooms {
		rooms = append(rooms, id)
	}
	return s, rooms
}

func (r *SessionRegistry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// ConnectionsOf возвращает снапшот всех живых соединений пользователя.
func (r *SessionRegistry) ConnectionsOf(userID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	us := r.byUser[userID]
	out := make([]*Session, 0, len(us))
	for _, s := range us {
		out = append(out, s)
	}
	return out
}

// Count — число живых соединений (для online:count).
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TrackJoin отмечает членство за сессией и сообщает, жива ли она ещё.
// false означает, что teardown уже снял сессию с учёта: вызывающий обязан
// откатить вступление в комнату, иначе мёртвое соединение останется членом.
func (r *SessionRegistry) TrackJoin(connID string, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	s.joinedRooms[roomID] = struct{}{}
	return true
}

func (r *SessionRegistry) TrackLeave(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[connID]; ok {
		delete(s.joinedRooms, roomID)
	}
}

// Joined сообщает, состоит ли хоть одна сессия пользователя в комнате.
func (r *SessionRegistry) Joined(userID int64, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byUser[userID] {
		if _, ok := s.joinedRooms[roomID]; ok {
			return true
		}
	}
	return false
}
