package presence

import (
	"sync"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/samber/lo"
)

type room struct {
	mu      sync.Mutex
	members map[string]*Session // connID -> session
	dead    bool                // комната снята с учёта после опустошения
}

// RoomRegistry владеет членством комнат. Внешний mutex защищает только
// карту комнат; членство мутируется под замком самой комнаты, так что
// join/leave по разным комнатам не конкурируют. Два комнатных замка
// одновременно не берутся никогда.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomID]*room)}
}

func (r *RoomRegistry) getOrCreate(roomID domain.RoomID) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]*Session)}
		r.rooms[roomID] = rm
	}
	return rm
}

func (r *RoomRegistry) get(roomID domain.RoomID) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// Join добавляет соединение в комнату (комната создаётся лениво).
// Повторный Join той же пары — no-op: источником правды служит множество,
// а не счётчик, поэтому дубликаты не раздувают presence.
// Снапшот presence рассылается только если множество реально изменилось.
func (r *RoomRegistry) Join(s *Session, roomID domain.RoomID) bool {
	var members []*Session

	for {
		rm := r.getOrCreate(roomID)

		rm.mu.Lock()
		if rm.dead {
			// гонка с GC опустевшей комнаты: объект уже снят с учёта,
			// берём свежий
			rm.mu.Unlock()
			continue
		}
		if _, ok := rm.members[s.ConnID]; ok {
			rm.mu.Unlock()
			return false
		}
		rm.members[s.ConnID] = s
		members = snapshot(rm)
		rm.mu.Unlock()
		break
	}

	broadcastPresence(roomID, members)
	return true
}

// Leave убирает соединение; отсутствие соединения или комнаты — не ошибка.
// Пустая комната уничтожается сразу: гонки реконнекта гасятся тем, что
// клиент после реконнекта заново шлёт join (см. DESIGN.md).
func (r *RoomRegistry) Leave(connID string, roomID domain.RoomID) bool {
	rm := r.get(roomID)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	if _, ok := rm.members[connID]; !ok {
		rm.mu.Unlock()
		return false
	}
	delete(rm.members, connID)
	empty := len(rm.members) == 0
	members := snapshot(rm)
	rm.mu.Unlock()

	if empty {
		r.collect(roomID, rm)
	}

	broadcastPresence(roomID, members)
	return true
}

// collect снимает опустевшую комнату с учёта. Флаг dead выставляется под
// комнатным замком, чтобы параллельный Join не присоединился к осиротевшему
// объекту.
func (r *RoomRegistry) collect(roomID domain.RoomID, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] != rm {
		return
	}
	rm.mu.Lock()
	if len(rm.members) == 0 {
		rm.dead = true
		delete(r.rooms, roomID)
	}
	rm.mu.Unlock()
}

// MembersOf — снапшот членов комнаты; пустой срез для несуществующей.
func (r *RoomRegistry) MembersOf(roomID domain.RoomID) []*Session {
	rm := r.get(roomID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return snapshot(rm)
}

func (r *RoomRegistry) PresenceCount(roomID domain.RoomID) int {
	rm := r.get(roomID)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// RefreshPresence перетранслирует текущий снапшот зрителей членам комнаты
// без изменения членства (зритель, отслеживаемый вне WS). Несуществующая
// комната — no-op: слать снапшот некому.
func (r *RoomRegistry) RefreshPresence(roomID domain.RoomID) {
	rm := r.get(roomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	members := snapshot(rm)
	rm.mu.Unlock()

	broadcastPresence(roomID, members)
}

func snapshot(rm *room) []*Session {
	out := make([]*Session, 0, len(rm.members))
	for _, s := range rm.members {
		out = append(out, s)
	}
	return out
}

// broadcastPresence шлёт обновлённый снапшот текущим членам комнаты.
// Событие определено только для question-комнат; отправка идёт вне
// комнатного замка и лучшими усилиями (lossy).
func broadcastPresence(roomID domain.RoomID, members []*Session) {
	if roomID.Kind() != domain.RoomKindQuestion {
		return
	}

	viewerIDs := lo.Uniq(lo.Map(members, func(s *Session, _ int) int64 { return s.UserID }))
	msg := contract.Lossy(contract.EventQuestionViewers, contract.QuestionViewersPayload{
		QuestionID: roomID.TargetID(),
		Count:      len(members),
		ViewerIDs:  viewerIDs,
	})
	for _, s := range members {
		_ = s.Conn.TrySend(msg)
	}
}
