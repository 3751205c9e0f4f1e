package contract

import (
	"github.com/cwrk-planet/presence-service/internal/domain"
)

// EventType — закрытое множество событий server→client.
type EventType string

const (
	EventNotification    EventType = "notification"
	EventActivityNew     EventType = "activity:new"
	EventQuestionViewers EventType = "question:viewers"
	EventVoteUpdate      EventType = "vote:update"
	EventOnlineCount     EventType = "online:count"
	EventTypingStart     EventType = "typing:start"
	EventTypingStop      EventType = "typing:stop"
)

// CommandType — закрытое множество команд client→server.
type CommandType string

const (
	CmdJoinQuestion      CommandType = "join:question"
	CmdLeaveQuestion     CommandType = "leave:question"
	CmdJoinConversation  CommandType = "join:conversation"
	CmdLeaveConversation CommandType = "leave:conversation"
	CmdTypingStart       CommandType = "typing:start"
	CmdTypingStop        CommandType = "typing:stop"
)

// Class определяет политику при переполнении исходящей очереди соединения:
// lossy-сообщения молча отбрасываются (следующий broadcast самовосстановит
// состояние), critical «теряться» не должны — соединение закрывается, и клиент
// пересинхронизируется из storage.
type Class int

const (
	ClassLossy Class = iota
	ClassCritical
)

type Message struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`

	Class Class `json:"-"`
}

func Lossy(t EventType, payload any) Message {
	return Message{Type: t, Payload: payload, Class: ClassLossy}
}

func Critical(t EventType, payload any) Message {
	return Message{Type: t, Payload: payload, Class: ClassCritical}
}

type Command struct {
	Type    CommandType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// --- payloads server→client ---

type NotificationPayload struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title,omitempty"`
	Message   string                  `json:"message"`
	Link      *string                 `json:"link,omitempty"`
	Payload   map[string]string       `json:"payload,omitempty"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt int64                   `json:"created_at_unix"`
}

func ToNotificationPayload(n *domain.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Payload:   n.Payload,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Unix(),
	}
}

type ActivityPayload struct {
	Kind           domain.OccurrenceKind `json:"kind"`
	QuestionID     string                `json:"question_id,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	ActorID        int64                 `json:"actor_id,omitempty"`
	ActorName      string                `json:"actor_name,omitempty"`
	Preview        string                `json:"preview,omitempty"`
}

type QuestionViewersPayload struct {
	QuestionID string  `json:"question_id"`
	Count      int     `json:"count"`
	ViewerIDs  []int64 `json:"viewer_ids"`
}

type VoteUpdatePayload struct {
	TargetID   string                `json:"target_id"`
	TargetType domain.VoteTargetType `json:"target_type"`
	VoteCount  int64                 `json:"vote_count"`
}

type OnlineCountPayload struct {
	Count int `json:"count"`
}

type TypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// --- payloads client→server ---

type JoinPayload struct {
	ID string `json:"id"`
}

type TypingStartPayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

type TypingStopPayload struct {
	RoomID string `json:"room_id"`
}
