package domain

import (
	"fmt"
	"strings"
)

type RoomKind string

const (
	RoomKindQuestion     RoomKind = "question"
	RoomKindConversation RoomKind = "conversation"
	RoomKindGlobal       RoomKind = "global"
)

// RoomID — составной идентификатор комнаты: "question:<id>", "conversation:<id>", "global".
type RoomID string

const GlobalRoom RoomID = "global"

func QuestionRoom(questionID string) RoomID {
	return RoomID(string(RoomKindQuestion) + ":" + questionID)
}

func ConversationRoom(conversationID string) RoomID {
	return RoomID(string(RoomKindConversation) + ":" + conversationID)
}

func (r RoomID) Kind() RoomKind {
	if r == GlobalRoom {
		return RoomKindGlobal
	}
	kind, _, _ := strings.Cut(string(r), ":")
	return RoomKind(kind)
}

// TargetID возвращает id вопроса/диалога; для global — пустую строку.
func (r RoomID) TargetID() string {
	_, target, _ := strings.Cut(string(r), ":")
	return target
}

func ParseRoomID(s string) (RoomID, error) {
	if s == string(GlobalRoom) {
		return GlobalRoom, nil
	}
	kind, target, ok := strings.Cut(s, ":")
	if !ok || target == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomID, s)
	}
	switch RoomKind(kind) {
	case RoomKindQuestion, RoomKindConversation:
		return RoomID(s), nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRoomID, kind)
	}
}
