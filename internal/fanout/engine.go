package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/presence-service/internal/contract"
	"github.com/cwrk-planet/presence-service/internal/domain"
	"github.com/cwrk-planet/presence-service/internal/presence"
)

// NotificationRecorder — персистентный мост (service.NotificationService).
// Запись обязана стать durable (или встать в outbox) до живого push-а.
type NotificationRecorder interface {
	Record(ctx context.Context, recipientID int64, typ domain.NotificationType,
		title, message string, link *string, payload map[string]string) (*domain.Notification, error)
}

// Engine принимает доменные события и раздаёт их: комнатные broadcast-ы —
// лучшими усилиями, персональные уведомления — сначала durable-запись,
// потом одна попытка доставки на каждое живое соединение получателя.
type Engine struct {
	sessions *presence.SessionRegistry
	rooms    *presence.RoomRegistry
	recorder NotificationRecorder
}

func NewEngine(sessions *presence.SessionRegistry, rooms *presence.RoomRegistry, recorder NotificationRecorder) *Engine {
	return &Engine{
		sessions: sessions,
		rooms:    rooms,
		recorder: recorder,
	}
}

func (e *Engine) Publish(ctx context.Context, occ domain.Occurrence) error {
	switch o := occ.(type) {
	case domain.NewAnswer:
		return e.publishAnswer(ctx, o)
	case domain.NewComment:
		return e.publishComment(ctx, o)
	case domain.NewVote:
		return e.publishVote(ctx, o)
	case domain.BadgeEarned:
		return e.publishBadge(ctx, o)
	case domain.NewMessage:
		return e.publishMessage(ctx, o)
	case domain.ViewerJoined:
		e.rooms.RefreshPresence(domain.QuestionRoom(o.QuestionID))
		return nil
	case domain.ViewerLeft:
		e.rooms.RefreshPresence(domain.QuestionRoom(o.QuestionID))
		return nil
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownOccurrence, occ)
	}
}

// publishAnswer: broadcast в комнату вопроса + персональное уведомление
// автору вопроса, даже если он сейчас не смотрит на комнату (и даже если
// он вовсе оффлайн — запись в storage от этого не зависит).
func (e *Engine) publishAnswer(ctx context.Context, o domain.NewAnswer) error {
	e.broadcastRoom(domain.QuestionRoom(o.QuestionID), contract.Lossy(contract.EventActivityNew, contract.ActivityPayload{
		Kind:       o.Kind(),
		QuestionID: o.QuestionID,
		ActorID:    o.AnswererID,
		ActorName:  o.AnswererName,
		Preview:    o.Preview,
	}))

	if o.AuthorID == o.AnswererID {
		return nil // свой ответ на свой вопрос уведомления не создаёт
	}
	link := questionLink(o.QuestionID)
	return e.notify(ctx, o.AuthorID, domain.NotificationAnswer,
		"New answer",
		fmt.Sprintf("%s answered your question %q", o.AnswererName, o.QuestionTitle),
		&link,
		map[string]string{"question_id": o.QuestionID},
	)
}

func (e *Engine) publishComment(ctx context.Context, o domain.NewComment) error {
	e.broadcastRoom(domain.QuestionRoom(o.QuestionID), contract.Lossy(contract.EventActivityNew, contract.ActivityPayload{
		Kind:       o.Kind(),
		QuestionID: o.QuestionID,
		ActorID:    o.CommenterID,
		ActorName:  o.CommenterName,
		Preview:    o.Preview,
	}))

	if o.AuthorID == o.CommenterID {
		return nil
	}
	link := questionLink(o.QuestionID)
	return e.notify(ctx, o.AuthorID, domain.NotificationComment,
		"New comment",
		fmt.Sprintf("%s commented on %q", o.CommenterName, o.QuestionTitle),
		&link,
		map[string]string{"question_id": o.QuestionID},
	)
}

// publishVote: vote:update — advisory-подсказка, комнатный broadcast без
// персистентности. Персональное уведомление создаётся только когда внешняя
// threshold-политика взвела NotifyRecipient.
func (e *Engine) publishVote(ctx context.Context, o domain.NewVote) error {
	e.broadcastRoom(domain.QuestionRoom(o.QuestionID), contract.Lossy(contract.EventVoteUpdate, contract.VoteUpdatePayload{
		TargetID:   o.TargetID,
		TargetType: o.TargetType,
		VoteCount:  o.NewCount,
	}))

	if !o.NotifyRecipient {
		return nil
	}
	link := questionLink(o.QuestionID)
	return e.notify(ctx, o.RecipientID, domain.NotificationVote,
		"Votes",
		o.RecipientText,
		&link,
		map[string]string{"target_id": o.TargetID, "target_type": string(o.TargetType)},
	)
}

func (e *Engine) publishBadge(ctx context.Context, o domain.BadgeEarned) error {
	return e.notify(ctx, o.UserID, domain.NotificationBadge,
		"Badge earned",
		fmt.Sprintf("You earned the %s badge (%s)", o.BadgeName, o.BadgeTier),
		nil,
		map[string]string{"badge": o.BadgeName, "tier": o.BadgeTier},
	)
}

// publishMessage: broadcast в комнату диалога; участникам, не подключённым
// к этой комнате, дополнительно пишется персональное уведомление — читающий
// тред пользователь и так видит сообщение.
func (e *Engine) publishMessage(ctx context.Context, o domain.NewMessage) error {
	roomID := domain.ConversationRoom(o.ConversationID)
	e.broadcastRoom(roomID, contract.Lossy(contract.EventActivityNew, contract.ActivityPayload{
		Kind:           o.Kind(),
		ConversationID: o.ConversationID,
		ActorID:        o.SenderID,
		ActorName:      o.SenderName,
		Preview:        o.Preview,
	}))

	var errs []error
	link := conversationLink(o.ConversationID)
	for _, rid := range o.RecipientIDs {
		if rid == o.SenderID {
			continue
		}
		if e.sessions.Joined(rid, roomID) {
			continue
		}
		if err := e.notify(ctx, rid, domain.NotificationMessage,
			"New message",
			fmt.Sprintf("%s sent you a message", o.SenderName),
			&link,
			map[string]string{"conversation_id": o.ConversationID},
		); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify: durable-запись строго до попытки доставки; дальше — ровно одна
// попытка на соединение. Неудачная отправка не ретраится: запись уже есть,
// клиент заберёт её следующим List-ом.
func (e *Engine) notify(ctx context.Context, recipientID int64, typ domain.NotificationType,
	title, message string, link *string, payload map[string]string) error {

	n, err := e.recorder.Record(ctx, recipientID, typ, title, message, link, payload)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	msg := contract.Critical(contract.EventNotification, contract.ToNotificationPayload(n))
	for _, s := range e.sessions.ConnectionsOf(recipientID) {
		if err := s.Conn.TrySend(msg); err != nil {
			// переполнение очереди на critical-классе: рвём соединение,
			// клиент пересинхронизируется из storage
			slog.Warn("notification push failed, closing connection",
				"conn", s.ConnID, "user", recipientID, "err", err)
			_ = s.Conn.Close()
		}
	}
	return nil
}

func (e *Engine) broadcastRoom(roomID domain.RoomID, msg contract.Message) {
	for _, s := range e.rooms.MembersOf(roomID) {
		_ = s.Conn.TrySend(msg) // best-effort
	}
}

func questionLink(id string) string     { return "/questions/" + id }
func conversationLink(id string) string { return "/messages/" + id }
