package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/google/uuid"
)

// NotificationStore — узкий интерфейс поверх REST/SQL-хранилища уведомлений
// (internal/postgres.NotificationRepository).
type NotificationStore interface {
	Save(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Notification, string, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	SetRead(ctx context.Context, id string, userID int64) error
	SetAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id string, userID int64) error
	DeleteAll(ctx context.Context, userID int64) error
}

type Enqueuer interface {
	Enqueue(n *domain.Notification) error
}

// NotificationService — персистентный мост: единственный писатель is_read и
// единственный источник правды о том, что лежит у пользователя.
type NotificationService struct {
	store  NotificationStore
	outbox Enqueuer
	now    func() time.Time
}

func NewNotificationService(store NotificationStore, outbox Enqueuer) *NotificationService {
	return &NotificationService{
		store:  store,
		outbox: outbox,
		now:    time.Now,
	}
}

// Record делает запись durable до возврата: либо insert прошёл, либо запись
// легла в outbox на повтор (pending-persist). Живой push поверх неё в обоих
// случаях допустим — id стабилен, следующий List клиента дедуплицирует.
func (s *NotificationService) Record(ctx context.Context, recipientID int64, typ domain.NotificationType,
	title, message string, link *string, payload map[string]string) (*domain.Notification, error) {

	if !typ.Valid() {
		return nil, fmt.Errorf("record: invalid notification type %q", typ)
	}

	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Link:        link,
		Payload:     payload,
		CreatedAt:   s.now(),
	}

	if err := s.store.Save(ctx, n); err != nil {
		slog.Warn("notification save failed, queueing to outbox",
			"id", n.ID, "recipient", recipientID, "err", err)
		if qErr := s.outbox.Enqueue(n); qErr != nil {
			return nil, fmt.Errorf("save: %w (outbox: %v)", err, qErr)
		}
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID int64, limit int, cursor string) ([]domain.Notification, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.List(ctx, userID, limit, cursor)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id string, userID int64) error {
	return s.store.SetRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.SetAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, id string, userID int64) error {
	return s.store.Delete(ctx, id, userID)
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID int64) error {
	return s.store.DeleteAll(ctx, userID)
}
