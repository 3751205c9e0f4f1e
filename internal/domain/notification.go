package domain

import "time"

type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationAnswer  NotificationType = "answer"
	NotificationComment NotificationType = "comment"
	NotificationVote    NotificationType = "vote"
	NotificationBadge   NotificationType = "badge"
	NotificationFollow  NotificationType = "follow"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMessage, NotificationAnswer, NotificationComment,
		NotificationVote, NotificationBadge, NotificationFollow:
		return true
	}
	return false
}

// Notification — единственный источник правды о том, какие уведомления есть у
// пользователя. Живой push — только ускорение доставки поверх этой записи.
type Notification struct {
	ID          string            `db:"id"`
	RecipientID int64             `db:"recipient_id"`
	Type        NotificationType  `db:"type"`
	Title       string            `db:"title"`
	Message     string            `db:"message"`
	Link        *string           `db:"link"`
	Payload     map[string]string `db:"payload"`
	IsRead      bool              `db:"is_read"`
	CreatedAt   time.Time         `db:"created_at"`
}
