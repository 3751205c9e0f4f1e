package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save — upsert по id с DO NOTHING: повторная доставка из outbox после
// оборванной записи не плодит дубликатов.
func (r *NotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, link, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Link, n.Payload, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List возвращает уведомления пользователя новые-первыми, курсорная
// пагинация (created_at, id DESC).
func (r *NotificationRepository) List(ctx context.Context, userID int64, limit int, cursorStr string) ([]domain.Notification, string, error) {
	cur, err := decodeListCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	const query = `
		SELECT id, recipient_id, type, title, message, link, payload, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2
		       OR (created_at = $2 AND id < $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, userID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message,
			&n.Link, &n.Payload, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		next = listCursor{CreatedAt: last.CreatedAt, ID: last.ID}.encode()
	}
	return out, next, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read=false`,
		userID).Scan(&count)
	return count, err
}

func (r *NotificationRepository) SetRead(ctx context.Context, id string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read=true WHERE id=$1 AND recipient_id=$2`,
		id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) SetAllRead(ctx context.Context, userID int64) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read=true WHERE recipient_id=$1 AND is_read=false`,
		userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id=$1 AND recipient_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) DeleteAll(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE recipient_id=$1`, userID)
	return err
}
