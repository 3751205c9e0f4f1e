package postgres

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// listCursor фиксирует позицию в выдаче уведомлений: (created_at, id)
// последней отданной записи. Токен непрозрачен для клиента.
type listCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func (c listCursor) encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeListCursor: пустая строка — первая страница. id обязан быть uuid:
// курсор с чужим форматом id (подделка, токен от другого API) отклоняется
// сразу, а не уходит в SQL-сравнение.
func decodeListCursor(s string) (*listCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c listCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.CreatedAt.IsZero() || uuid.Validate(c.ID) != nil {
		return nil, fmt.Errorf("%w: bad position", ErrInvalidCursor)
	}
	return &c, nil
}
