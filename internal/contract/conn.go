package contract

// Conn — то, что реестры и fan-out знают о живом соединении.
// Реализация живёт в transport/ws.
type Conn interface {
	ID() string
	UserID() int64

	// TrySend ставит сообщение в исходящую очередь без блокировки.
	// Для ClassLossy переполнение — не ошибка (сообщение отброшено),
	// для ClassCritical возвращается domain.ErrQueueOverflow.
	TrySend(msg Message) error

	Close() error
}
