package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwrk-planet/presence-service/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

// Outbox — durable-очередь уведомлений, которые не удалось записать в
// Postgres. Живёт в BadgerDB рядом с процессом; ключи упорядочены по
// времени постановки, значение — JSON-снимок записи.
type Outbox struct {
	db *badger.DB
}

type Item struct {
	Key          []byte
	Notification domain.Notification
}

func New(db *badger.DB) *Outbox {
	return &Outbox{db: db}
}

// Open открывает badger в dir; пустая dir — in-memory (тесты).
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}

func key(n *domain.Notification) []byte {
	return []byte(fmt.Sprintf("outbox:pending:%d:%s", time.Now().UnixNano(), n.ID))
}

func (o *Outbox) Enqueue(n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(n), data)
	})
}

// NextBatch отдаёт до limit записей в порядке постановки, не снимая их:
// запись уходит из очереди только явным Ack после успешного insert-а.
func (o *Outbox) NextBatch(limit int) ([]Item, error) {
	var items []Item
	prefix := []byte("outbox:pending:")

	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = limit

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(items) < limit; it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			err := item.Value(func(v []byte) error {
				var n domain.Notification
				if err := json.Unmarshal(v, &n); err != nil {
					return fmt.Errorf("unmarshal outbox item: %w", err)
				}
				items = append(items, Item{Key: k, Notification: n})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("outbox batch fetch: %w", err)
	}
	return items, nil
}

func (o *Outbox) Ack(key []byte) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Len — число ожидающих записей (диагностика и тесты).
func (o *Outbox) Len() (int, error) {
	count := 0
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("outbox:pending:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
