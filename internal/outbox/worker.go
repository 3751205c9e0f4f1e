package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/presence-service/internal/domain"
)

type Saver interface {
	Save(ctx context.Context, n *domain.Notification) error
}

// Worker дренирует outbox с экспоненциальным backoff-ом при подряд идущих
// отказах storage. Insert идемпотентен по id, так что повторная доставка
// после сбоя безопасна.
type Worker struct {
	outbox *Outbox
	saver  Saver

	interval   time.Duration
	maxBackoff time.Duration
	batchSize  int
}

func NewWorker(outbox *Outbox, saver Saver, interval, maxBackoff time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 2 * time.Minute
	}
	return &Worker{
		outbox:     outbox,
		saver:      saver,
		interval:   interval,
		maxBackoff: maxBackoff,
		batchSize:  64,
	}
}

func (w *Worker) Run(ctx context.Context) {
	delay := w.interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if ok := w.drainOnce(ctx); ok {
			delay = w.interval
		} else {
			delay *= 2
			if delay > w.maxBackoff {
				delay = w.maxBackoff
			}
			slog.Warn("outbox drain failed, backing off", "next_attempt_in", delay)
		}
		timer.Reset(delay)
	}
}

// drainOnce возвращает false, если storage всё ещё недоступен.
func (w *Worker) drainOnce(ctx context.Context) bool {
	items, err := w.outbox.NextBatch(w.batchSize)
	if err != nil {
		slog.Error("outbox read", "err", err)
		return false
	}

	for _, item := range items {
		n := item.Notification
		if err := w.saver.Save(ctx, &n); err != nil {
			return false
		}
		if err := w.outbox.Ack(item.Key); err != nil {
			slog.Error("outbox ack", "id", n.ID, "err", err)
			return false
		}
		slog.Info("outbox delivered", "id", n.ID, "recipient", n.RecipientID)
	}
	return true
}
