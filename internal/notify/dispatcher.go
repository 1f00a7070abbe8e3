package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradelane/contract-ledger/internal/core"
)

// Store is the outbox the dispatcher drains.
type Store interface {
	Pending(ctx context.Context, limit int64) ([]core.Notification, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Dispatcher sweeps the outbox on an interval and delivers pending
// notifications in order. Delivery is decoupled from the ledger write: a
// failure marks the entry failed and moves on.
type Dispatcher struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	interval time.Duration
	batch    int64
}

func NewDispatcher(store Store, notifier Notifier, log *slog.Logger, interval time.Duration, batch int64) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{store: store, notifier: notifier, log: log, interval: interval, batch: batch}
}

// Run sweeps until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := d.Sweep(ctx); err != nil {
				d.log.Error("outbox_sweep_failed", "err", err)
			}
		}
	}
}

// Sweep delivers one batch of pending notifications sequentially.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	pending, err := d.store.Pending(ctx, d.batch)
	if err != nil {
		return err
	}
	for _, n := range pending {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.log.Warn("notify_failed", "id", n.ID, "to", n.Recipient, "err", err)
			if err := d.store.MarkFailed(ctx, n.ID, err.Error()); err != nil {
				return err
			}
			continue
		}
		if err := d.store.MarkSent(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}
