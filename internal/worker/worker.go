package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sparkfeed/internal/model"
	"sparkfeed/internal/repository"
)

// LedgerSyncer replays bus events into the durable Postgres journal.
type LedgerSyncer interface {
	SyncLedgerEvent(ctx context.Context, event model.LedgerEvent) error
}

// LedgerWorker listens on the ledger events topic and mirrors every spend
// and credit to the Postgres balances/transactions tables.
type LedgerWorker struct {
	syncer   LedgerSyncer
	natsConn *nats.Conn
}

func NewLedgerWorker(syncer LedgerSyncer, nc *nats.Conn) *LedgerWorker {
	return &LedgerWorker{
		syncer:   syncer,
		natsConn: nc,
	}
}

// Run subscribes to the events topic and blocks until ctx is cancelled.
func (w *LedgerWorker) Run(ctx context.Context) error {
	// QueueSubscribe: each event is delivered to exactly one worker in the
	// group; the idempotency key makes redelivery safe.
	sub, err := w.natsConn.QueueSubscribe(repository.TopicLedgerEvents, "ledger_sync_group", func(m *nats.Msg) {
		var event model.LedgerEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			slog.Error("worker: failed to unmarshal ledger event", "error", err)
			return
		}

		if err := w.syncer.SyncLedgerEvent(ctx, event); err != nil {
			slog.Error("worker: failed to sync ledger event",
				"account_id", event.AccountID,
				"key", event.IdempotencyKey,
				"error", err,
			)
			return
		}

		slog.Info("worker: ledger event synced",
			"account_id", event.AccountID,
			"kind", event.Kind,
			"key", event.IdempotencyKey,
		)
	})
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	slog.Info("Ledger sync worker is running")

	<-ctx.Done()

	slog.Info("Worker received shutdown signal, draining subscription...")
	return sub.Drain()
}

// Start implements the infrastructure.Server interface.
func (w *LedgerWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (shutdown is via ctx).
func (w *LedgerWorker) Stop(ctx context.Context) error {
	return nil
}
