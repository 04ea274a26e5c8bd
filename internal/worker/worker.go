package worker

import (
	"context"
	"time"

	"pos-ledger/internal/replication"
	"pos-ledger/internal/store"
	"pos-ledger/internal/util"

	"go.uber.org/zap"
)

// RetrySweeper periodically drains the replication spool and retries
// delivery. Entries leave the spool only after a confirmed resend.
type RetrySweeper struct {
	spool      store.SpoolStore
	dispatcher *replication.Dispatcher
	interval   time.Duration
	logger     *zap.Logger
	stop       chan struct{}
}

// NewRetrySweeper creates a sweeper with the given sweep interval.
func NewRetrySweeper(spool store.SpoolStore, dispatcher *replication.Dispatcher, interval time.Duration) *RetrySweeper {
	return &RetrySweeper{
		spool:      spool,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     util.GetLogger(),
		stop:       make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.
func (w *RetrySweeper) Start(ctx context.Context) error {
	w.logger.Info("Starting replication retry sweeper",
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Stop terminates the sweep loop.
func (w *RetrySweeper) Stop() {
	w.logger.Info("Stopping replication retry sweeper")
	close(w.stop)
}

// Sweep retries every pending spool entry once.
func (w *RetrySweeper) Sweep(ctx context.Context) {
	entries, err := w.spool.Pending(ctx)
	if err != nil {
		w.logger.Error("Failed to read replication spool", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}

	w.logger.Info("Retrying spooled replication payloads", zap.Int("pending", len(entries)))

	for _, entry := range entries {
		if err := w.dispatcher.Deliver(ctx, entry.SheetName, entry.Payload); err != nil {
			util.SpoolRetriesTotal.WithLabelValues("failed").Inc()
			w.logger.Warn("Spool retry failed",
				zap.Int64("spool_id", entry.ID),
				zap.String("sheet", entry.SheetName),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))
			if err := w.spool.MarkFailed(ctx, entry.ID, err.Error()); err != nil {
				w.logger.Error("Failed to update spool entry", zap.Int64("spool_id", entry.ID), zap.Error(err))
			}
			continue
		}

		util.SpoolRetriesTotal.WithLabelValues("delivered").Inc()
		if err := w.spool.Delete(ctx, entry.ID); err != nil {
			w.logger.Error("Failed to remove delivered spool entry",
				zap.Int64("spool_id", entry.ID), zap.Error(err))
		}
	}
}
