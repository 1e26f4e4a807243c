package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "marketpipe/internal/domain/entity/marketdata"
	interfaces "marketpipe/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// BatchConfig controls batching thresholds for snapshot persistence.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// SnapshotWriter buffers order book snapshots and flushes them to the
// repository in batches, by size or by timeout, whichever comes first.
type SnapshotWriter struct {
	cfg    BatchConfig
	repo   interfaces.MarketDataRepository
	logger *logrus.Entry

	mu    sync.Mutex
	items []domain.OrderBookSnapshot
	timer *time.Timer
	ctx   context.Context
}

func NewSnapshotWriter(cfg BatchConfig, repo interfaces.MarketDataRepository, logger *logrus.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		cfg:    cfg,
		repo:   repo,
		logger: logger.WithField("component", "snapshot_writer"),
	}
}

// Run sets the base context for asynchronous flush operations.
func (w *SnapshotWriter) Run(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	w.ctx = ctx
}

// Add appends a snapshot to the buffer, flushing when the batch is full.
func (w *SnapshotWriter) Add(snapshot *domain.OrderBookSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}
	w.mu.Lock()
	ctx := w.ctx
	if ctx == nil {
		w.mu.Unlock()
		return errors.New("snapshot writer is not running")
	}
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.items = append(w.items, *snapshot)
	var batch []domain.OrderBookSnapshot
	limit := w.cfg.Size
	if limit <= 0 {
		limit = 1
	}
	if len(w.items) >= limit {
		batch = w.takeBatchLocked()
	} else if w.timer == nil && w.cfg.Timeout > 0 {
		w.startTimerLocked()
	}
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return w.flush(ctx, batch)
}

// Stop flushes whatever remains using the provided context.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	batch := w.takeBatch()
	if len(batch) == 0 {
		return nil
	}
	return w.flush(ctx, batch)
}

func (w *SnapshotWriter) startTimerLocked() {
	w.timer = time.AfterFunc(w.cfg.Timeout, func() {
		batch := w.takeBatch()
		if len(batch) == 0 {
			return
		}
		w.mu.Lock()
		ctx := w.ctx
		w.mu.Unlock()
		if err := w.flush(ctx, batch); err != nil {
			w.logger.WithError(err).Warn("snapshot batch flush failed")
		}
	})
}

func (w *SnapshotWriter) takeBatch() []domain.OrderBookSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.takeBatchLocked()
}

func (w *SnapshotWriter) takeBatchLocked() []domain.OrderBookSnapshot {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.items) == 0 {
		return nil
	}
	batch := make([]domain.OrderBookSnapshot, len(w.items))
	copy(batch, w.items)
	w.items = w.items[:0]
	return batch
}

func (w *SnapshotWriter) flush(ctx context.Context, batch []domain.OrderBookSnapshot) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := w.repo.AddOrderBookSnapshots(ctx, batch); err != nil {
		return err
	}
	w.logger.WithFields(logrus.Fields{
		"size":    len(batch),
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("flushed snapshot batch")
	return nil
}
