package telemetry

import (
	"context"
	"errors"
	"sync"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/persist"

	"go.uber.org/zap"
)

const queueFormatVersion = 1

// ReplayOrder decides where updates whose replay failed end up.
type ReplayOrder string

const (
	// ReplayPreserve keeps failed replays ahead of anything enqueued while
	// the flush was running, in their original relative order.
	ReplayPreserve ReplayOrder = "preserve"
	// ReplayAppend re-appends failed replays behind newer arrivals.
	ReplayAppend ReplayOrder = "append"
)

// SendFunc delivers one update. A nil error removes it from the queue.
type SendFunc func(ctx context.Context, u delivery.Update) error

type QueueConfig struct {
	MaxSize     int // 0 means unbounded
	ReplayOrder ReplayOrder
}

// Queue is the durable offline buffer of telemetry updates. The whole
// sequence is rewritten under one key on every mutation.
type Queue struct {
	store   delivery.StateStore
	cfg     QueueConfig
	log     *zap.Logger
	metrics *MetricsTracker

	mu       sync.Mutex
	items    []delivery.Update
	inflight []delivery.Update // snapshot being replayed by Flush

	flushMu sync.Mutex
}

func NewQueue(store delivery.StateStore, cfg QueueConfig, metrics *MetricsTracker, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetricsTracker()
	}
	if cfg.ReplayOrder == "" {
		cfg.ReplayOrder = ReplayPreserve
	}
	return &Queue{store: store, cfg: cfg, log: log, metrics: metrics}
}

// LoadPersisted restores updates queued before a restart. A blob written in
// an unknown format is discarded rather than failing startup.
func (q *Queue) LoadPersisted(ctx context.Context) ([]delivery.Update, error) {
	var stored []delivery.Update
	found, err := persist.Load(ctx, q.store, persist.KeyOfflineQueue, queueFormatVersion, &stored)
	if errors.Is(err, persist.ErrVersionMismatch) {
		q.log.Warn("Discarding offline queue written in an unknown format", zap.Error(err))
		found, err = false, persist.Delete(ctx, q.store, persist.KeyOfflineQueue)
	}
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if found {
		q.items = append(stored, q.items...)
		q.trimLocked()
	}
	q.publishDepthLocked()
	q.log.Info("Offline queue loaded", zap.Int("queue_depth", len(q.items)))
	return append([]delivery.Update(nil), q.items...), nil
}

// Enqueue appends u and persists the full queue before returning. The
// update stays queued in memory even when persisting fails.
func (q *Queue) Enqueue(ctx context.Context, u delivery.Update) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, u)
	q.trimLocked()
	q.metrics.Update(func(m *Metrics) {
		m.UpdatesQueued++
	})
	q.publishDepthLocked()

	q.log.Info("Telemetry update queued for later delivery",
		zap.String("update_id", u.ID),
		zap.String("delivery_id", u.DeliveryID),
		zap.Int("queue_depth", len(q.inflight)+len(q.items)),
	)
	return q.persistLocked(ctx)
}

// Flush replays every queued update once, in order. Successful sends are
// removed; failures stay queued according to the replay order. Errors are
// logged per item so one bad update cannot block the rest.
func (q *Queue) Flush(ctx context.Context, send SendFunc) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	q.inflight, q.items = q.items, nil
	batch := q.inflight
	q.mu.Unlock()

	q.log.Info("Flushing offline queue", zap.Int("queue_depth", len(batch)))

	var failed []delivery.Update
	for i, u := range batch {
		if err := ctx.Err(); err != nil {
			failed = append(failed, batch[i:]...)
			break
		}
		if err := send(ctx, u); err != nil {
			q.log.Warn("Replay of queued update failed",
				zap.String("update_id", u.ID),
				zap.String("delivery_id", u.DeliveryID),
				zap.Error(err),
			)
			failed = append(failed, u)
			q.metrics.Update(func(m *Metrics) {
				m.FlushFailures++
			})
			continue
		}
		q.metrics.Update(func(m *Metrics) {
			m.UpdatesFlushed++
		})
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	arrived := q.items
	switch q.cfg.ReplayOrder {
	case ReplayAppend:
		q.items = append(arrived, failed...)
	default:
		q.items = append(failed, arrived...)
	}
	q.inflight = nil
	q.trimLocked()
	q.publishDepthLocked()

	// Persist even when the flush was cut short by cancellation.
	_ = q.persistLocked(context.WithoutCancel(ctx))
}

// Len returns the number of queued updates, including any being replayed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight) + len(q.items)
}

// Snapshot returns a copy of the queued updates in queue order.
func (q *Queue) Snapshot() []delivery.Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.allLocked()
}

func (q *Queue) allLocked() []delivery.Update {
	out := make([]delivery.Update, 0, len(q.inflight)+len(q.items))
	out = append(out, q.inflight...)
	return append(out, q.items...)
}

// trimLocked drops the oldest updates beyond MaxSize. While a flush is
// running only arrivals are counted; the batch being replayed is measured
// again when Flush merges failures back in.
func (q *Queue) trimLocked() {
	if q.cfg.MaxSize <= 0 {
		return
	}
	excess := len(q.items) - q.cfg.MaxSize
	if excess <= 0 {
		return
	}
	dropped := q.items[:excess]
	q.items = append([]delivery.Update(nil), q.items[excess:]...)

	q.log.Warn("Offline queue full, dropped oldest updates",
		zap.Int("dropped", len(dropped)),
		zap.Int("max_size", q.cfg.MaxSize),
	)
	q.metrics.Update(func(m *Metrics) {
		m.UpdatesDropped += int64(len(dropped))
	})
}

func (q *Queue) persistLocked(ctx context.Context) error {
	all := q.allLocked()
	if err := persist.Save(ctx, q.store, persist.KeyOfflineQueue, queueFormatVersion, all); err != nil {
		q.log.Error("Failed to persist offline queue", zap.Int("queue_depth", len(all)), zap.Error(err))
		return err
	}
	return nil
}

func (q *Queue) publishDepthLocked() {
	depth := len(q.inflight) + len(q.items)
	q.metrics.Update(func(m *Metrics) {
		m.QueueDepth = depth
	})
}
