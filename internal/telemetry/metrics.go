package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks telemetry delivery.
type Metrics struct {
	UpdatesSent        int64
	UpdatesQueued      int64
	UpdatesFlushed     int64
	UpdatesDropped     int64
	SendFailures       int64
	FlushFailures      int64
	Retries            int64
	TicksSkipped       int64
	StatusPushFailures int64
	QueueDepth         int
	LastSentAt         time.Time
}

// MetricsTracker provides a goroutine-safe wrapper around Metrics.
type MetricsTracker struct {
	mu        sync.RWMutex
	metrics   Metrics
	listeners []func(Metrics)
}

// NewMetricsTracker builds a new tracker with zeroed metrics.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

// Update applies a mutation in a thread-safe way.
func (t *MetricsTracker) Update(fn func(*Metrics)) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.metrics)
	snapshot := t.metrics
	for _, listener := range t.listeners {
		listener(snapshot)
	}
}

// Snapshot returns a copy of the current metrics.
func (t *MetricsTracker) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

// OnChange registers a callback invoked whenever metrics are updated. The
// callback runs with the tracker locked and must not call back into it.
func (t *MetricsTracker) OnChange(listener func(Metrics)) {
	if listener == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// Collector exports a MetricsTracker to Prometheus.
type Collector struct {
	tracker *MetricsTracker

	sent, queued, flushed, dropped       *prometheus.Desc
	sendFailures, flushFailures, retries *prometheus.Desc
	ticksSkipped, statusFailures, depth  *prometheus.Desc
	lastSent                             *prometheus.Desc
}

func NewCollector(namespace string, tracker *MetricsTracker) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "telemetry", name), help, nil, nil)
	}
	return &Collector{
		tracker:        tracker,
		sent:           desc("updates_sent_total", "Telemetry updates delivered on first send or retry."),
		queued:         desc("updates_queued_total", "Telemetry updates handed to the offline queue."),
		flushed:        desc("updates_flushed_total", "Queued updates delivered by a flush."),
		dropped:        desc("updates_dropped_total", "Queued updates evicted because the queue was full."),
		sendFailures:   desc("send_failures_total", "Failed send attempts."),
		flushFailures:  desc("flush_failures_total", "Failed replays of queued updates."),
		retries:        desc("retries_total", "Backoff retries performed."),
		ticksSkipped:   desc("ticks_skipped_total", "Periodic ticks skipped for lack of a location fix."),
		statusFailures: desc("status_push_failures_total", "Route status pushes that failed."),
		depth:          desc("queue_depth", "Updates currently in the offline queue."),
		lastSent:       desc("last_sent_timestamp_seconds", "Unix time of the last delivered update."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.sent, c.queued, c.flushed, c.dropped, c.sendFailures, c.flushFailures,
		c.retries, c.ticksSkipped, c.statusFailures, c.depth, c.lastSent,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.tracker.Snapshot()
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.sent, m.UpdatesSent)
	counter(c.queued, m.UpdatesQueued)
	counter(c.flushed, m.UpdatesFlushed)
	counter(c.dropped, m.UpdatesDropped)
	counter(c.sendFailures, m.SendFailures)
	counter(c.flushFailures, m.FlushFailures)
	counter(c.retries, m.Retries)
	counter(c.ticksSkipped, m.TicksSkipped)
	counter(c.statusFailures, m.StatusPushFailures)
	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(m.QueueDepth))

	var last float64
	if !m.LastSentAt.IsZero() {
		last = float64(m.LastSentAt.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastSent, prometheus.GaugeValue, last)
}
