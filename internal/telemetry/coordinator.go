package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"

	"go.uber.org/zap"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// LocationSource is what the coordinator needs from the location layer.
type LocationSource interface {
	StartTracking(ctx context.Context) error
	StopTracking()
	CurrentLocation(ctx context.Context) (delivery.LocationSample, error)
	Latest() (delivery.LocationSample, bool)
}

type Config struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

type Option func(*Coordinator)

// WithWait replaces the backoff sleep. The function must return early with
// an error when ctx is done.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.wait = wait }
}

// WithClock replaces time.Now for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the single active delivery and its telemetry loop. At
// most one route is tracked at a time.
type Coordinator struct {
	api      delivery.TelemetryAPI
	location LocationSource
	queue    *Queue
	online   delivery.Connectivity
	metrics  *MetricsTracker
	log      *zap.Logger
	wait     func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	// lifecycle serialises StartDelivery, StopDelivery and Shutdown.
	lifecycle sync.Mutex

	mu         sync.Mutex
	cfg        Config
	route      *delivery.Route
	stopTicker context.CancelFunc
	tickerDone chan struct{}
	resetTick  chan time.Duration
}

func NewCoordinator(
	api delivery.TelemetryAPI,
	location LocationSource,
	queue *Queue,
	online delivery.Connectivity,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Coordinator{
		api:       api,
		location:  location,
		queue:     queue,
		online:    online,
		metrics:   queue.metrics,
		log:       log,
		wait:      sleepContext,
		now:       time.Now,
		cfg:       cfg,
		resetTick: make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartDelivery makes route the active delivery and starts its telemetry
// loop. It fails with ErrAlreadyTracking while another route is active.
func (c *Coordinator) StartDelivery(ctx context.Context, route *delivery.Route) error {
	if route == nil || route.ID == "" {
		return appErrors.NewAppError("VALIDATION_ERROR", "route id is required", appErrors.ErrInvalidInput)
	}
	if err := delivery.ValidateRouteTransition(route.Status, delivery.RouteInProgress); err != nil {
		return err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.route != nil {
		activeID := c.route.ID
		c.mu.Unlock()
		return appErrors.NewAppError(
			"ALREADY_TRACKING",
			fmt.Sprintf("Delivery %s is already being tracked", activeID),
			appErrors.ErrAlreadyTracking,
		)
	}
	active := route.Clone()
	active.Status = delivery.RouteInProgress
	c.route = active
	interval := c.cfg.Interval
	c.mu.Unlock()

	if err := c.location.StartTracking(ctx); err != nil {
		c.mu.Lock()
		c.route = nil
		c.mu.Unlock()
		return fmt.Errorf("start location tracking: %w", err)
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.stopTicker, c.tickerDone = cancel, done
	c.mu.Unlock()
	go c.runTicker(tickCtx, interval, done)

	c.log.Info("Delivery tracking started",
		zap.String("delivery_id", active.ID),
		zap.Int("stops", len(active.Stops)),
		zap.Duration("interval", interval),
	)

	c.pushStatus(ctx, active.ID, delivery.RouteInProgress)
	c.FlushQueue(ctx)
	return nil
}

// StopDelivery ends the active delivery: it disarms the timer, pushes the
// final completed status, stops location tracking and makes one last flush
// attempt. Calling it with nothing active is a no-op.
func (c *Coordinator) StopDelivery(ctx context.Context) error {
	c.stopDelivery(ctx)
	return nil
}

func (c *Coordinator) stopDelivery(ctx context.Context) bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	route := c.route
	if route == nil {
		c.mu.Unlock()
		return false
	}
	c.route = nil
	c.mu.Unlock()

	c.disarm()
	c.pushStatus(ctx, route.ID, delivery.RouteCompleted)
	c.location.StopTracking()
	c.FlushQueue(ctx)

	c.log.Info("Delivery tracking stopped", zap.String("delivery_id", route.ID))
	return true
}

// Shutdown stops the timer and location tracking without ending the
// delivery, so a restarted process can resume it.
func (c *Coordinator) Shutdown() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	armed := c.stopTicker != nil
	c.mu.Unlock()
	if !armed {
		return
	}
	c.disarm()
	c.location.StopTracking()
	c.log.Info("Delivery tracking suspended for shutdown")
}

func (c *Coordinator) disarm() {
	c.mu.Lock()
	cancel, done := c.stopTicker, c.tickerDone
	c.stopTicker, c.tickerDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// UpdateStop reports a stop status change with a fresh location fix. When
// every stop is completed afterwards, the delivery is stopped and
// routeCompleted is true. Reporting the status a stop already has is a
// no-op and sends nothing.
func (c *Coordinator) UpdateStop(ctx context.Context, stopID string, status delivery.StopStatus, data *delivery.StopData) (routeCompleted bool, err error) {
	c.mu.Lock()
	if c.route == nil {
		c.mu.Unlock()
		return false, appErrors.ErrNoActiveDelivery
	}
	idx := c.route.StopIndex(stopID)
	if idx < 0 {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %s", appErrors.ErrStopNotFound, stopID)
	}
	routeID := c.route.ID
	current := c.route.Stops[idx].Status
	c.mu.Unlock()

	if err := delivery.ValidateStopTransition(current, status); err != nil {
		return false, err
	}
	if current == status {
		c.log.Debug("Stop already in requested status",
			zap.String("delivery_id", routeID),
			zap.String("stop_id", stopID),
			zap.String("status", string(status)),
		)
		return false, nil
	}

	loc, err := c.location.CurrentLocation(ctx)
	if err != nil {
		return false, fmt.Errorf("update stop %s: %w", stopID, err)
	}

	u := delivery.NewStopUpdate(routeID, stopID, status, loc, data, c.now())
	c.sendUpdate(ctx, u)

	c.mu.Lock()
	if c.route == nil || c.route.ID != routeID {
		c.mu.Unlock()
		return false, nil
	}
	if idx := c.route.StopIndex(stopID); idx >= 0 {
		c.route.Stops[idx].Apply(status, data)
	}
	allDone := c.route.AllStopsCompleted()
	c.mu.Unlock()

	c.log.Info("Stop updated",
		zap.String("delivery_id", routeID),
		zap.String("stop_id", stopID),
		zap.String("status", string(status)),
	)

	if !allDone {
		return false, nil
	}
	c.log.Info("All stops completed", zap.String("delivery_id", routeID))
	return c.stopDelivery(ctx), nil
}

// SyncRoute replaces the stop list of the active route after the routing
// service changed it.
func (c *Coordinator) SyncRoute(route *delivery.Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.route == nil || route == nil || c.route.ID != route.ID {
		return appErrors.ErrNoActiveDelivery
	}
	c.route.Stops = route.Clone().Stops
	return nil
}

// Active returns a copy of the active route.
func (c *Coordinator) Active() (*delivery.Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.route == nil {
		return nil, false
	}
	return c.route.Clone(), true
}

// SetInterval changes the telemetry period; a running timer picks it up on
// its next cycle.
func (c *Coordinator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.cfg.Interval = d
	c.mu.Unlock()

	select {
	case c.resetTick <- d:
	default:
	}
}

// FlushQueue replays the offline queue unless the device is offline.
func (c *Coordinator) FlushQueue(ctx context.Context) {
	if !c.isOnline(ctx) {
		c.log.Debug("Offline, skipping queue flush", zap.Int("queue_depth", c.queue.Len()))
		return
	}
	c.queue.Flush(ctx, c.api.SendUpdate)
}

func (c *Coordinator) Metrics() Metrics {
	return c.metrics.Snapshot()
}

func (c *Coordinator) runTicker(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.resetTick:
			ticker.Reset(d)
		case <-ticker.C:
			c.sendLocationUpdate(ctx)
		}
	}
}

// sendLocationUpdate is the periodic tick. Location failures skip the tick.
func (c *Coordinator) sendLocationUpdate(ctx context.Context) {
	c.mu.Lock()
	if c.route == nil {
		c.mu.Unlock()
		return
	}
	routeID, status := c.route.ID, c.route.Status
	c.mu.Unlock()

	loc, ok := c.location.Latest()
	if !ok {
		var err error
		loc, err = c.location.CurrentLocation(ctx)
		if err != nil {
			c.log.Warn("No location fix, skipping telemetry tick",
				zap.String("delivery_id", routeID),
				zap.Error(err),
			)
			c.metrics.Update(func(m *Metrics) {
				m.TicksSkipped++
			})
			return
		}
	}

	c.sendUpdate(ctx, delivery.NewRouteUpdate(routeID, status, loc, c.now()))
}

// sendUpdate posts u, retrying with exponential backoff (RetryDelay * 2^n).
// Once MaxRetries is exhausted, or as soon as the device is offline, the
// update goes to the offline queue instead. It reports whether u was
// delivered.
func (c *Coordinator) sendUpdate(ctx context.Context, u delivery.Update) bool {
	c.mu.Lock()
	maxRetries, baseDelay := c.cfg.MaxRetries, c.cfg.RetryDelay
	c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		err := c.api.SendUpdate(ctx, u)
		if err == nil {
			c.metrics.Update(func(m *Metrics) {
				m.UpdatesSent++
				m.LastSentAt = c.now()
			})
			return true
		}

		c.metrics.Update(func(m *Metrics) {
			m.SendFailures++
		})
		c.log.Warn("Telemetry send failed",
			zap.String("update_id", u.ID),
			zap.String("delivery_id", u.DeliveryID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt >= maxRetries || !c.isOnline(ctx) {
			c.enqueue(ctx, u)
			return false
		}

		delay := baseDelay * time.Duration(1<<attempt)
		c.metrics.Update(func(m *Metrics) {
			m.Retries++
		})
		c.log.Debug("Retrying telemetry send", zap.String("update_id", u.ID), zap.Duration("delay", delay))
		if err := c.wait(ctx, delay); err != nil {
			c.enqueue(ctx, u)
			return false
		}
	}
}

func (c *Coordinator) enqueue(ctx context.Context, u delivery.Update) {
	// The queue keeps u in memory even if persisting fails; the error is
	// already logged there.
	_ = c.queue.Enqueue(context.WithoutCancel(ctx), u)
}

func (c *Coordinator) pushStatus(ctx context.Context, deliveryID string, status delivery.RouteStatus) {
	if err := c.api.UpdateStatus(ctx, deliveryID, status); err != nil {
		c.metrics.Update(func(m *Metrics) {
			m.StatusPushFailures++
		})
		c.log.Warn("Failed to push route status",
			zap.String("delivery_id", deliveryID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) isOnline(ctx context.Context) bool {
	if c.online == nil {
		return true
	}
	return c.online.IsOnline(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
