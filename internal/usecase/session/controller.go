// Package session is the façade UI code drives: it wraps the tracking
// coordinator, keeps the resumable route snapshot and exposes the current
// stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"delivery-agent/internal/capture"
	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/persist"
	appErrors "delivery-agent/pkg/errors"
	"delivery-agent/pkg/utils"

	"go.uber.org/zap"
)

const snapshotFormatVersion = 1

// Tracker is the coordinator surface the controller needs.
type Tracker interface {
	StartDelivery(ctx context.Context, route *delivery.Route) error
	StopDelivery(ctx context.Context) error
	UpdateStop(ctx context.Context, stopID string, status delivery.StopStatus, data *delivery.StopData) (bool, error)
	SyncRoute(route *delivery.Route) error
	Active() (*delivery.Route, bool)
}

type Deps struct {
	Tracker    Tracker
	Routes     delivery.RouteService
	Store      delivery.StateStore
	Images     capture.ImageCapturer
	Signatures capture.SignatureCapturer
}

// Callbacks are invoked synchronously after the state they report has been
// applied. They must not call back into the controller.
type Callbacks struct {
	OnStatusChange func(route *delivery.Route, status delivery.RouteStatus)
	OnRouteChange  func(route *delivery.Route)
	OnError        func(err error)
}

type Controller struct {
	tracker    Tracker
	routes     delivery.RouteService
	store      delivery.StateStore
	images     capture.ImageCapturer
	signatures capture.SignatureCapturer
	cb         Callbacks
	log        *zap.Logger

	// ops serialises mutating operations.
	ops sync.Mutex

	mu      sync.RWMutex
	route   *delivery.Route
	current int
	lastErr error
}

// NewController restores any persisted route snapshot. A snapshot that cannot
// be read is discarded and reported through Err.
func NewController(ctx context.Context, deps Deps, cb Callbacks, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Images == nil {
		deps.Images = capture.Unavailable{}
	}
	if deps.Signatures == nil {
		deps.Signatures = capture.Unavailable{}
	}

	c := &Controller{
		tracker:    deps.Tracker,
		routes:     deps.Routes,
		store:      deps.Store,
		images:     deps.Images,
		signatures: deps.Signatures,
		cb:         cb,
		log:        log,
		current:    -1,
	}
	c.restore(ctx)
	return c
}

func (c *Controller) restore(ctx context.Context) {
	var route delivery.Route
	found, err := persist.Load(ctx, c.store, persist.KeyActiveRoute, snapshotFormatVersion, &route)
	switch {
	case errors.Is(err, persist.ErrVersionMismatch):
		c.log.Warn("Discarding route snapshot written in an unknown format", zap.Error(err))
		if err := persist.Delete(ctx, c.store, persist.KeyActiveRoute); err != nil {
			c.log.Error("Failed to delete stale route snapshot", zap.Error(err))
		}
		return
	case err != nil:
		c.log.Error("Failed to restore route snapshot", zap.Error(err))
		c.lastErr = err
		return
	case !found:
		return
	}

	c.route = &route
	c.current = route.CurrentStopIndex()
	c.log.Info("Restored active delivery",
		zap.String("delivery_id", route.ID),
		zap.Int("current_stop", c.current),
	)
}

// Resume re-arms tracking for a restored route. It is a no-op when nothing
// was restored or tracking is already running.
func (c *Controller) Resume(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	route, ok := c.Route()
	if !ok {
		return nil
	}
	if _, active := c.tracker.Active(); active {
		return nil
	}
	if err := c.tracker.StartDelivery(ctx, route); err != nil {
		return c.fail(fmt.Errorf("resume delivery %s: %w", route.ID, err))
	}
	c.log.Info("Resumed delivery tracking", zap.String("delivery_id", route.ID))
	return nil
}

// StartDelivery starts tracking route and makes it the session route.
func (c *Controller) StartDelivery(ctx context.Context, route *delivery.Route) error {
	if route == nil {
		return c.fail(appErrors.NewAppError("VALIDATION_ERROR", "route is required", appErrors.ErrInvalidInput))
	}
	if err := utils.ValidateStruct(route); err != nil {
		return c.fail(appErrors.NewAppError("VALIDATION_ERROR", "Invalid route", fmt.Errorf("%w: %w", appErrors.ErrInvalidInput, err)))
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	if err := c.tracker.StartDelivery(ctx, route); err != nil {
		return c.fail(err)
	}

	active, ok := c.tracker.Active()
	if !ok {
		active = route.Clone()
		active.Status = delivery.RouteInProgress
	}

	c.mu.Lock()
	c.route = active
	c.current = active.CurrentStopIndex()
	c.lastErr = nil
	snapshot := active.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.log.Info("Delivery session started", zap.String("delivery_id", active.ID))
	c.notifyStatus(snapshot, delivery.RouteInProgress)
	return nil
}

// StartByID fetches the route from the delivery service and starts it.
func (c *Controller) StartByID(ctx context.Context, deliveryID string) error {
	if strings.TrimSpace(deliveryID) == "" {
		return c.fail(appErrors.NewAppError("VALIDATION_ERROR", "delivery id is required", appErrors.ErrInvalidInput))
	}
	route, err := c.routes.GetRoute(ctx, deliveryID)
	if err != nil {
		return c.fail(fmt.Errorf("fetch route %s: %w", deliveryID, err))
	}
	return c.StartDelivery(ctx, route)
}

// CompleteDelivery ends the session route.
func (c *Controller) CompleteDelivery(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	if _, ok := c.Route(); !ok {
		return c.fail(appErrors.ErrNoActiveDelivery)
	}
	if err := c.tracker.StopDelivery(ctx); err != nil {
		return c.fail(err)
	}
	c.finish(ctx)
	return nil
}

// UpdateStop reports a stop change through the coordinator, then patches the
// local route without waiting for the server and moves the current stop on.
// A stop already in status is left untouched.
func (c *Controller) UpdateStop(ctx context.Context, stopID string, status delivery.StopStatus, data *delivery.StopData) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	if _, ok := c.Route(); !ok {
		return c.fail(appErrors.ErrNoActiveDelivery)
	}
	if data != nil {
		sanitized := *data
		sanitized.Notes = utils.SanitizeTextPtr(data.Notes)
		data = &sanitized
	}

	routeCompleted, err := c.tracker.UpdateStop(ctx, stopID, status, data)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if idx := c.route.StopIndex(stopID); idx >= 0 && c.route.Stops[idx].Status != status {
		c.route.Stops[idx].Apply(status, data)
	}
	c.current = c.route.CurrentStopIndex()
	snapshot := c.route.Clone()
	c.mu.Unlock()

	if routeCompleted {
		c.finish(ctx)
		return nil
	}
	c.persist(ctx, snapshot)
	c.notifyRoute(snapshot)
	return nil
}

// SkipStop marks a stop failed with reason as its notes.
func (c *Controller) SkipStop(ctx context.Context, stopID, reason string) error {
	return c.UpdateStop(ctx, stopID, delivery.StopFailed, &delivery.StopData{Notes: &reason})
}

// AddStop creates a stop on the server and appends the server's copy.
func (c *Controller) AddStop(ctx context.Context, stop delivery.Stop) (*delivery.Stop, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	route, ok := c.Route()
	if !ok {
		return nil, c.fail(appErrors.ErrNoActiveDelivery)
	}
	if strings.TrimSpace(stop.CustomerRef) == "" {
		return nil, c.fail(appErrors.NewAppError("VALIDATION_ERROR", "customerRef is required", appErrors.ErrInvalidInput))
	}
	if stop.Status == "" {
		stop.Status = delivery.StopPending
	}

	created, err := c.routes.AddStop(ctx, route.ID, stop)
	if err != nil {
		return nil, c.fail(fmt.Errorf("add stop to %s: %w", route.ID, err))
	}

	stops := append(route.Stops, *created)
	c.replaceStops(ctx, route.ID, stops)
	return created, nil
}

// ReorderStops asks the server to reorder and then applies the same order
// locally. Unknown or missing ids are rejected before calling the server.
func (c *Controller) ReorderStops(ctx context.Context, stopIDs []string) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	route, ok := c.Route()
	if !ok {
		return c.fail(appErrors.ErrNoActiveDelivery)
	}
	reordered, ok := route.Reorder(stopIDs)
	if !ok {
		return c.fail(appErrors.NewAppError("VALIDATION_ERROR", "stopIds must list every stop exactly once", appErrors.ErrInvalidInput))
	}

	if err := c.routes.ReorderStops(ctx, route.ID, stopIDs); err != nil {
		return c.fail(fmt.Errorf("reorder stops of %s: %w", route.ID, err))
	}
	c.replaceStops(ctx, route.ID, reordered)
	return nil
}

// OptimizeRoute replaces the local stop sequence with the server's
// optimized one.
func (c *Controller) OptimizeRoute(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	route, ok := c.Route()
	if !ok {
		return c.fail(appErrors.ErrNoActiveDelivery)
	}
	optimized, err := c.routes.OptimizeRoute(ctx, route.ID)
	if err != nil {
		return c.fail(fmt.Errorf("optimize route %s: %w", route.ID, err))
	}
	if optimized == nil || optimized.ID != route.ID {
		return c.fail(fmt.Errorf("optimize route %s: server returned a different route", route.ID))
	}
	c.replaceStops(ctx, route.ID, optimized.Stops)
	return nil
}

func (c *Controller) CapturePhoto(ctx context.Context) (string, error) {
	handle, err := c.images.CaptureImage(ctx)
	if err != nil {
		return "", c.fail(err)
	}
	return handle, nil
}

func (c *Controller) CaptureSignature(ctx context.Context) (string, error) {
	handle, err := c.signatures.CaptureSignature(ctx)
	if err != nil {
		return "", c.fail(err)
	}
	return handle, nil
}

// Route returns a copy of the session route.
func (c *Controller) Route() (*delivery.Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.route == nil {
		return nil, false
	}
	return c.route.Clone(), true
}

// CurrentStop returns the first stop, in route order, still pending or in
// progress.
func (c *Controller) CurrentStop() (*delivery.Stop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.route == nil || c.current < 0 || c.current >= len(c.route.Stops) {
		return nil, false
	}
	stop := c.route.Clone().Stops[c.current]
	return &stop, true
}

// Err returns the last error surfaced to the UI; a successful start clears it.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Controller) replaceStops(ctx context.Context, routeID string, stops []delivery.Stop) {
	c.mu.Lock()
	if c.route == nil || c.route.ID != routeID {
		c.mu.Unlock()
		return
	}
	c.route.Stops = (&delivery.Route{Stops: stops}).Clone().Stops
	c.current = c.route.CurrentStopIndex()
	snapshot := c.route.Clone()
	c.mu.Unlock()

	if err := c.tracker.SyncRoute(snapshot); err != nil {
		c.log.Debug("Coordinator not tracking, route change kept locally",
			zap.String("delivery_id", routeID), zap.Error(err))
	}
	c.persist(ctx, snapshot)
	c.notifyRoute(snapshot)
}

// finish clears the session route after completion and reports it.
func (c *Controller) finish(ctx context.Context) {
	c.mu.Lock()
	final := c.route
	c.route, c.current = nil, -1
	c.mu.Unlock()
	if final == nil {
		return
	}
	final.Status = delivery.RouteCompleted

	c.persist(ctx, nil)
	c.log.Info("Delivery session completed", zap.String("delivery_id", final.ID))
	c.notifyStatus(final, delivery.RouteCompleted)
}

// persist writes the snapshot, or deletes it when route is nil. Failures are
// reported through OnError but do not fail the operation.
func (c *Controller) persist(ctx context.Context, route *delivery.Route) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if route == nil {
		err = persist.Delete(ctx, c.store, persist.KeyActiveRoute)
	} else {
		err = persist.Save(ctx, c.store, persist.KeyActiveRoute, snapshotFormatVersion, route)
	}
	if err != nil {
		c.log.Error("Failed to persist route snapshot", zap.Error(err))
		c.notifyError(err)
	}
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.log.Warn("Session operation failed", zap.Error(err))
	c.notifyError(err)
	return err
}

func (c *Controller) notifyStatus(route *delivery.Route, status delivery.RouteStatus) {
	if c.cb.OnStatusChange != nil {
		c.cb.OnStatusChange(route, status)
	}
	c.notifyRoute(route)
}

func (c *Controller) notifyRoute(route *delivery.Route) {
	if c.cb.OnRouteChange != nil {
		c.cb.OnRouteChange(route)
	}
}

func (c *Controller) notifyError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
