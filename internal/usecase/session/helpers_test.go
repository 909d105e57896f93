package session

import (
	"context"
	"sync"
	"testing"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/infrastructure/filestore"
	appErrors "delivery-agent/pkg/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeTracker mimics the coordinator's state machine without telemetry.
type fakeTracker struct {
	mu     sync.Mutex
	active *delivery.Route
	starts int
	syncs  int
}

func (f *fakeTracker) StartDelivery(_ context.Context, route *delivery.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return appErrors.NewAppError("ALREADY_TRACKING", "already tracking", appErrors.ErrAlreadyTracking)
	}
	f.starts++
	f.active = route.Clone()
	f.active.Status = delivery.RouteInProgress
	return nil
}

func (f *fakeTracker) StopDelivery(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = nil
	return nil
}

func (f *fakeTracker) UpdateStop(_ context.Context, stopID string, status delivery.StopStatus, data *delivery.StopData) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return false, appErrors.ErrNoActiveDelivery
	}
	idx := f.active.StopIndex(stopID)
	if idx < 0 {
		return false, appErrors.ErrStopNotFound
	}
	if err := delivery.ValidateStopTransition(f.active.Stops[idx].Status, status); err != nil {
		return false, err
	}
	if f.active.Stops[idx].Status == status {
		return false, nil
	}
	f.active.Stops[idx].Apply(status, data)
	if f.active.AllStopsCompleted() {
		f.active = nil
		return true, nil
	}
	return false, nil
}

func (f *fakeTracker) SyncRoute(route *delivery.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil || f.active.ID != route.ID {
		return appErrors.ErrNoActiveDelivery
	}
	f.syncs++
	f.active.Stops = route.Clone().Stops
	return nil
}

func (f *fakeTracker) Active() (*delivery.Route, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil, false
	}
	return f.active.Clone(), true
}

type statusEvent struct {
	route  *delivery.Route
	status delivery.RouteStatus
}

type recorder struct {
	mu       sync.Mutex
	statuses []statusEvent
	routes   int
	errs     []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStatusChange: func(route *delivery.Route, status delivery.RouteStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, statusEvent{route, status})
		},
		OnRouteChange: func(*delivery.Route) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.routes++
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func newMemStore(t *testing.T) *filestore.Store {
	t.Helper()
	store, err := filestore.New(afero.NewMemMapFs(), "/state", zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func routeR1() *delivery.Route {
	return &delivery.Route{
		ID:     "R1",
		Status: delivery.RouteNotStarted,
		Stops: []delivery.Stop{
			{ID: "S1", Status: delivery.StopPending},
			{ID: "S2", Status: delivery.StopPending},
		},
	}
}

func stopIDs(route *delivery.Route) []string {
	ids := make([]string, len(route.Stops))
	for i, s := range route.Stops {
		ids[i] = s.ID
	}
	return ids
}
