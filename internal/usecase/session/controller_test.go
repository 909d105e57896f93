package session

import (
	"context"
	"errors"
	"testing"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/domain/delivery/mocks"
	"delivery-agent/internal/persist"
	appErrors "delivery-agent/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
)

type controllerFixture struct {
	tracker *fakeTracker
	routes  *mocks.MockRouteService
	store   delivery.StateStore
	rec     *recorder
	ctrl    *Controller
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		tracker: &fakeTracker{},
		routes:  mocks.NewMockRouteService(gomock.NewController(t)),
		store:   newMemStore(t),
		rec:     &recorder{},
	}
	f.ctrl = f.reopen(t)
	return f
}

// reopen builds a new controller over the same store, as after a restart.
func (f *controllerFixture) reopen(t *testing.T) *Controller {
	return NewController(context.Background(), Deps{
		Tracker: f.tracker,
		Routes:  f.routes,
		Store:   f.store,
	}, f.rec.callbacks(), zaptest.NewLogger(t))
}

func TestStartDeliveryPersistsSnapshot(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	route, ok := f.ctrl.Route()
	require.True(t, ok)
	assert.Equal(t, delivery.RouteInProgress, route.Status)
	current, ok := f.ctrl.CurrentStop()
	require.True(t, ok)
	assert.Equal(t, "S1", current.ID)

	require.Len(t, f.rec.statuses, 1)
	assert.Equal(t, delivery.RouteInProgress, f.rec.statuses[0].status)

	restarted := f.reopen(t)
	restored, ok := restarted.Route()
	require.True(t, ok)
	assert.Equal(t, "R1", restored.ID)
	current, ok = restarted.CurrentStop()
	require.True(t, ok)
	assert.Equal(t, "S1", current.ID)
}

func TestStartDeliveryTwiceFails(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	err := f.ctrl.StartDelivery(ctx, routeR1())
	require.ErrorIs(t, err, appErrors.ErrAlreadyTracking)
	assert.ErrorIs(t, f.ctrl.Err(), appErrors.ErrAlreadyTracking)
	require.Len(t, f.rec.errs, 1)
}

func TestStartDeliveryValidatesRoute(t *testing.T) {
	f := newControllerFixture(t)

	invalid := routeR1()
	invalid.ID = ""
	err := f.ctrl.StartDelivery(context.Background(), invalid)
	require.ErrorIs(t, err, appErrors.ErrInvalidInput)

	invalid = routeR1()
	invalid.Stops[1].Status = "lost"
	err = f.ctrl.StartDelivery(context.Background(), invalid)
	require.ErrorIs(t, err, appErrors.ErrInvalidInput)

	assert.Zero(t, f.tracker.starts)
}

func TestStartDeliveryAcceptsStopsWithoutCustomerRef(t *testing.T) {
	f := newControllerFixture(t)

	route := &delivery.Route{
		ID: "R1",
		Stops: []delivery.Stop{
			{ID: "S1", Status: delivery.StopPending},
			{ID: "S2", Status: delivery.StopPending},
		},
	}
	require.NoError(t, f.ctrl.StartDelivery(context.Background(), route))

	active, ok := f.ctrl.Route()
	require.True(t, ok)
	assert.Equal(t, delivery.RouteInProgress, active.Status)
	assert.Equal(t, []string{"S1", "S2"}, stopIDs(active))
	assert.Equal(t, 1, f.tracker.starts)
}

func TestStartByID(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	f.routes.EXPECT().GetRoute(gomock.Any(), "R404").
		Return(nil, &appErrors.NetworkError{Op: "get route", StatusCode: 404})
	err := f.ctrl.StartByID(ctx, "R404")
	require.ErrorIs(t, err, appErrors.ErrNetwork)
	assert.Error(t, f.ctrl.Err())

	f.routes.EXPECT().GetRoute(gomock.Any(), "R1").Return(routeR1(), nil)
	require.NoError(t, f.ctrl.StartByID(ctx, "R1"))
	assert.NoError(t, f.ctrl.Err(), "a successful start clears the error state")

	route, ok := f.ctrl.Route()
	require.True(t, ok)
	assert.Equal(t, "R1", route.ID)
}

func TestUpdateStopWithoutDelivery(t *testing.T) {
	f := newControllerFixture(t)

	err := f.ctrl.UpdateStop(context.Background(), "S1", delivery.StopCompleted, nil)
	assert.ErrorIs(t, err, appErrors.ErrNoActiveDelivery)
}

func TestUpdateStopAdvancesCurrentStop(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	notes := "  left with <b>neighbour</b> "
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopCompleted, &delivery.StopData{
		Notes:  &notes,
		Photos: []string{"img-1"},
	}))

	route, _ := f.ctrl.Route()
	assert.Equal(t, delivery.RouteInProgress, route.Status)
	assert.Equal(t, delivery.StopCompleted, route.Stops[0].Status)
	assert.Equal(t, "left with neighbour", *route.Stops[0].Notes)
	assert.Equal(t, []string{"img-1"}, route.Stops[0].Photos)

	current, ok := f.ctrl.CurrentStop()
	require.True(t, ok)
	assert.Equal(t, "S2", current.ID)

	// Completing again changes nothing.
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopCompleted, &delivery.StopData{Photos: []string{"img-2"}}))
	route, _ = f.ctrl.Route()
	assert.Equal(t, []string{"img-1"}, route.Stops[0].Photos)

	restored, _ := f.reopen(t).Route()
	assert.Equal(t, delivery.StopCompleted, restored.Stops[0].Status)
}

func TestUpdateStopLeavesCallerDataUntouched(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	notes := "<i>back door</i>"
	data := &delivery.StopData{Notes: &notes}
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopInProgress, data))

	assert.Same(t, &notes, data.Notes)
	assert.Equal(t, "<i>back door</i>", notes)
	route, _ := f.ctrl.Route()
	assert.Equal(t, "back door", *route.Stops[0].Notes)
}

func TestRepeatedFailedStopKeepsPhotos(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	data := &delivery.StopData{Photos: []string{"img-1"}}
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopFailed, data))
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopFailed, data))

	route, _ := f.ctrl.Route()
	assert.Equal(t, delivery.StopFailed, route.Stops[0].Status)
	assert.Equal(t, []string{"img-1"}, route.Stops[0].Photos)

	active, _ := f.tracker.Active()
	assert.Equal(t, []string{"img-1"}, active.Stops[0].Photos)
}

func TestSkipStop(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	require.NoError(t, f.ctrl.SkipStop(ctx, "S1", "customer not home"))

	route, _ := f.ctrl.Route()
	assert.Equal(t, delivery.StopFailed, route.Stops[0].Status)
	assert.Equal(t, "customer not home", *route.Stops[0].Notes)
	current, _ := f.ctrl.CurrentStop()
	assert.Equal(t, "S2", current.ID)

	// A failed stop never completes the route.
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S2", delivery.StopCompleted, nil))
	_, ok := f.ctrl.Route()
	assert.True(t, ok)
	_, ok = f.ctrl.CurrentStop()
	assert.False(t, ok)
}

func TestCompletingLastStopFinishesSession(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopCompleted, nil))
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S2", delivery.StopCompleted, nil))

	_, ok := f.ctrl.Route()
	assert.False(t, ok)
	require.Len(t, f.rec.statuses, 2)
	final := f.rec.statuses[1]
	assert.Equal(t, delivery.RouteCompleted, final.status)
	assert.Equal(t, delivery.RouteCompleted, final.route.Status)
	assert.Equal(t, delivery.StopCompleted, final.route.Stops[1].Status)

	_, ok = f.reopen(t).Route()
	assert.False(t, ok, "snapshot is cleared once no route is active")
}

func TestCompleteDelivery(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.CompleteDelivery(ctx), appErrors.ErrNoActiveDelivery)

	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))
	require.NoError(t, f.ctrl.CompleteDelivery(ctx))

	_, ok := f.ctrl.Route()
	assert.False(t, ok)
	_, ok = f.tracker.Active()
	assert.False(t, ok)
	assert.Equal(t, delivery.RouteCompleted, f.rec.statuses[len(f.rec.statuses)-1].status)
}

func TestAddStopAppendsServerCopy(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	f.routes.EXPECT().
		AddStop(gomock.Any(), "R1", delivery.Stop{CustomerRef: "C-300", Status: delivery.StopPending}).
		Return(&delivery.Stop{ID: "S3", CustomerRef: "C-300", Status: delivery.StopPending}, nil)

	created, err := f.ctrl.AddStop(ctx, delivery.Stop{CustomerRef: "C-300"})
	require.NoError(t, err)
	assert.Equal(t, "S3", created.ID)

	route, _ := f.ctrl.Route()
	assert.Equal(t, []string{"S1", "S2", "S3"}, stopIDs(route))
	tracked, _ := f.tracker.Active()
	assert.Equal(t, []string{"S1", "S2", "S3"}, stopIDs(tracked), "coordinator sees the new stop")

	_, err = f.ctrl.AddStop(ctx, delivery.Stop{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestReorderStops(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	// Rejected locally, the service is never called.
	err := f.ctrl.ReorderStops(ctx, []string{"S2", "S9"})
	require.ErrorIs(t, err, appErrors.ErrInvalidInput)

	f.routes.EXPECT().ReorderStops(gomock.Any(), "R1", []string{"S2", "S1"}).Return(nil)
	require.NoError(t, f.ctrl.ReorderStops(ctx, []string{"S2", "S1"}))

	route, _ := f.ctrl.Route()
	assert.Equal(t, []string{"S2", "S1"}, stopIDs(route))
	current, _ := f.ctrl.CurrentStop()
	assert.Equal(t, "S2", current.ID)
	assert.Equal(t, 1, f.tracker.syncs)
}

func TestReorderStopsFailureKeepsLocalOrder(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))

	f.routes.EXPECT().ReorderStops(gomock.Any(), "R1", gomock.Any()).
		Return(&appErrors.NetworkError{Op: "reorder stops", StatusCode: 503})

	err := f.ctrl.ReorderStops(ctx, []string{"S2", "S1"})
	require.ErrorIs(t, err, appErrors.ErrNetwork)

	route, _ := f.ctrl.Route()
	assert.Equal(t, []string{"S1", "S2"}, stopIDs(route))
}

func TestOptimizeRouteReplacesStops(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopCompleted, nil))

	optimized := routeR1()
	optimized.Stops = []delivery.Stop{
		{ID: "S2", Status: delivery.StopPending},
		{ID: "S1", Status: delivery.StopCompleted},
	}
	f.routes.EXPECT().OptimizeRoute(gomock.Any(), "R1").Return(optimized, nil)

	require.NoError(t, f.ctrl.OptimizeRoute(ctx))

	route, _ := f.ctrl.Route()
	assert.Equal(t, []string{"S2", "S1"}, stopIDs(route))
	assert.Equal(t, delivery.RouteInProgress, route.Status, "route status stays local")

	other := routeR1()
	other.ID = "R2"
	f.routes.EXPECT().OptimizeRoute(gomock.Any(), "R1").Return(other, nil)
	assert.Error(t, f.ctrl.OptimizeRoute(ctx))
}

type captureFunc func(ctx context.Context) (string, error)

func (f captureFunc) CaptureImage(ctx context.Context) (string, error)     { return f(ctx) }
func (f captureFunc) CaptureSignature(ctx context.Context) (string, error) { return f(ctx) }

func TestCapture(t *testing.T) {
	rec := &recorder{}
	ok := captureFunc(func(context.Context) (string, error) { return "img-7", nil })
	broken := captureFunc(func(context.Context) (string, error) { return "", errors.New("camera busy") })

	c := NewController(context.Background(), Deps{
		Tracker:    &fakeTracker{},
		Store:      newMemStore(t),
		Images:     ok,
		Signatures: broken,
	}, rec.callbacks(), zaptest.NewLogger(t))

	handle, err := c.CapturePhoto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "img-7", handle)

	_, err = c.CaptureSignature(context.Background())
	assert.ErrorContains(t, err, "camera busy")
	require.Len(t, rec.errs, 1)

	unconfigured := NewController(context.Background(), Deps{Tracker: &fakeTracker{}, Store: newMemStore(t)}, Callbacks{}, nil)
	_, err = unconfigured.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCaptureUnavailable)
}

func TestResumeRearmsTracker(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartDelivery(ctx, routeR1()))
	require.NoError(t, f.ctrl.UpdateStop(ctx, "S1", delivery.StopCompleted, nil))

	// Simulate a restart: a fresh coordinator and a controller over the same store.
	f.tracker = &fakeTracker{}
	restarted := f.reopen(t)

	require.NoError(t, restarted.Resume(ctx))
	require.NoError(t, restarted.Resume(ctx))
	assert.Equal(t, 1, f.tracker.starts)

	tracked, ok := f.tracker.Active()
	require.True(t, ok)
	assert.Equal(t, delivery.StopCompleted, tracked.Stops[0].Status)

	require.NoError(t, restarted.UpdateStop(ctx, "S2", delivery.StopCompleted, nil))
	_, ok = restarted.Route()
	assert.False(t, ok)
}

func TestResumeWithoutSnapshotIsNoop(t *testing.T) {
	f := newControllerFixture(t)
	require.NoError(t, f.ctrl.Resume(context.Background()))
	assert.Zero(t, f.tracker.starts)
}

func TestRestoreDiscardsUnknownSnapshotVersion(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	require.NoError(t, persist.Save(ctx, f.store, persist.KeyActiveRoute, 7, routeR1()))

	c := f.reopen(t)
	_, ok := c.Route()
	assert.False(t, ok)
	assert.NoError(t, c.Err())

	_, err := f.store.Load(ctx, persist.KeyActiveRoute)
	assert.ErrorIs(t, err, delivery.ErrStateNotFound)
}
