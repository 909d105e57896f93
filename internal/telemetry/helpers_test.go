package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return nil, delivery.ErrStateNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *memStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type fakeAPI struct {
	mu       sync.Mutex
	fail     func(attempt int, u delivery.Update) error
	attempts int
	sent     []delivery.Update
	statuses []delivery.RouteStatus
}

func (a *fakeAPI) SendUpdate(_ context.Context, u delivery.Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	if a.fail != nil {
		if err := a.fail(a.attempts, u); err != nil {
			return err
		}
	}
	a.sent = append(a.sent, u)
	return nil
}

func (a *fakeAPI) UpdateStatus(_ context.Context, _ string, status delivery.RouteStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses = append(a.statuses, status)
	return nil
}

func (a *fakeAPI) setFail(fn func(attempt int, u delivery.Update) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = fn
}

func (a *fakeAPI) sentUpdates() []delivery.Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]delivery.Update(nil), a.sent...)
}

func (a *fakeAPI) attemptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func (a *fakeAPI) routeStatuses() []delivery.RouteStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]delivery.RouteStatus(nil), a.statuses...)
}

func alwaysFail(int, delivery.Update) error {
	return &appErrors.NetworkError{Op: "send update", StatusCode: 503}
}

type fakeLocation struct {
	mu       sync.Mutex
	sample   delivery.LocationSample
	latest   bool
	fixErr   error
	startErr error
	tracking bool
	stops    int
}

func newFakeLocation() *fakeLocation {
	return &fakeLocation{
		sample: delivery.LocationSample{Latitude: 52.52, Longitude: 13.405, TimestampMs: 1700000000000, Accuracy: 4},
	}
}

func (l *fakeLocation) StartTracking(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return l.startErr
	}
	l.tracking = true
	return nil
}

func (l *fakeLocation) StopTracking() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracking = false
	l.stops++
}

func (l *fakeLocation) CurrentLocation(context.Context) (delivery.LocationSample, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fixErr != nil {
		return delivery.LocationSample{}, l.fixErr
	}
	return l.sample, nil
}

func (l *fakeLocation) Latest() (delivery.LocationSample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sample, l.latest
}

func (l *fakeLocation) isTracking() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracking
}

type onlineFunc func() bool

func (f onlineFunc) IsOnline(context.Context) bool { return f() }

// recordedWait captures backoff delays instead of sleeping.
type recordedWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *recordedWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *recordedWait) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

func testRoute() *delivery.Route {
	return &delivery.Route{
		ID: "R1",
		Stops: []delivery.Stop{
			{ID: "S1", Status: delivery.StopPending},
			{ID: "S2", Status: delivery.StopPending},
		},
	}
}

func testUpdate(id string) delivery.Update {
	return delivery.Update{ID: id, DeliveryID: "R1", Status: "in_progress", Timestamp: 1}
}

var errBoom = errors.New("boom")
