package location

import (
	"fmt"
	"slices"
	"sync"

	"delivery-agent/internal/domain/delivery"

	"go.uber.org/zap"
)

// Listener receives every new location sample.
type Listener func(delivery.LocationSample)

// Bus fans samples out to subscribers. Both producers publish into the same
// bus so consumers see one merged stream.
type Bus struct {
	log *zap.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it. The
// returned function is safe to call more than once.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers s to every listener. A panicking listener is logged and
// does not stop delivery to the others.
func (b *Bus) Publish(s delivery.LocationSample) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	// Deliver in subscription order.
	slices.Sort(ids)
	for _, id := range ids {
		b.mu.RLock()
		l, ok := b.listeners[id]
		b.mu.RUnlock()
		if !ok {
			continue
		}
		b.notify(id, l, s)
	}
}

func (b *Bus) notify(id int, l Listener, s delivery.LocationSample) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Location listener failed",
				zap.Int("listener", id),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	l(s)
}

// Len returns the number of subscribed listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
