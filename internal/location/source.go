package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultFixTimeout   = 15 * time.Second
)

type Config struct {
	PollInterval time.Duration
	FixTimeout   time.Duration
}

// Source merges the foreground poller and the background tracker into one
// stream of samples and serves one-shot fixes.
type Source struct {
	perms      Permissions
	locator    Locator
	background BackgroundTracker
	bus        *Bus
	cfg        Config
	log        *zap.Logger

	mu       sync.Mutex
	granted  bool
	tracking bool
	cancel   context.CancelFunc
	wg       *conc.WaitGroup

	latestMu  sync.RWMutex
	latest    delivery.LocationSample
	hasLatest bool
}

// NewSource builds a Source. background may be nil when no tracking unit is
// configured; the foreground poller then runs alone.
func NewSource(perms Permissions, locator Locator, background BackgroundTracker, cfg Config, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	if perms == nil {
		perms = StaticPermissions(true)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = DefaultFixTimeout
	}
	return &Source{
		perms:      perms,
		locator:    locator,
		background: background,
		bus:        NewBus(log),
		cfg:        cfg,
		log:        log,
	}
}

// RequestPermission asks for location authorization. Denial and errors both
// yield false.
func (s *Source) RequestPermission(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestLocked(ctx)
}

func (s *Source) requestLocked(ctx context.Context) bool {
	granted, err := s.perms.Request(ctx)
	if err != nil {
		s.log.Warn("Location permission request failed", zap.Error(err))
		granted = false
	}
	s.granted = granted
	return granted
}

// StartTracking starts both producers. It is a no-op while tracking.
func (s *Source) StartTracking(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracking {
		return nil
	}
	if !s.granted && !s.requestLocked(ctx) {
		return appErrors.NewAppError("PERMISSION_DENIED", "Location permission was not granted", appErrors.ErrPermissionDenied)
	}

	s.latestMu.Lock()
	s.latest, s.hasLatest = delivery.LocationSample{}, false
	s.latestMu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	wg := conc.NewWaitGroup()
	if s.locator != nil {
		wg.Go(func() { s.poll(runCtx) })
	}
	if s.background != nil {
		wg.Go(func() {
			if err := s.background.Start(runCtx, s.publish); err != nil {
				s.log.Warn("Background tracking unavailable, continuing with foreground only", zap.Error(err))
			}
		})
	}

	s.tracking, s.cancel, s.wg = true, cancel, wg
	s.log.Info("Location tracking started", zap.Duration("poll_interval", s.cfg.PollInterval))
	return nil
}

// StopTracking tears down both producers. It is a no-op when not tracking.
func (s *Source) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracking {
		return
	}
	s.cancel()
	s.wg.Wait()
	if s.background != nil {
		s.background.Stop()
	}
	s.tracking, s.cancel, s.wg = false, nil, nil
	s.log.Info("Location tracking stopped")
}

// Tracking reports whether the producers are running.
func (s *Source) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// CurrentLocation requests a one-shot fix, independent of the stream. It
// fails with ErrLocationUnavailable when no fix arrives within FixTimeout.
func (s *Source) CurrentLocation(ctx context.Context) (delivery.LocationSample, error) {
	if s.locator == nil {
		return delivery.LocationSample{}, fmt.Errorf("%w: no locator configured", appErrors.ErrLocationUnavailable)
	}

	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.FixTimeout)
	defer cancel()

	type result struct {
		sample delivery.LocationSample
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		sample, err := s.locator.Fix(fixCtx)
		ch <- result{sample, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, appErrors.ErrLocationUnavailable) {
				return delivery.LocationSample{}, r.err
			}
			return delivery.LocationSample{}, fmt.Errorf("%w: %w", appErrors.ErrLocationUnavailable, r.err)
		}
		if err := delivery.ValidateSample(r.sample); err != nil {
			return delivery.LocationSample{}, fmt.Errorf("%w: %w", appErrors.ErrLocationUnavailable, err)
		}
		return r.sample, nil
	case <-fixCtx.Done():
		return delivery.LocationSample{}, fmt.Errorf("%w: no fix within %s", appErrors.ErrLocationUnavailable, s.cfg.FixTimeout)
	}
}

// Subscribe registers l for every sample from either producer.
func (s *Source) Subscribe(l Listener) (unsubscribe func()) {
	return s.bus.Subscribe(l)
}

// Latest returns the most recent streamed sample of the current tracking run.
func (s *Source) Latest() (delivery.LocationSample, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest, s.hasLatest
}

func (s *Source) poll(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Source) pollOnce(ctx context.Context) {
	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.FixTimeout)
	defer cancel()

	sample, err := s.locator.Fix(fixCtx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug("Foreground fix failed", zap.Error(err))
		}
		return
	}
	s.publish(sample)
}

func (s *Source) publish(sample delivery.LocationSample) {
	if err := delivery.ValidateSample(sample); err != nil {
		s.log.Debug("Dropping invalid location sample", zap.String("provider", sample.Provider), zap.Error(err))
		return
	}

	s.latestMu.Lock()
	s.latest, s.hasLatest = sample, true
	s.latestMu.Unlock()

	s.bus.Publish(sample)
}
