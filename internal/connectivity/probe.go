// Package connectivity answers "is the delivery service plausibly reachable".
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTTL = 10 * time.Second

// Probe checks reachability with a GET against the service health endpoint
// and caches the answer for TTL.
type Probe struct {
	url    string
	client *http.Client
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
}

func NewProbe(url string, timeout, ttl time.Duration, log *zap.Logger) *Probe {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Probe{
		url:    url,
		client: &http.Client{Timeout: timeout},
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// IsOnline reports the cached reachability, probing again once it expired.
// Any response below 500 counts as reachable.
func (p *Probe) IsOnline(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.ttl {
		return p.online
	}

	online := p.check(ctx)
	if online != p.online || p.checkedAt.IsZero() {
		p.log.Info("Connectivity changed", zap.Bool("online", online))
	}
	p.online, p.checkedAt = online, p.now()
	return online
}

// Invalidate forces the next IsOnline call to probe.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	p.checkedAt = time.Time{}
	p.mu.Unlock()
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.log.Error("Invalid connectivity probe url", zap.String("url", p.url), zap.Error(err))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("Connectivity probe failed", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Static is a fixed answer, used when no probe is configured.
type Static bool

func (s Static) IsOnline(context.Context) bool { return bool(s) }
