package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"

	"github.com/goccy/go-json"
)

// Locator produces one position fix on demand.
type Locator interface {
	Fix(ctx context.Context) (delivery.LocationSample, error)
}

// HTTPLocator reads fixes from a local GNSS daemon that serves the latest
// position as JSON. 204 No Content means the receiver has no fix yet.
type HTTPLocator struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewHTTPLocator(url string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (l *HTTPLocator) Fix(ctx context.Context) (delivery.LocationSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return delivery.LocationSample{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return delivery.LocationSample{}, fmt.Errorf("%w: %w", appErrors.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return delivery.LocationSample{}, fmt.Errorf("%w: receiver has no fix", appErrors.ErrLocationUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return delivery.LocationSample{}, fmt.Errorf("%w: gnss daemon returned %d: %s",
			appErrors.ErrLocationUnavailable, resp.StatusCode, body)
	}

	var sample delivery.LocationSample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		return delivery.LocationSample{}, fmt.Errorf("%w: decode fix: %w", appErrors.ErrLocationUnavailable, err)
	}
	if sample.TimestampMs == 0 {
		sample.TimestampMs = l.now().UnixMilli()
	}
	sample.Provider = delivery.ProviderForeground
	return sample, nil
}
