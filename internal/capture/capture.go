// Package capture talks to the on-device camera and signature pad daemon.
// Both return opaque handles that travel with stop updates.
package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "delivery-agent/pkg/errors"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type ImageCapturer interface {
	CaptureImage(ctx context.Context) (string, error)
}

type SignatureCapturer interface {
	CaptureSignature(ctx context.Context) (string, error)
}

// HTTPCapturer drives a capture daemon: POST /capture/image and
// POST /capture/signature block until the agent finishes and answer
// {"handle": "..."}.
type HTTPCapturer struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPCapturer(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPCapturer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPCapturer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *HTTPCapturer) CaptureImage(ctx context.Context) (string, error) {
	return c.capture(ctx, "image")
}

func (c *HTTPCapturer) CaptureSignature(ctx context.Context) (string, error) {
	return c.capture(ctx, "signature")
}

type captureResponse struct {
	Handle string `json:"handle"`
}

func (c *HTTPCapturer) capture(ctx context.Context, kind string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/capture/"+kind, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", appErrors.ErrCaptureUnavailable, kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s capture returned %d: %s",
			appErrors.ErrCaptureUnavailable, kind, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode %s handle: %w", appErrors.ErrCaptureUnavailable, kind, err)
	}
	if out.Handle == "" {
		return "", fmt.Errorf("%w: %s capture was cancelled", appErrors.ErrCaptureUnavailable, kind)
	}

	c.log.Debug("Capture finished", zap.String("kind", kind), zap.String("handle", out.Handle))
	return out.Handle, nil
}

// Unavailable is used when no capture daemon is configured.
type Unavailable struct{}

func (Unavailable) CaptureImage(context.Context) (string, error) {
	return "", fmt.Errorf("%w: no camera configured", appErrors.ErrCaptureUnavailable)
}

func (Unavailable) CaptureSignature(context.Context) (string, error) {
	return "", fmt.Errorf("%w: no signature pad configured", appErrors.ErrCaptureUnavailable)
}
