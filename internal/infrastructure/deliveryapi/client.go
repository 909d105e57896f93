// Package deliveryapi is the HTTP client for the remote delivery service.
package deliveryapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"delivery-agent/internal/domain/delivery"
	appErrors "delivery-agent/pkg/errors"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 15 * time.Second

	breakerName             = "delivery-api"
	breakerMaxRequests      = 1
	breakerInterval         = time.Minute
	breakerOpenTimeout      = 30 * time.Second
	breakerFailureThreshold = 5

	maxErrorBody = 1024
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements delivery.TelemetryAPI and delivery.RouteService.
// Transport failures and 5xx responses count against a circuit breaker;
// while it is open calls fail fast with a NetworkError.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("delivery api base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid delivery api base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}, nil
}

type statusRequest struct {
	Status delivery.RouteStatus `json:"status"`
}

type addStopRequest struct {
	DeliveryID string        `json:"deliveryId"`
	Stop       delivery.Stop `json:"stop"`
}

type reorderRequest struct {
	StopIDs []string `json:"stopIds"`
}

// SendUpdate posts one telemetry update. The update id travels as the
// Idempotency-Key header so replays can be deduplicated server side.
func (c *Client) SendUpdate(ctx context.Context, u delivery.Update) error {
	return c.do(ctx, "send update", http.MethodPost, "/delivery/update", u, nil, map[string]string{
		"Idempotency-Key": u.ID,
	})
}

func (c *Client) UpdateStatus(ctx context.Context, deliveryID string, status delivery.RouteStatus) error {
	return c.do(ctx, "update status", http.MethodPut, "/delivery/"+url.PathEscape(deliveryID)+"/status",
		statusRequest{Status: status}, nil, nil)
}

func (c *Client) GetRoute(ctx context.Context, deliveryID string) (*delivery.Route, error) {
	var route delivery.Route
	if err := c.do(ctx, "get route", http.MethodGet, "/delivery/"+url.PathEscape(deliveryID), nil, &route, nil); err != nil {
		return nil, err
	}
	return &route, nil
}

// AddStop creates a stop; the returned stop carries the server-assigned id.
func (c *Client) AddStop(ctx context.Context, deliveryID string, stop delivery.Stop) (*delivery.Stop, error) {
	var created delivery.Stop
	err := c.do(ctx, "add stop", http.MethodPost, "/delivery/stops",
		addStopRequest{DeliveryID: deliveryID, Stop: stop}, &created, nil)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ReorderStops(ctx context.Context, deliveryID string, stopIDs []string) error {
	return c.do(ctx, "reorder stops", http.MethodPut, "/delivery/"+url.PathEscape(deliveryID)+"/reorder",
		reorderRequest{StopIDs: stopIDs}, nil, nil)
}

func (c *Client) OptimizeRoute(ctx context.Context, deliveryID string) (*delivery.Route, error) {
	var route delivery.Route
	if err := c.do(ctx, "optimize route", http.MethodPost, "/delivery/"+url.PathEscape(deliveryID)+"/optimize", nil, &route, nil); err != nil {
		return nil, err
	}
	return &route, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, headers map[string]string) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, payload, headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Debug("Delivery API call rejected by circuit breaker", zap.String("op", op))
		}
		var netErr *appErrors.NetworkError
		if errors.As(err, &netErr) {
			netErr.Op = op
			return netErr
		}
		return &appErrors.NetworkError{Op: op, Err: err}
	}

	resp := result.(*response)
	if resp.status < 200 || resp.status > 299 {
		return &appErrors.NetworkError{Op: op, StatusCode: resp.status, Body: truncate(resp.body)}
	}
	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// roundTrip performs one request. Only transport errors and 5xx responses
// are returned as errors so 4xx answers do not trip the breaker.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, headers map[string]string) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &appErrors.NetworkError{StatusCode: resp.StatusCode, Body: truncate(data)}
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}
