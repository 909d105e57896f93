package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"delivery-agent/internal/domain/delivery"
	pkgmqtt "delivery-agent/pkg/mqtt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// BackgroundTracker is the coarse producer that keeps running while the
// foreground poller is suspended.
type BackgroundTracker interface {
	Start(ctx context.Context, publish func(delivery.LocationSample)) error
	Stop()
}

// broker is the subset of pkg/mqtt the tracker uses.
type broker interface {
	Connect() error
	Subscribe(topic string, qos byte, handler pkgmqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
	Disconnect()
}

// LocationMessage is the payload a vehicle tracking unit publishes.
type LocationMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Accuracy  *float64  `json:"accuracy"`
}

// ParseLocationMessage decodes a tracker payload. A missing timestamp is
// filled with the receive time.
func ParseLocationMessage(payload []byte) (*LocationMessage, error) {
	var msg LocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return &msg, nil
}

// Sample converts the message into a background location sample.
func (m *LocationMessage) Sample() delivery.LocationSample {
	s := delivery.LocationSample{
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		TimestampMs: m.Timestamp.UnixMilli(),
		Altitude:    m.Altitude,
		Speed:       m.Speed,
		Heading:     m.Heading,
		Provider:    delivery.ProviderBackground,
	}
	if m.Accuracy != nil {
		s.Accuracy = *m.Accuracy
	}
	return s
}

type MQTTTrackerConfig struct {
	ClientConfig *pkgmqtt.Config
	Topic        string
	QoS          byte
}

// MQTTTracker subscribes to the vehicle tracking unit's location topic.
type MQTTTracker struct {
	cfg    MQTTTrackerConfig
	client broker
	log    *zap.Logger

	mu      sync.Mutex
	started bool
	publish func(delivery.LocationSample)
}

func NewMQTTTracker(cfg MQTTTrackerConfig, log *zap.Logger) (*MQTTTracker, error) {
	if cfg.ClientConfig == nil {
		return nil, errors.New("mqtt tracker config is not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt location topic is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return newMQTTTracker(cfg, pkgmqtt.NewClient(cfg.ClientConfig, log), log), nil
}

func newMQTTTracker(cfg MQTTTrackerConfig, client broker, log *zap.Logger) *MQTTTracker {
	return &MQTTTracker{cfg: cfg, client: client, log: log}
}

// Start connects and subscribes. Calling it while started is a no-op.
func (t *MQTTTracker) Start(ctx context.Context, publish func(delivery.LocationSample)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	t.publish = publish
	if err := t.client.Subscribe(t.cfg.Topic, t.cfg.QoS, t.handleLocationMessage); err != nil {
		t.client.Disconnect()
		t.publish = nil
		return fmt.Errorf("subscribe failed for topic %s: %w", t.cfg.Topic, err)
	}

	t.started = true
	t.log.Info("Background location tracking started", zap.String("topic", t.cfg.Topic))
	return nil
}

// Stop unsubscribes and disconnects. Calling it while stopped is a no-op.
func (t *MQTTTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	if err := t.client.Unsubscribe(t.cfg.Topic); err != nil {
		t.log.Warn("Failed to unsubscribe from MQTT topic", zap.String("topic", t.cfg.Topic), zap.Error(err))
	}
	t.client.Disconnect()
	t.started = false
	t.publish = nil
	t.log.Info("Background location tracking stopped")
}

func (t *MQTTTracker) handleLocationMessage(topic string, payload []byte) {
	msg, err := ParseLocationMessage(payload)
	if err != nil {
		t.log.Warn("Invalid location payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	sample := msg.Sample()
	if err := delivery.ValidateSample(sample); err != nil {
		t.log.Warn("Rejected location fix", zap.String("device_id", msg.DeviceID), zap.Error(err))
		return
	}

	t.mu.Lock()
	publish := t.publish
	t.mu.Unlock()
	if publish != nil {
		publish(sample)
	}
}
