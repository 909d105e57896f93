package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"delivery-agent/internal/capture"
	"delivery-agent/internal/config"
	"delivery-agent/internal/connectivity"
	"delivery-agent/internal/delivery/http/handler"
	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/infrastructure/database/postgres"
	"delivery-agent/internal/infrastructure/deliveryapi"
	"delivery-agent/internal/infrastructure/filestore"
	"delivery-agent/internal/location"
	"delivery-agent/internal/logger"
	"delivery-agent/internal/routes"
	"delivery-agent/internal/telemetry"
	"delivery-agent/internal/usecase/session"
	pkgmqtt "delivery-agent/pkg/mqtt"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env, cfg.LogLevel); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting delivery agent",
		zap.String("environment", env),
		zap.String("agent_id", cfg.AgentID),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, db, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open state storage", zap.Error(err))
	}

	api, err := deliveryapi.New(deliveryapi.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, logger.Named("deliveryapi"))
	if err != nil {
		logger.Fatal("Failed to create delivery API client", zap.Error(err))
	}

	probe := connectivity.NewProbe(
		strings.TrimRight(cfg.API.BaseURL, "/")+cfg.API.HealthPath,
		5*time.Second,
		connectivity.DefaultTTL,
		logger.Named("connectivity"),
	)

	source, err := newLocationSource(cfg)
	if err != nil {
		logger.Fatal("Failed to set up location source", zap.Error(err))
	}

	metrics := telemetry.NewMetricsTracker()
	queue := telemetry.NewQueue(store, telemetry.QueueConfig{
		MaxSize:     cfg.Telemetry.QueueMaxSize,
		ReplayOrder: telemetry.ReplayOrder(cfg.Telemetry.ReplayOrder),
	}, metrics, logger.Named("queue"))
	restored, err := queue.LoadPersisted(ctx)
	if err != nil {
		logger.Error("Failed to restore offline queue", zap.Error(err))
	} else if len(restored) > 0 {
		logger.Info("Restored offline telemetry queue", zap.Int("updates", len(restored)))
	}

	coordinator := telemetry.NewCoordinator(api, source, queue, probe, telemetry.Config{
		Interval:   cfg.Telemetry.Interval,
		MaxRetries: cfg.Telemetry.MaxRetries,
		RetryDelay: cfg.Telemetry.RetryDelay,
	}, logger.Named("coordinator"))

	var images capture.ImageCapturer = capture.Unavailable{}
	var signatures capture.SignatureCapturer = capture.Unavailable{}
	if cfg.Capture.BaseURL != "" {
		capturer := capture.NewHTTPCapturer(cfg.Capture.BaseURL, cfg.Capture.Timeout, logger.Named("capture"))
		images, signatures = capturer, capturer
	}

	events := handler.NewEventHub(cfg.CORS.AllowedOrigins, logger.Named("events"))
	controller := session.NewController(ctx, session.Deps{
		Tracker:    coordinator,
		Routes:     api,
		Store:      store,
		Images:     images,
		Signatures: signatures,
	}, events.Callbacks(), logger.Named("session"))

	if cfg.Session.ResumeOnStart {
		if err := controller.Resume(ctx); err != nil {
			logger.Warn("Failed to resume delivery", zap.Error(err))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		telemetry.NewCollector("delivery_agent", metrics),
	)

	health := []routes.HealthCheck{{
		Name: "delivery_api",
		Check: func() error {
			if state := api.BreakerState(); state == "open" {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		},
	}}
	if db != nil {
		health = append(health, routes.HealthCheck{Name: "database", Critical: true, Check: db.Health})
	}

	router := routes.SetupRoutes(ctx, cfg, routes.Deps{
		Session:   controller,
		Telemetry: coordinator,
		Events:    events,
		Registry:  registry,
		Health:    health,
	})

	config.Watch(func(next *config.Config, e fsnotify.Event) {
		logger.Info("Configuration changed", zap.String("file", e.Name))
		if next.LogLevel != "" {
			if err := logger.SetLevel(next.LogLevel); err != nil {
				logger.Warn("Ignoring invalid LOG_LEVEL", zap.String("level", next.LogLevel), zap.Error(err))
			}
		}
		coordinator.SetInterval(next.Telemetry.Interval)
	})

	host := cfg.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8088"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start goroutine
	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the agent
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down delivery agent ...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	events.Close()
	err = server.Shutdown(shutdownCtx)

	// The active route stays persisted so the next start can resume it.
	coordinator.Shutdown()
	source.StopTracking()
	cancel()

	if db != nil {
		err = multierr.Append(err, db.Close())
	}
	if err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	log.Println("Delivery agent exited properly")
}

// openStore returns the configured state store. db is nil for the file
// driver.
func openStore(cfg *config.Config) (delivery.StateStore, *postgres.DB, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewDB(cfg, logger.Named("postgres"))
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStateRepository(db, cfg.AgentID), db, nil
	default:
		store, err := filestore.NewOS(cfg.Storage.Dir, logger.Named("filestore"))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

func newLocationSource(cfg *config.Config) (*location.Source, error) {
	var background location.BackgroundTracker
	if cfg.MQTT.Broker != "" {
		tracker, err := location.NewMQTTTracker(location.MQTTTrackerConfig{
			ClientConfig: &pkgmqtt.Config{
				Broker:               cfg.MQTT.Broker,
				ClientID:             cfg.MQTT.ClientID,
				Username:             cfg.MQTT.Username,
				Password:             cfg.MQTT.Password,
				CleanSession:         true,
				KeepAlive:            30,
				ConnectTimeout:       10,
				AutoReconnect:        true,
				MaxReconnectInterval: time.Minute,
			},
			Topic: cfg.MQTT.LocationTopic,
			QoS:   cfg.MQTT.QoS,
		}, logger.Named("mqtt"))
		if err != nil {
			return nil, err
		}
		background = tracker
	}

	return location.NewSource(
		location.StaticPermissions(cfg.Location.PermissionGranted),
		location.NewHTTPLocator(cfg.Location.GNSSURL, cfg.Location.FixTimeout),
		background,
		location.Config{
			PollInterval: cfg.Location.PollInterval,
			FixTimeout:   cfg.Location.FixTimeout,
		},
		logger.Named("location"),
	), nil
}
