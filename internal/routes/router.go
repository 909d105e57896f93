package routes

import (
	"context"
	"net/http"

	"delivery-agent/internal/config"
	"delivery-agent/internal/delivery/http/handler"
	"delivery-agent/internal/logger"
	"delivery-agent/internal/middleware"
	"delivery-agent/internal/usecase/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports a dependency failure. Critical checks turn /health
// into a 503; the others only mark the agent degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func() error
}

type Deps struct {
	Session   *session.Controller
	Telemetry handler.TelemetryService
	Events    *handler.EventHub
	Registry  *prometheus.Registry
	Health    []HealthCheck
}

func SetupRoutes(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order: recovery, request ID, logging, security headers, CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(ctx, cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", healthHandler(deps.Health))

	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		handler.NewSessionHandler(deps.Session).RegisterRoutes(v1)
		handler.NewTelemetryHandler(deps.Telemetry).RegisterRoutes(v1)
		if deps.Events != nil {
			deps.Events.RegisterRoutes(v1)
		}
	}

	logger.Info("All routes initialized")
	return router
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		results := make(gin.H, len(checks))
		for _, hc := range checks {
			if err := hc.Check(); err != nil {
				results[hc.Name] = err.Error()
				if hc.Critical {
					status, code = "unhealthy", http.StatusServiceUnavailable
				} else if code == http.StatusOK {
					status = "degraded"
				}
				continue
			}
			results[hc.Name] = "ok"
		}

		c.JSON(code, gin.H{
			"status": status,
			"checks": results,
		})
	}
}
