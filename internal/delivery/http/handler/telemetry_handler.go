package handler

import (
	"context"
	"net/http"
	"time"

	"delivery-agent/internal/telemetry"
	"delivery-agent/pkg/utils"

	"github.com/gin-gonic/gin"
)

// TelemetryService is the coordinator surface exposed over HTTP.
type TelemetryService interface {
	Metrics() telemetry.Metrics
	FlushQueue(ctx context.Context)
}

type TelemetryHandler struct {
	service TelemetryService
}

func NewTelemetryHandler(service TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{service: service}
}

func (h *TelemetryHandler) RegisterRoutes(router *gin.RouterGroup) {
	t := router.Group("/telemetry")
	{
		t.GET("", h.GetStats)
		t.POST("/flush", h.Flush)
	}
}

// TelemetryStats is the JSON form of telemetry.Metrics.
type TelemetryStats struct {
	UpdatesSent        int64      `json:"updatesSent"`
	UpdatesQueued      int64      `json:"updatesQueued"`
	UpdatesFlushed     int64      `json:"updatesFlushed"`
	UpdatesDropped     int64      `json:"updatesDropped"`
	SendFailures       int64      `json:"sendFailures"`
	FlushFailures      int64      `json:"flushFailures"`
	Retries            int64      `json:"retries"`
	TicksSkipped       int64      `json:"ticksSkipped"`
	StatusPushFailures int64      `json:"statusPushFailures"`
	QueueDepth         int        `json:"queueDepth"`
	LastSentAt         *time.Time `json:"lastSentAt,omitempty"`
}

func statsFrom(m telemetry.Metrics) TelemetryStats {
	s := TelemetryStats{
		UpdatesSent:        m.UpdatesSent,
		UpdatesQueued:      m.UpdatesQueued,
		UpdatesFlushed:     m.UpdatesFlushed,
		UpdatesDropped:     m.UpdatesDropped,
		SendFailures:       m.SendFailures,
		FlushFailures:      m.FlushFailures,
		Retries:            m.Retries,
		TicksSkipped:       m.TicksSkipped,
		StatusPushFailures: m.StatusPushFailures,
		QueueDepth:         m.QueueDepth,
	}
	if !m.LastSentAt.IsZero() {
		s.LastSentAt = utils.TimePtr(m.LastSentAt)
	}
	return s
}

func (h *TelemetryHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Telemetry statistics retrieved", statsFrom(h.service.Metrics()))
}

// Flush replays the offline queue now instead of waiting for the next start.
func (h *TelemetryHandler) Flush(c *gin.Context) {
	h.service.FlushQueue(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "Offline queue flushed", statsFrom(h.service.Metrics()))
}
