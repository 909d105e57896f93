package handler

import (
	"net/http"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/usecase/session"
	"delivery-agent/pkg/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	session *session.Controller
}

func NewSessionHandler(session *session.Controller) *SessionHandler {
	return &SessionHandler{session: session}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	s := router.Group("/session")
	{
		s.GET("", h.GetSession)
		s.POST("/start", h.StartDelivery)
		s.POST("/complete", h.CompleteDelivery)
		s.POST("/resume", h.Resume)

		s.PUT("/stops/:stopId", h.UpdateStop)
		s.POST("/stops/:stopId/skip", h.SkipStop)
		s.POST("/stops", h.AddStop)
		s.POST("/reorder", h.ReorderStops)
		s.POST("/optimize", h.OptimizeRoute)

		s.POST("/capture/photo", h.CapturePhoto)
		s.POST("/capture/signature", h.CaptureSignature)
	}
}

// StartRequest starts either the given route or the route fetched by id.
type StartRequest struct {
	DeliveryID string          `json:"deliveryId"`
	Route      *delivery.Route `json:"route"`
}

type UpdateStopRequest struct {
	Status    delivery.StopStatus `json:"status" binding:"required,oneof=pending in_progress completed failed"`
	Notes     *string             `json:"notes"`
	Photos    []string            `json:"photos"`
	Signature *string             `json:"signature"`
}

type SkipStopRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type AddStopRequest struct {
	CustomerRef string                  `json:"customerRef" binding:"required"`
	Location    delivery.LocationSample `json:"location"`
}

type ReorderRequest struct {
	StopIDs []string `json:"stopIds" binding:"required,min=1"`
}

// SessionView is the session state returned to the UI.
type SessionView struct {
	Active      bool            `json:"active"`
	Route       *delivery.Route `json:"route,omitempty"`
	CurrentStop *delivery.Stop  `json:"currentStop,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

func (h *SessionHandler) view() SessionView {
	var v SessionView
	if route, ok := h.session.Route(); ok {
		v.Active = true
		v.Route = route
	}
	if stop, ok := h.session.CurrentStop(); ok {
		v.CurrentStop = stop
	}
	if err := h.session.Err(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session retrieved successfully", h.view())
}

func (h *SessionHandler) StartDelivery(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var err error
	switch {
	case req.Route != nil:
		err = h.session.StartDelivery(c.Request.Context(), req.Route)
	case req.DeliveryID != "":
		err = h.session.StartByID(c.Request.Context(), req.DeliveryID)
	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "Either route or deliveryId is required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Delivery started successfully", h.view())
}

func (h *SessionHandler) CompleteDelivery(c *gin.Context) {
	if err := h.session.CompleteDelivery(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Delivery completed successfully", h.view())
}

func (h *SessionHandler) Resume(c *gin.Context) {
	if err := h.session.Resume(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Delivery resumed", h.view())
}

func (h *SessionHandler) UpdateStop(c *gin.Context) {
	var req UpdateStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	data := &delivery.StopData{Notes: req.Notes, Photos: req.Photos, Signature: req.Signature}
	if err := h.session.UpdateStop(c.Request.Context(), c.Param("stopId"), req.Status, data); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Stop updated successfully", h.view())
}

func (h *SessionHandler) SkipStop(c *gin.Context) {
	var req SkipStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "A skip reason is required")
		return
	}

	if err := h.session.SkipStop(c.Request.Context(), c.Param("stopId"), req.Reason); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Stop skipped", h.view())
}

func (h *SessionHandler) AddStop(c *gin.Context) {
	var req AddStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	stop, err := h.session.AddStop(c.Request.Context(), delivery.Stop{
		CustomerRef: utils.SanitizeString(req.CustomerRef),
		Location:    req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Stop added successfully", stop)
}

func (h *SessionHandler) ReorderStops(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.session.ReorderStops(c.Request.Context(), req.StopIDs); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Stops reordered successfully", h.view())
}

func (h *SessionHandler) OptimizeRoute(c *gin.Context) {
	if err := h.session.OptimizeRoute(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Route optimized successfully", h.view())
}

func (h *SessionHandler) CapturePhoto(c *gin.Context) {
	handle, err := h.session.CapturePhoto(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Photo captured", gin.H{"handle": handle})
}

func (h *SessionHandler) CaptureSignature(c *gin.Context) {
	handle, err := h.session.CaptureSignature(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Signature captured", gin.H{"handle": handle})
}
