package handler

import (
	"errors"
	"net/http"

	appErrors "delivery-agent/pkg/errors"
	"delivery-agent/pkg/utils"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{appErrors.ErrInvalidInput, http.StatusBadRequest, "VALIDATION_ERROR"},
	{appErrors.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{appErrors.ErrAlreadyTracking, http.StatusConflict, "ALREADY_TRACKING"},
	{appErrors.ErrNoActiveDelivery, http.StatusNotFound, "NO_ACTIVE_DELIVERY"},
	{appErrors.ErrStopNotFound, http.StatusNotFound, "STOP_NOT_FOUND"},
	{appErrors.ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED"},
	{appErrors.ErrLocationUnavailable, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE"},
	{appErrors.ErrCaptureUnavailable, http.StatusServiceUnavailable, "CAPTURE_UNAVAILABLE"},
	{appErrors.ErrNetwork, http.StatusBadGateway, "NETWORK_ERROR"},
	{appErrors.ErrPersistence, http.StatusInternalServerError, "PERSISTENCE_ERROR"},
}

// respondError maps a session or coordinator error onto an HTTP status.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		code = appErr.Code
	}

	_ = c.Error(err)
	utils.CodedErrorResponse(c, status, code, err.Error(), nil)
}
