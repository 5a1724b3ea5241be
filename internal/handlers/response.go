package handlers

import (
	"errors"
	"net/http"

	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK        = "ok"
	statusSent      = "sent"
	statusTriggered = "triggered"

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusFor maps service and platform errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, platform.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrInvalidDeviceID),
		errors.Is(err, platform.ErrUnsupportedMode),
		errors.Is(err, platform.ErrUnsupportedService):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCapabilityUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, service.ErrAutomationDisabled):
		return http.StatusConflict
	case errors.Is(err, service.ErrSensorUnavailable),
		errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, platform.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Client errors echo the message;
// server errors are logged under logKey and answered with userMsg.
func (h *Handler) respondError(c *gin.Context, err error, userMsg, logKey string, kv ...interface{}) {
	code := statusFor(err)
	if code < http.StatusInternalServerError || code == http.StatusNotImplemented {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, code, userMsg, logKey, err, kv...)
}
