package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/speaking-coach/internal/engine"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/session"
	"github.com/danielpatrickdp/speaking-coach/internal/store"
)

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, lesson.ErrConfigNotFound):
		return http.StatusNotFound, "MODULE_NOT_FOUND"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "REPORT_NOT_FOUND"
	case errors.Is(err, lesson.ErrConfigMalformed):
		return http.StatusBadRequest, "MODULE_MALFORMED"
	case errors.Is(err, engine.ErrFieldMismatch):
		return http.StatusConflict, "FIELD_MISMATCH"
	case errors.Is(err, engine.ErrNotStarted):
		return http.StatusConflict, "NOT_STARTED"
	case errors.Is(err, engine.ErrSessionClosed):
		return http.StatusGone, "SESSION_CLOSED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func abortWithError(c *gin.Context, err error) {
	code, errCode := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error(), Code: errCode})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
}
