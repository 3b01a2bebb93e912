// Package api provides HTTP handlers for the REST, HLS, and presence endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/presence"
	"github.com/jaisil18/tv-transmision-sub000/internal/streaming"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusForError maps an error to an HTTP status and error code
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, streaming.ErrManagerStopped), errors.Is(err, presence.ErrHubClosed):
		return http.StatusServiceUnavailable, "service_unavailable"
	}

	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, kind.String()
	case apperr.KindNotFound:
		return http.StatusNotFound, kind.String()
	case apperr.KindPipelineLaunch:
		return http.StatusBadGateway, kind.String()
	case apperr.KindProtocol:
		return http.StatusBadRequest, kind.String()
	default:
		return http.StatusInternalServerError, kind.String()
	}
}

// respondError writes err as an ErrorResponse
func respondError(c *gin.Context, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
