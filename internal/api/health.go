package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string         `json:"status"`
	Storage  string         `json:"storage"`
	Encoder  string         `json:"encoder"`
	Time     string         `json:"time"`
	Sessions int            `json:"sessions"`
	Details  map[string]any `json:"details,omitempty"`
}

type screenReader interface {
	Read(ctx context.Context) ([]models.Screen, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	screens      screenReader
	checkEncoder func() error
	sessionCount func() int
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(screens screenReader, checkEncoder func() error, sessionCount func() int) *HealthHandler {
	return &HealthHandler{screens: screens, checkEncoder: checkEncoder, sessionCount: sessionCount}
}

// Check handles GET /api/health. The store is required; a missing encoder
// only degrades the report.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Storage: "healthy",
		Encoder: "available",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]any),
	}
	if h.sessionCount != nil {
		response.Sessions = h.sessionCount()
	}

	if h.checkEncoder != nil {
		if err := h.checkEncoder(); err != nil {
			response.Status = "degraded"
			response.Encoder = "unavailable"
			response.Details["encoder_error"] = err.Error()
		}
	}

	if _, err := h.screens.Read(ctx); err != nil {
		response.Status = "unhealthy"
		response.Storage = "unhealthy"
		response.Details["storage_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, handler *HealthHandler) {
	apiGroup.GET("/health", handler.Check)
}
