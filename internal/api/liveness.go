package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/liveness"
)

type livenessChecker interface {
	ForceCheck(ctx context.Context) (liveness.SweepResult, error)
}

// LivenessHandler exposes the out-of-band liveness sweep
type LivenessHandler struct {
	checker livenessChecker
}

// NewLivenessHandler creates a new liveness handler
func NewLivenessHandler(checker livenessChecker) *LivenessHandler {
	return &LivenessHandler{checker: checker}
}

// Check handles POST /api/liveness/check
func (h *LivenessHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.checker.ForceCheck(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetupLivenessRoutes registers liveness routes
func SetupLivenessRoutes(apiGroup *gin.RouterGroup, handler *LivenessHandler) {
	apiGroup.POST("/liveness/check", handler.Check)
}
