package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/streaming"
)

const streamRequestTimeout = 30 * time.Second

// pipelineManager defines the operations StreamHandler needs from the pipeline
type pipelineManager interface {
	CreateOrReplaceSession(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	StopSession(ctx context.Context, screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	StopScreen(ctx context.Context, screenID string) []streaming.SessionStatus
	Status(screenID string, variant streaming.Variant) (streaming.SessionStatus, error)
	ScreenStatus(screenID string) []streaming.SessionStatus
	List() []streaming.SessionStatus
	SegmentDir(screenID string) string
}

// StreamsResponse lists sessions
type StreamsResponse struct {
	Sessions []streaming.SessionStatus `json:"sessions"`
}

// StreamHandler handles pipeline session and HLS delivery requests
type StreamHandler struct {
	manager pipelineManager
}

// NewStreamHandler creates a new stream handler instance
func NewStreamHandler(manager pipelineManager) *StreamHandler {
	return &StreamHandler{manager: manager}
}

// ListStreams handles GET /api/streams
func (h *StreamHandler) ListStreams(c *gin.Context) {
	c.JSON(http.StatusOK, StreamsResponse{Sessions: h.manager.List()})
}

// GetScreenStreams handles GET /api/streams/:screen_id
func (h *StreamHandler) GetScreenStreams(c *gin.Context) {
	c.JSON(http.StatusOK, StreamsResponse{Sessions: h.manager.ScreenStatus(c.Param("screen_id"))})
}

// GetStream handles GET /api/streams/:screen_id/:variant
func (h *StreamHandler) GetStream(c *gin.Context) {
	variant, err := streaming.ParseVariant(c.Param("variant"))
	if err != nil {
		respondError(c, err)
		return
	}

	st, err := h.manager.Status(c.Param("screen_id"), variant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// StartStream handles POST /api/streams/:screen_id/:variant
func (h *StreamHandler) StartStream(c *gin.Context) {
	screenID := c.Param("screen_id")
	variant, err := streaming.ParseVariant(c.Param("variant"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), streamRequestTimeout)
	defer cancel()

	st, err := h.manager.CreateOrReplaceSession(ctx, screenID, variant)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("screen_id", screenID).
			Str("variant", string(variant)).
			Msg("Failed to start stream")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// StopStream handles DELETE /api/streams/:screen_id/:variant
func (h *StreamHandler) StopStream(c *gin.Context) {
	variant, err := streaming.ParseVariant(c.Param("variant"))
	if err != nil {
		respondError(c, err)
		return
	}

	st, err := h.manager.StopSession(c.Request.Context(), c.Param("screen_id"), variant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// StopScreen handles DELETE /api/streams/:screen_id
func (h *StreamHandler) StopScreen(c *gin.Context) {
	c.JSON(http.StatusOK, StreamsResponse{Sessions: h.manager.StopScreen(c.Request.Context(), c.Param("screen_id"))})
}

// GetHLSFile handles GET /hls/:screen_id/:file for the manifest and its segments
func (h *StreamHandler) GetHLSFile(c *gin.Context) {
	screenID := c.Param("screen_id")
	file := c.Param("file")

	isManifest := file == streaming.ManifestName
	if !isManifest && !strings.HasSuffix(file, streaming.SegmentExt) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Only the manifest and .ts segments are served",
		})
		return
	}

	// Security: Prevent directory traversal attacks
	if strings.ContainsAny(file, `/\`) || strings.Contains(file, "..") ||
		strings.ContainsAny(screenID, `/\`) || strings.Contains(screenID, "..") {
		logger.Log.Warn().
			Str("screen_id", screenID).
			Str("file", file).
			Msg("Directory traversal attempt detected")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_path",
			Message: "Invalid file path",
		})
		return
	}

	path := filepath.Join(h.manager.SegmentDir(screenID), file)
	if _, err := os.Stat(path); err != nil {
		if isManifest {
			// the encoder has not produced its first segment yet
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "stream_starting",
				Message: "Stream is starting, please retry in a moment",
			})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "segment_not_found",
			Message: "Segment not found",
		})
		return
	}

	if isManifest {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Content-Type", "application/vnd.apple.mpegurl")
	} else {
		c.Header("Cache-Control", "public, max-age=60")
		c.Header("Content-Type", "video/MP2T")
	}
	c.File(path)
}

// SetupStreamRoutes registers pipeline session routes under apiGroup and
// HLS delivery under hlsGroup
func SetupStreamRoutes(apiGroup, hlsGroup *gin.RouterGroup, handler *StreamHandler) {
	streams := apiGroup.Group("/streams")
	streams.GET("", handler.ListStreams)
	streams.GET("/:screen_id", handler.GetScreenStreams)
	streams.GET("/:screen_id/:variant", handler.GetStream)
	streams.POST("/:screen_id/:variant", handler.StartStream)
	streams.DELETE("/:screen_id", handler.StopScreen)
	streams.DELETE("/:screen_id/:variant", handler.StopStream)

	hlsGroup.GET("/:screen_id/:file", handler.GetHLSFile)
}
