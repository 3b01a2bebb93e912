package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/presence"
)

const commandTimeout = 10 * time.Second

// presenceHub defines the presence operations used by the HTTP layer
type presenceHub interface {
	Accept(w http.ResponseWriter, r *http.Request, roleParam, screenID string) (string, error)
	SendDirectedCommand(ctx context.Context, screenID string, kind presence.EventKind, payload presence.CommandPayload) (int, error)
	NotifyContentUpdated(screenID string) int
	NotifyPlaylistUpdated(playlistID string, screenIDs []string) int
	NotifyFilesUploaded(names []string) int
	Connections() []presence.ConnectionInfo
}

// CommandRequest is the body of a directed command
type CommandRequest struct {
	Type      string `json:"type" binding:"required"`
	Direction string `json:"direction,omitempty"`
	Muted     *bool  `json:"muted,omitempty"`
}

// NotifyRequest asks the hub to broadcast a content notification
type NotifyRequest struct {
	Type       string   `json:"type" binding:"required"`
	ScreenID   string   `json:"screenId,omitempty"`
	ScreenIDs  []string `json:"screenIds,omitempty"`
	PlaylistID string   `json:"playlistId,omitempty"`
	Files      []string `json:"files,omitempty"`
}

// DeliveryResponse reports how many connections received a message
type DeliveryResponse struct {
	Delivered int `json:"delivered"`
}

// ConnectionsResponse lists presence connections
type ConnectionsResponse struct {
	Connections []presence.ConnectionInfo `json:"connections"`
}

// PresenceHandler handles websocket upgrades, commands, and notifications
type PresenceHandler struct {
	hub presenceHub
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(hub presenceHub) *PresenceHandler {
	return &PresenceHandler{hub: hub}
}

// Connect handles GET /ws?type=screen|admin&screenId=...
func (h *PresenceHandler) Connect(c *gin.Context) {
	clientID, err := h.hub.Accept(c.Writer, c.Request, c.Query("type"), c.Query("screenId"))
	if err != nil {
		if apperr.IsProtocol(err) {
			// the upgrader already wrote the response
			logger.Log.Debug().Err(err).Msg("Websocket upgrade failed")
			return
		}
		respondError(c, err)
		return
	}

	logger.Log.Debug().
		Str("client_id", clientID).
		Str("client_ip", c.ClientIP()).
		Msg("Presence connection accepted")
}

// SendCommand handles POST /api/screens/:screen_id/commands
func (h *PresenceHandler) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	delivered, err := h.hub.SendDirectedCommand(ctx, c.Param("screen_id"), presence.EventKind(req.Type), presence.CommandPayload{
		Direction: req.Direction,
		Muted:     req.Muted,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, DeliveryResponse{Delivered: delivered})
}

// Notify handles POST /api/events
func (h *PresenceHandler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	var delivered int
	switch presence.EventKind(req.Type) {
	case presence.EventContentUpdated:
		delivered = h.hub.NotifyContentUpdated(req.ScreenID)
	case presence.EventPlaylistUpdate:
		if len(req.ScreenIDs) == 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "playlist-updated requires screenIds",
			})
			return
		}
		delivered = h.hub.NotifyPlaylistUpdated(req.PlaylistID, req.ScreenIDs)
	case presence.EventFilesUploaded:
		delivered = h.hub.NotifyFilesUploaded(req.Files)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "type must be content-updated, playlist-updated, or files-uploaded",
		})
		return
	}
	c.JSON(http.StatusAccepted, DeliveryResponse{Delivered: delivered})
}

// ListConnections handles GET /api/connections
func (h *PresenceHandler) ListConnections(c *gin.Context) {
	c.JSON(http.StatusOK, ConnectionsResponse{Connections: h.hub.Connections()})
}

// SetupPresenceRoutes registers presence routes
func SetupPresenceRoutes(router *gin.Engine, apiGroup *gin.RouterGroup, handler *PresenceHandler) {
	router.GET("/ws", handler.Connect)
	apiGroup.POST("/screens/:screen_id/commands", handler.SendCommand)
	apiGroup.POST("/events", handler.Notify)
	apiGroup.GET("/connections", handler.ListConnections)
}
