package presence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/config"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// Timeout for persisting a heartbeat or a command side effect
const storeTimeout = 5 * time.Second

// ErrHubClosed is returned when accepting connections after Close
var ErrHubClosed = errors.New("presence hub is closed")

// ScreenStore is the screen registry as used by the hub
type ScreenStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, fn func([]models.Screen) ([]models.Screen, bool, error)) ([]models.Screen, error)
}

// HeartbeatRecorder persists a screen heartbeat
type HeartbeatRecorder interface {
	RecordHeartbeat(ctx context.Context, screenID string, at time.Time) error
}

// Listener observes every event the hub fans out. Listeners run on the
// broadcasting goroutine and must not block.
type Listener func(Event)

// Hub tracks presence connections and fans out events
type Hub struct {
	cfg      config.PresenceConfig
	screens  ScreenStore
	recorder HeartbeatRecorder
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	now      func() time.Time

	mu        sync.RWMutex
	clients   map[string]*Client
	listeners []Listener
	closed    bool
}

// NewHub creates a presence hub. recorder may be nil, in which case
// heartbeats only update the in-memory connection entry.
func NewHub(cfg config.PresenceConfig, screens ScreenStore, recorder HeartbeatRecorder, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:      cfg,
		screens:  screens,
		recorder: recorder,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Screens are served from arbitrary kiosk origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:     time.Now,
		clients: make(map[string]*Client),
	}
}

// SetRecorder sets the heartbeat recorder
func (h *Hub) SetRecorder(recorder HeartbeatRecorder) {
	h.mu.Lock()
	h.recorder = recorder
	h.mu.Unlock()
}

// Subscribe registers a listener for every fanned-out event
func (h *Hub) Subscribe(listener Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, listener)
	h.mu.Unlock()
}

// Accept validates the connection parameters, upgrades the request, and
// registers the connection. Validation and NotFound errors are returned
// before the upgrade, so the caller can still write an HTTP response.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, roleParam, screenID string) (string, error) {
	role, err := ParseRole(roleParam)
	if err != nil {
		return "", err
	}

	switch role {
	case RoleScreen:
		if screenID == "" {
			return "", apperr.Validation("presence.accept", "screen connections require a screenId")
		}
		exists, err := h.screens.Exists(r.Context(), screenID)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", apperr.NotFound("presence.accept", screenID, "screen not registered")
		}
	case RoleAdmin:
		screenID = ""
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return "", ErrHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		return "", apperr.Protocol("websocket upgrade failed", err)
	}

	now := h.now()
	client := newClient(h, conn, uuid.NewString(), role, screenID, now)
	h.register(client)

	client.enqueue(h.encode(Event{
		Type:      EventConnected,
		Timestamp: now.UnixMilli(),
		ClientID:  client.id,
	}))

	go client.writePump()
	go client.readPump()

	return client.id, nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.updateGaugesLocked()
	h.mu.Unlock()

	logger.Log.Info().
		Str("client_id", c.id).
		Str("role", string(c.role)).
		Str("screen_id", c.screenID).
		Msg("Presence connection registered")
}

// unregister drops the connection entry. Screen status is left to the reconciler.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
	}
	h.updateGaugesLocked()
	h.mu.Unlock()

	logger.Log.Info().
		Str("client_id", c.id).
		Str("role", string(c.role)).
		Str("screen_id", c.screenID).
		Msg("Presence connection removed")
}

func (h *Hub) updateGaugesLocked() {
	counts := map[Role]int{RoleScreen: 0, RoleAdmin: 0}
	for _, c := range h.clients {
		counts[c.role]++
	}
	for role, n := range counts {
		h.metrics.SetConnections(string(role), n)
	}
}

// handleMessage dispatches one client message. Malformed messages are
// logged and ignored; the connection stays open.
func (h *Hub) handleMessage(c *Client, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Log.Warn().
			Err(apperr.Protocol("invalid json", err)).
			Str("client_id", c.id).
			Msg("Ignoring malformed presence message")
		return
	}

	switch msg.Type {
	case clientHeartbeat:
		h.onHeartbeat(c)
	case clientPing:
		c.enqueue(h.encode(Event{Type: EventPong, Timestamp: h.now().UnixMilli()}))
	default:
		logger.Log.Warn().
			Err(apperr.Protocol("unknown message type "+msg.Type, nil)).
			Str("client_id", c.id).
			Msg("Ignoring malformed presence message")
	}
}

// onHeartbeat updates the connection entry and, for screens, persists the
// heartbeat so an inactive screen is promoted immediately.
func (h *Hub) onHeartbeat(c *Client) {
	now := h.now()
	c.touch(now)

	h.mu.RLock()
	recorder := h.recorder
	h.mu.RUnlock()

	if c.role == RoleScreen && recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := recorder.RecordHeartbeat(ctx, c.screenID, now)
		cancel()
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("client_id", c.id).
				Str("screen_id", c.screenID).
				Msg("Failed to record heartbeat")
		}
	}

	c.enqueue(h.encode(Event{Type: EventHeartbeat, Timestamp: now.UnixMilli()}))
}

// Broadcast fans out the event to every connection matching filter and
// returns the number of connections it was queued for. Sends never block.
func (h *Hub) Broadcast(event Event, filter Filter) int {
	if event.Timestamp == 0 {
		event.Timestamp = h.now().UnixMilli()
	}
	if filter == nil {
		filter = All()
	}
	data := h.encode(event)

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if filter(c.info()) {
			targets = append(targets, c)
		}
	}
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(data) {
			delivered++
		}
	}
	h.metrics.IncBroadcast(string(event.Type))

	logger.Log.Debug().
		Str("event", string(event.Type)).
		Str("screen_id", event.ScreenID).
		Int("delivered", delivered).
		Msg("Presence event broadcast")

	for _, l := range listeners {
		l(event)
	}

	return delivered
}

// NotifyContentUpdated announces new content. An empty screenID means every
// screen; otherwise the matching screen and every admin receive it.
func (h *Hub) NotifyContentUpdated(screenID string) int {
	if screenID == "" {
		return h.Broadcast(Event{Type: EventContentUpdated}, All())
	}
	return h.Broadcast(Event{Type: EventContentUpdated, ScreenID: screenID}, Or(ToScreen(screenID), ToAdmins()))
}

// NotifyPlaylistUpdated announces a playlist change to the affected screens and every admin
func (h *Hub) NotifyPlaylistUpdated(playlistID string, screenIDs []string) int {
	return h.Broadcast(Event{
		Type:       EventPlaylistUpdate,
		PlaylistID: playlistID,
		ScreenIDs:  screenIDs,
	}, Or(ToScreens(screenIDs...), ToAdmins()))
}

// NotifyFilesUploaded announces new media files to everyone
func (h *Hub) NotifyFilesUploaded(names []string) int {
	return h.Broadcast(Event{Type: EventFilesUploaded, Files: names}, All())
}

// SendDirectedCommand delivers a command to one screen's connections. A mute
// command also persists the screen's muted flag.
func (h *Hub) SendDirectedCommand(ctx context.Context, screenID string, kind EventKind, payload CommandPayload) (int, error) {
	if err := validateCommand(kind, payload); err != nil {
		return 0, err
	}

	exists, err := h.screens.Exists(ctx, screenID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperr.NotFound("presence.command", screenID, "screen not registered")
	}

	if kind == EventMute {
		muted := *payload.Muted
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		_, err := h.screens.Update(ctx, func(screens []models.Screen) ([]models.Screen, bool, error) {
			for i := range screens {
				if screens[i].ID == screenID {
					if screens[i].Muted == muted {
						return screens, false, nil
					}
					screens[i].Muted = muted
					return screens, true, nil
				}
			}
			return screens, false, nil
		})
		if err != nil {
			return 0, err
		}
	}

	event := Event{
		Type:      kind,
		ScreenID:  screenID,
		Direction: payload.Direction,
		Muted:     payload.Muted,
	}
	delivered := h.Broadcast(event, ToScreen(screenID))

	logger.Log.Info().
		Str("screen_id", screenID).
		Str("command", string(kind)).
		Int("delivered", delivered).
		Msg("Directed command sent")

	return delivered, nil
}

// Connections returns a snapshot of every registered connection
func (h *Hub) Connections() []ConnectionInfo {
	h.mu.RLock()
	out := make([]ConnectionInfo, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info())
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt != out[j].ConnectedAt {
			return out[i].ConnectedAt < out[j].ConnectedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close disconnects every client and rejects new connections
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	logger.Log.Info().
		Int("connections", len(clients)).
		Msg("Presence hub closed")
}

func (h *Hub) encode(event Event) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		// Event only holds strings, numbers, and slices of them
		logger.Log.Error().Err(err).Str("event", string(event.Type)).Msg("Failed to encode presence event")
		return []byte(`{}`)
	}
	return data
}
