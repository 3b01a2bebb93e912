package presence

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

// Maximum size of an inbound client message
const maxMessageSize = 4096

// Client is one registered presence connection. Only the write pump writes
// to conn, and only the write pump closes it.
type Client struct {
	id          string
	role        Role
	screenID    string
	connectedAt time.Time

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu            sync.Mutex
	lastHeartbeat time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, id string, role Role, screenID string, now time.Time) *Client {
	return &Client{
		id:            id,
		role:          role,
		screenID:      screenID,
		connectedAt:   now,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, hub.cfg.SendBuffer),
		done:          make(chan struct{}),
		lastHeartbeat: now,
	}
}

// info returns a snapshot of the connection entry
func (c *Client) info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionInfo{
		ID:            c.id,
		Role:          c.role,
		ScreenID:      c.screenID,
		ConnectedAt:   c.connectedAt.UnixMilli(),
		LastHeartbeat: c.lastHeartbeat.UnixMilli(),
	}
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastHeartbeat = now
	c.mu.Unlock()
}

// enqueue queues data without blocking. Closed and full connections drop it.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		c.hub.metrics.IncDropped()
		logger.Log.Debug().
			Str("client_id", c.id).
			Str("screen_id", c.screenID).
			Msg("Send buffer full, dropping message")
		return false
	}
}

// close signals both pumps to stop
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads client messages until the connection fails or stops answering pings
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Log.Debug().
					Err(err).
					Str("client_id", c.id).
					Msg("Presence connection closed unexpectedly")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.handleMessage(c, data)
	}
}

// writePump drains the send buffer and issues protocol-level pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	writeWait := c.hub.cfg.WriteWait
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Debug().
					Err(err).
					Str("client_id", c.id).
					Msg("Presence write failed, closing connection")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Debug().
					Err(err).
					Str("client_id", c.id).
					Msg("Presence ping failed, pruning connection")
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
