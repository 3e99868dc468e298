package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/healthverse/care-relay/internal/domain"
	pkglog "github.com/healthverse/care-relay/pkg/log"
)

// DisconnectHandler is called when a client disconnects.
type DisconnectHandler func(*Client)

// Client represents a connected WebSocket client.
type Client struct {
	ID                string
	Hub               *Hub
	Conn              *websocket.Conn
	Send              chan []byte
	Session           *domain.Session
	disconnectHandler DisconnectHandler

	// roomID is owned by the hub goroutine.
	roomID string
}

// NewClient creates a client bound to hub. conn may be nil for clients that
// are never pumped.
func NewClient(id string, h *Hub, conn *websocket.Conn, session *domain.Session) *Client {
	return &Client{
		ID:      id,
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, h.config.SendBuffer),
		Session: session,
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// ReadPump pumps messages from the WebSocket connection to handler. It
// unregisters the client when the connection ends, then calls the
// disconnect handler.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		// Unregister first so nothing can be relayed to c once its
		// disconnect handler has run.
		c.Hub.Unregister(c)
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Conn.Close()
	}()

	cfg := c.Hub.config
	if cfg.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(cfg.MaxMessageSize)
	}
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := pkglog.L()
				l.Warn().Err(err).
					Str(pkglog.FieldPool, c.Hub.pool).
					Str(pkglog.FieldConnID, c.ID).
					Msg("websocket error")
			}
			break
		}

		if c.Session != nil {
			c.Session.UpdateActivity()
		}

		// Any inbound frame extends the deadline, not only pongs.
		c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		handler(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection. It
// exits when Send is closed by the hub.
func (c *Client) WritePump() {
	cfg := c.Hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
