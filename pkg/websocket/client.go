package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/session"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Handler receives the typed side of a connection's lifecycle. The
// gateway implements it.
type Handler interface {
	HandleFrame(conn session.Conn, raw []byte)
	Disconnected(conn session.Conn)
}

// Client owns one physical WebSocket connection for one authenticated
// identity: read/write pumps, ping/pong deadlines and a buffered,
// non-blocking send channel.
type Client struct {
	id      identity.Identity
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	handler Handler
	logger  *logger.Logger
	once    sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, id identity.Identity, handler Handler, log *logger.Logger) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		handler: handler,
		logger:  log,
	}
}

// Identity implements session.Conn.
func (c *Client) Identity() identity.Identity {
	return c.id
}

// Send queues a frame for delivery. It never blocks; a full buffer
// means the frame is dropped and false is returned.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tears the connection down; safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadPump pumps inbound frames into the handler. It runs until the
// connection drops for any reason, then triggers the cleanup path.
func (c *Client) ReadPump() {
	defer func() {
		c.handler.Disconnected(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error",
					logger.Err(err),
					logger.String("user_id", c.id.UserID.String()),
				)
			}
			break
		}
		c.handler.HandleFrame(c, message)
	}
}

// WritePump pumps queued frames to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
