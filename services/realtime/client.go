package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 256
	maxMessageSize = 512
)

// Client is a websocket subscriber. Frames are queued on a buffered channel
// and written by writePump, so SendText never blocks.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

func newClient(id string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// SendText queues payload for delivery. It fails when the client is closed or its buffer is full.
func (c *Client) SendText(payload string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("%w: client %s closed", ErrDeliveryFailed, c.id)
	}
	select {
	case c.send <- []byte(payload):
		return nil
	default:
		return fmt.Errorf("%w: client %s send buffer full", ErrDeliveryFailed, c.id)
	}
}

// close stops writePump; safe to call more than once
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump writes queued frames and pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.String("id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the read deadline alive and runs onClose once the peer goes away.
// Inbound frames are discarded.
func (c *Client) readPump(onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.String("id", c.id), zap.Error(err))
			}
			return
		}
	}
}
