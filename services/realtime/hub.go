package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultMaxClients caps concurrent websocket connections
const DefaultMaxClients = 100

// Hub accepts websocket connections and keeps them in a Registry for the
// lifetime of the connection.
type Hub struct {
	registry   *Registry
	upgrader   websocket.Upgrader
	maxClients int
	logger     *zap.Logger
}

func NewHub(registry *Registry, maxClients int, logger *zap.Logger) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		maxClients: maxClients,
		logger:     logger,
	}
}

// HandleWebSocket upgrades the request and registers the connection.
// The connection is unregistered when its read loop ends.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.registry.Count() >= h.maxClients {
		h.logger.Warn("websocket client rejected: max clients reached", zap.Int("max", h.maxClients))
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), conn, h.logger)
	h.registry.Register(client)
	h.logger.Info("websocket client connected",
		zap.String("id", client.ID()),
		zap.String("remote", r.RemoteAddr),
		zap.Int("total", h.registry.Count()),
	)

	go client.writePump()
	go client.readPump(func(c *Client) {
		h.registry.Unregister(c)
		h.logger.Info("websocket client disconnected",
			zap.String("id", c.ID()),
			zap.Int("total", h.registry.Count()),
		)
	})
}

// Shutdown closes every websocket client still registered.
func (h *Hub) Shutdown() {
	for _, s := range h.registry.Snapshot() {
		if c, ok := s.(*Client); ok {
			c.close()
		}
	}
	h.logger.Info("websocket hub shutdown complete")
}
