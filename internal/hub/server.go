// Package hub is the notification gateway: one WebSocket endpoint where each
// client subscribes to its own topic and receives pairing events published
// through the bus. Delivery is best-effort; a client that misses an event
// refreshes its lists through the directory API.
package hub

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/carelink/internal/bus"
)

// Server owns the WebSocket endpoint and the set of connected clients.
type Server struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
}

func NewServer(b *bus.Bus) *Server {
	return &Server{
		bus: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Identity and authorization live in the directory API; the hub
			// only fans out already-authorized events.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// HandleWS upgrades the connection and runs the client until it disconnects.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := NewClient(conn, s)
	s.register(c)
	defer s.unregister(c)

	slog.Debug("hub client connected", "client", c.ID(), "remote", r.RemoteAddr)
	c.Run(r.Context())
	slog.Debug("hub client disconnected", "client", c.ID())
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown disconnects every client.
func (s *Server) Shutdown() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID()] = c
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.ID())
	s.mu.Unlock()
	c.Close()
}
