package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/clara/pkg/logger"
)

// Message types pushed to the page
const (
	MessageTypeState = "state" // full session snapshot
	MessageTypeClose = "close" // session evicted; the page should reload
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// envelope routes a message to the clients of one session
type envelope struct {
	sessionID string
	message   *Message
}

// Client represents a WebSocket client bound to one session
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
}

// Server fans session updates out to the browsers watching them
type Server struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server. With no allowed origins every
// origin is accepted.
func NewServer(logger *logger.Logger, allowedOrigins ...string) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Server{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		logger: logger.Named("web-socket"),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for sessionID, clients := range s.clients {
				for client := range clients {
					client.shutdown()
				}
				delete(s.clients, sessionID)
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			if s.clients[client.sessionID] == nil {
				s.clients[client.sessionID] = make(map[*Client]bool)
			}
			s.clients[client.sessionID][client] = true
			count := len(s.clients[client.sessionID])
			s.mu.Unlock()
			s.logger.Debug("Client registered",
				String("session_id", client.sessionID),
				String("client_count", fmt.Sprintf("%d", count)))

		case client := <-s.unregister:
			s.mu.Lock()
			s.remove(client)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", String("session_id", client.sessionID))

		case env := <-s.broadcast:
			s.mu.Lock()
			var slow []*Client
			for client := range s.clients[env.sessionID] {
				select {
				case client.send <- env.message:
				default:
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				s.logger.Warn("Dropping slow client", String("session_id", client.sessionID))
				s.remove(client)
			}
			s.mu.Unlock()
		}
	}
}

// remove deletes the client and closes its send channel. Must be called
// with s.mu held.
func (s *Server) remove(client *Client) {
	clients, ok := s.clients[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(s.clients, client.sessionID)
	}
	client.shutdown()
}

// HandleConnection upgrades the request and subscribes the connection to
// sessionID. initial, if non-nil, is the first message the client receives.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string, initial *Message) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			Error(err),
			String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan *Message, sendBuffer),
		server:    s,
	}
	if initial != nil {
		client.send <- initial
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Publish queues a message for every client watching sessionID
func (s *Server) Publish(sessionID string, message *Message) {
	select {
	case s.broadcast <- envelope{sessionID: sessionID, message: message}:
	case <-s.done:
	}
}

// ClientCount returns the number of connections watching sessionID
func (s *Server) ClientCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[sessionID])
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump discards incoming frames and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var (
	String = logger.String
	Error  = logger.Error
)
