// Package dashboard provides a local WebSocket server reporting sync status.
//
// The dashboard broadcasts controller status changes and document statistics
// to connected WebSocket clients. It reports what the local controller knows;
// it never relays remote changes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeStatus carries the controller's sync status
	MessageTypeStatus MessageType = "status"

	// MessageTypeStats carries document statistics
	MessageTypeStats MessageType = "stats"

	// MessageTypeImport reports a file picked up by the import watcher
	MessageTypeImport MessageType = "import"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// sendBuffer is the number of messages queued per client before the client
// is considered too slow and dropped.
const sendBuffer = 32

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 5 * time.Second

// client is one WebSocket connection with its outgoing queue. The queue is
// closed exactly once, by whoever removes the client from the server.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server accepts WebSocket clients and fans dashboard messages out to them.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	status  []byte
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   8080,
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard server. Call Start to listen.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		logger:  config.Logger,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the listener down. Later
// broadcasts are ignored.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if s.server != nil {
		if serr := s.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("failed to shut down dashboard: %w", serr)
		}
	}
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.cancel()
	s.wg.Wait()
	s.logger.Printf("Dashboard stopped")
	return err
}

// Broadcast queues msg for every connected client. A client whose queue is
// full is disconnected instead of stalling the others. The latest status
// message is kept and sent first to clients that connect later.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if msg.Type == MessageTypeStatus {
		s.status = data
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Printf("Dropping slow client (%d messages queued)", len(c.send))
			s.removeLocked(c)
		}
	}
}

// register adds a client whose queue already holds the welcome message. The
// welcome is queued under the same lock as broadcasts, so nothing overtakes it.
func (s *Server) register(conn *websocket.Conn) (*client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, false
	}

	welcome := s.status
	if welcome == nil {
		welcome, _ = json.Marshal(Message{Type: MessageTypeStatus, Timestamp: time.Now()})
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	c.send <- welcome
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	s.logger.Printf("Client connected (total: %d)", len(s.clients))
	return c, true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.logger.Printf("Client disconnected (total: %d)", len(s.clients))
}

// handleWebSocket serves one client until it disconnects, falls behind or
// the server stops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c, ok := s.register(conn)
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.wg.Done()
	defer s.remove(c)

	// Clients only listen; CloseRead discards anything they send and ends
	// ctx when the connection goes away.
	ctx := conn.CloseRead(s.ctx)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				s.closeQueue(c)
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Printf("Failed to send to client: %v", err)
				_ = conn.CloseNow()
				return
			}
		case <-ctx.Done():
			_ = conn.CloseNow()
			return
		}
	}
}

// closeQueue closes the connection of a client whose queue was closed,
// telling it whether the server is stopping or it fell behind.
func (s *Server) closeQueue(c *client) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	_ = c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// handleRoot serves a page that prints every message from /ws.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, rootPage)
}

const rootPage = `<!DOCTYPE html>
<title>todosync</title>
<h1>todosync</h1>
<pre id="log"></pre>
<script>
const log = document.getElementById("log");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => { log.textContent = ev.data + "\n" + log.textContent; };
ws.onclose = (ev) => { log.textContent = "disconnected: " + ev.reason + "\n" + log.textContent; };
</script>
`

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
