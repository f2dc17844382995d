// Package devserver exposes a live store over HTTP for development-time
// inspection.
//
// It serves the current state as JSON, accepts dispatches over HTTP, and
// streams committed transitions to WebSocket clients. It is a debugging
// surface, not a production API: bind it to localhost unless you know
// what you are doing.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

// sendBuffer is the per-client outbound event buffer. A client that falls
// this far behind is disconnected rather than allowed to stall the
// notification pass.
const sendBuffer = 64

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 10 * time.Second

// Config configures the inspection server.
type Config struct {
	// Addr is the listen address, e.g. "localhost:7430".
	Addr string

	// AllowAnyOrigin disables the WebSocket origin check.
	AllowAnyOrigin bool

	// Logger is used for request and session logging.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// EnableMetrics mounts the Prometheus /metrics endpoint.
	EnableMetrics bool
}

// Event is one committed transition as sent to WebSocket clients.
type Event struct {
	// Seq is a monotonically increasing transition sequence number.
	Seq uint64 `json:"seq"`

	// Changed lists the top-level keys whose value changed.
	Changed []string `json:"changed"`

	// State is the full state after the transition.
	State store.State `json:"state"`
}

// Server inspects a single store.
type Server struct {
	st     *store.Store
	cfg    Config
	logger *slog.Logger

	router   chi.Router
	httpSrv  *http.Server
	upgrader websocket.Upgrader

	// mu protects clients, lastState and seq. The transition callback
	// runs synchronously inside Dispatch, so work under mu stays small:
	// diff, marshal, enqueue.
	mu        sync.Mutex
	clients   map[*client]struct{}
	lastState store.State
	seq       uint64

	unsub func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates an inspection server over st.
func New(st *store.Store, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		st:      st,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		lastState: st.State(),
	}
	if cfg.AllowAnyOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	r := chi.NewRouter()
	r.Get("/state", s.handleState)
	r.Post("/dispatch", s.handleDispatch)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWS)
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	s.router = r

	// The subscription never reads through a view, so it is notified on
	// every committed transition.
	s.unsub = st.Subscribe(s.onTransition)

	return s
}

// Handler returns the server's HTTP handler, for mounting into a larger
// mux or an httptest server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts listening on cfg.Addr and blocks until the server stops.
func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}
	s.logger.Info("inspection server listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, detaches from the store and closes all
// WebSocket sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsub()

	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// onTransition runs inside the store's notification pass for every
// committed transition: diff against the previous state, then fan the
// event out to connected clients.
func (s *Server) onTransition() {
	newState := s.st.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := changedKeys(s.lastState, newState)
	s.lastState = newState
	s.seq++

	if len(s.clients) == 0 {
		return
	}

	payload, err := json.Marshal(Event{
		Seq:     s.seq,
		Changed: changed,
		State:   newState,
	})
	if err != nil {
		s.logger.Error("marshaling transition event", "error", err)
		return
	}

	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			// Client too slow; drop it instead of blocking dispatch.
			s.logger.Warn("dropping slow websocket client")
			close(c.send)
			delete(s.clients, c)
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.st.State()); err != nil {
		s.logger.Error("encoding state", "error", err)
	}
}

// wireAction is the JSON shape accepted by POST /dispatch.
type wireAction struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var wire wireAction
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "invalid action JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if wire.Type == "" {
		http.Error(w, "action type is required", http.StatusBadRequest)
		return
	}

	if err := s.st.Dispatch(store.Act{Type: wire.Type, Payload: wire.Payload}); err != nil {
		s.logger.Error("dispatch failed", "kind", wire.Type, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Debug("dispatched", "kind", wire.Type)
	s.handleState(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("websocket client connected", "clients", n)

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop drains the client's send channel onto the socket.
// Exits when the channel closes (server-side drop) or a write fails.
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.remove(c)
			return
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
// Clients only listen; dispatches go over POST /dispatch.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

// remove detaches a client if still registered, closing its send channel
// so the write loop exits.
func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
	}
}

// changedKeys lists top-level keys that differ between two states,
// including keys only present on one side.
func changedKeys(oldState, newState store.State) []string {
	var changed []string
	for k, newVal := range newState {
		oldVal, ok := oldState[k]
		if !ok || !store.SameValue(oldVal, newVal) {
			changed = append(changed, k)
		}
	}
	for k := range oldState {
		if _, ok := newState[k]; !ok {
			changed = append(changed, k)
		}
	}
	return changed
}
