// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aegis-foundation/aegis/lib/config"
	"github.com/aegis-foundation/aegis/lib/protocol"
	"github.com/aegis-foundation/aegis/lib/router"
)

// maxRequestBody bounds a single POST /mcp body.
const maxRequestBody = 4 * 1024 * 1024

// sessionHeader names the event-stream session a response should be
// delivered to instead of the POST body. Clients that never open
// GET /events can ignore it entirely.
const sessionHeader = "X-Aegis-Session"

// Server is the HTTP binding: POST /mcp for protocol frames,
// GET /health for liveness, GET /metrics for counters, GET /events
// for the event-stream response channel. Middleware runs in a fixed
// order before the router sees a request: auth, rate limit, request
// logging, metrics.
type Server struct {
	address         string
	router          *router.Router
	logger          *slog.Logger
	metrics         *Metrics
	serviceName     string
	serviceVersion  string
	authConfig      config.AuthConfig
	rateConfig      config.RateLimitConfig
	shutdownTimeout time.Duration

	hub *eventHub

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address is the TCP listen address (e.g., "127.0.0.1:9000").
	// Required.
	Address string

	// Router handles decoded requests. Required.
	Router *router.Router

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Metrics receives the transport counters. Required; the caller
	// shares it with the router's tool-call hook.
	Metrics *Metrics

	// ServiceName and ServiceVersion appear in the health document.
	ServiceName    string
	ServiceVersion string

	// Auth and RateLimit are the middleware configurations.
	Auth      config.AuthConfig
	RateLimit config.RateLimitConfig

	// ShutdownTimeout bounds graceful shutdown. Zero means 10s.
	ShutdownTimeout time.Duration
}

// NewServer creates an HTTP transport server. Call Serve to start it.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Address == "" {
		panic("transport.Server: Address is required")
	}
	if cfg.Router == nil {
		panic("transport.Server: Router is required")
	}
	if cfg.Logger == nil {
		panic("transport.Server: Logger is required")
	}
	if cfg.Metrics == nil {
		panic("transport.Server: Metrics is required")
	}

	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Server{
		address:         cfg.Address,
		router:          cfg.Router,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		serviceName:     cfg.ServiceName,
		serviceVersion:  cfg.ServiceVersion,
		authConfig:      cfg.Auth,
		rateConfig:      cfg.RateLimit,
		shutdownTimeout: timeout,
		hub:             newEventHub(),
		ready:           make(chan struct{}),
	}
}

// Ready returns a channel closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the resolved listen address. Valid after Ready is
// closed; useful when the configured port is 0.
func (s *Server) Addr() net.Addr { return s.addr }

// Handler assembles the route mux behind the middleware chain.
// Exposed for tests that drive the transport with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", methodHandler(http.MethodPost, s.handleMCP))
	mux.HandleFunc("/health", methodHandler(http.MethodGet, s.handleHealth))
	mux.HandleFunc("/metrics", methodHandler(http.MethodGet, s.handleMetrics))
	mux.HandleFunc("/events", methodHandler(http.MethodGet, s.handleEvents))

	var handler http.Handler = mux
	handler = withMetrics(s.metrics, handler)
	handler = withRequestLogging(s.logger, handler)
	handler = withRateLimit(s.rateConfig, s.logger, handler)
	handler = withAuth(s.authConfig, s.logger, handler)
	return handler
}

// methodHandler restricts a handler to a single HTTP method, replying
// 405 otherwise. Go 1.22 ServeMux method-prefixed patterns aren't
// available on this toolchain, so routing does the method check here.
func methodHandler(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// Serve binds the listener and accepts connections until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case err := <-serveDone:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	<-serveDone
	return nil
}

// handleMCP processes one JSON-RPC request per POST body. When the
// client names a connected event-stream session, the response goes to
// that stream and the POST returns 202; otherwise the response is the
// POST body. Notifications always return 202 with no body.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, map[string]any{"error": "reading request body"})
		return
	}

	request, decodeErr := protocol.DecodeRequest(body)
	if decodeErr != nil {
		s.writeResponse(w, protocol.ErrorResponse(protocol.NullID(), decodeErr))
		return
	}

	response := s.router.Handle(r.Context(), request)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if session := r.Header.Get(sessionHeader); session != "" {
		data, err := protocol.EncodeResponse(response)
		if err == nil && s.hub.deliver(session, data) {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// Fall through: no such stream, answer inline.
	}
	s.writeResponse(w, response)
}

func (s *Server) writeResponse(w http.ResponseWriter, response *protocol.Response) {
	data, err := protocol.EncodeResponse(response)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		writeJSONError(w, http.StatusInternalServerError, map[string]any{"error": "encoding response"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","service":%q,"version":%q}`+"\n",
		s.serviceName, s.serviceVersion)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.metrics.Snapshot())
}

// handleEvents holds an event-stream open and relays responses
// delivered to this session by POST /mcp. The session name comes from
// the session query parameter, defaulting to the client identity.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = clientIdentity(r)
	}

	events, cleanup, err := s.hub.subscribe(session)
	if err != nil {
		writeJSONError(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ready\ndata: {\"session\":%q}\n\n", session)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: response\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// eventHub routes encoded responses to connected event streams by
// session name. One subscriber per session.
type eventHub struct {
	mu       sync.Mutex
	sessions map[string]chan []byte
}

func newEventHub() *eventHub {
	return &eventHub{sessions: make(map[string]chan []byte)}
}

func (h *eventHub) subscribe(session string) (<-chan []byte, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.sessions[session]; exists {
		return nil, nil, fmt.Errorf("session %q already has an open event stream", session)
	}
	ch := make(chan []byte, 16)
	h.sessions[session] = ch

	cleanup := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions, session)
	}
	return ch, cleanup, nil
}

// deliver sends data to the session's stream. Returns false when the
// session has no open stream or its buffer is full (the caller then
// answers inline instead).
func (h *eventHub) deliver(session string, data []byte) bool {
	h.mu.Lock()
	ch, ok := h.sessions[session]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}

func writeJSON(w io.Writer, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	w.Write(append(data, '\n'))
}
