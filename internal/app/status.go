// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"
	"go.uber.org/zap"

	"github.com/relabs-tech/envlogger/internal/collector"
	"github.com/relabs-tech/envlogger/internal/env"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins on the local network
	},
}

// HealthResponse is the body of GET /healthcheck.
type HealthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	Holdoff   string `json:"holdoff"`
	LastError string `json:"last_error,omitempty"`
}

// EnvironmentResponse is the body of GET /api/environment and of every
// websocket message.
type EnvironmentResponse struct {
	Reading   env.Reading `json:"reading"`
	Points    []env.Point `json:"points"`
	ElapsedMS float64     `json:"elapsed_ms"`
}

// StatusServer serves collector health, the latest batch, metrics and a
// websocket feed. It is a collector.Observer.
type StatusServer struct {
	gatherer prometheus.Gatherer
	logger   *zap.SugaredLogger
	hub      *hub

	mu        sync.RWMutex
	state     collector.State
	healthy   bool
	holdoff   time.Duration
	lastError string
	latest    *EnvironmentResponse
}

// NewStatusServer returns a server exposing metrics from gatherer.
func NewStatusServer(gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *StatusServer {
	return &StatusServer{gatherer: gatherer, logger: logger, hub: newHub()}
}

// Handler returns the router wrapped in panic recovery.
func (s *StatusServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthcheck", s.HealthCheck).Methods("GET")
	r.HandleFunc("/api/environment", s.Environment).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/ws", s.Stream).Methods("GET")

	n := negroni.New(negroni.NewRecovery())
	n.UseHandler(r)
	return n
}

// Run listens on addr until ctx is done.
func (s *StatusServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Infof("status server listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *StatusServer) StateChanged(state collector.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state != collector.StatePublishing {
		s.healthy = false
	}
}

func (s *StatusServer) Published(t collector.Tick) {
	resp := &EnvironmentResponse{
		Reading:   t.Reading,
		Points:    t.Points,
		ElapsedMS: float64(t.Elapsed) / float64(time.Millisecond),
	}

	s.mu.Lock()
	s.healthy = true
	s.holdoff = t.Holdoff
	s.lastError = ""
	s.latest = resp
	s.mu.Unlock()

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warnf("status: json encode error: %v", err)
		return
	}
	s.hub.broadcast(payload)
}

func (s *StatusServer) Failed(f collector.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdoff = f.Holdoff
	s.lastError = f.Err.Error()
}

// HealthCheck reports 200 once a tick succeeded in the current session.
func (s *StatusServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := HealthResponse{
		Status:    "ok",
		State:     s.state.String(),
		Holdoff:   s.holdoff.String(),
		LastError: s.lastError,
	}
	healthy := s.healthy
	s.mu.RUnlock()

	code := http.StatusOK
	if !healthy {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// Environment returns the latest published batch.
func (s *StatusServer) Environment(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

// Stream pushes every published batch to a websocket client.
func (s *StatusServer) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("status: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := s.hub.add()
	defer s.hub.remove(ch)

	// Reads only surface the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-s.hub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warnf("status: websocket write error: %v", err)
				return
			}
		}
	}
}

func (s *StatusServer) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnf("status: json encode error: %v", err)
	}
}

// hub fans published batches out to websocket clients. Slow clients miss
// messages rather than stall the collector.
type hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	done    chan struct{}
	once    sync.Once
}

func newHub() *hub {
	return &hub{clients: map[chan []byte]struct{}{}, done: make(chan struct{})}
}

func (h *hub) add() chan []byte {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) remove(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *hub) shutdown() {
	h.once.Do(func() { close(h.done) })
}
