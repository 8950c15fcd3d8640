// Package server provides the HTTP surface of the canopy daemon: the
// hook ingestion endpoints and the query/stream API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/internal/daemon/engine"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/pkg/models"
)

// Hook bodies are small; anything larger is hostile or broken.
const maxHookBody = 1 << 20

// RunningConfig holds the active configuration being used by the daemon.
// Exposed via /api/config so clients can verify what config is active.
type RunningConfig struct {
	ListenPort   int           `json:"listen_port"`
	ScanInterval time.Duration `json:"scan_interval"`
	ProcessName  string        `json:"process_name"`
	StartedAt    time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP listener on a local TCP port.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	engine        *engine.Engine
	runningConfig *RunningConfig
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
	}
}

// SetEngine sets the update engine for the server.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// ListenAndServe starts the daemon on the given loopback port.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return errors.ListenFailed(port, err)
	}

	s.server = &http.Server{
		Handler: s.Handler(),
	}
	// One short-lived connection per hook call.
	s.server.SetKeepAlivesEnabled(false)

	s.logger.WithField("port", port).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Handler returns the server's routes. Exposed so tests can exercise
// them without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/hook/", s.handleHook)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Query/stream API
	mux.HandleFunc("/api/sessions", s.handleGetSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionAction)
	mux.HandleFunc("/api/stream", s.handleStreamState)
	mux.HandleFunc("/api/ws", s.handleWebsocket)
	mux.HandleFunc("/api/config", s.handleGetConfig)

	return mux
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHook ingests one hook event per request. Malformed payloads are
// rejected at this boundary; nothing reaches the engine.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	kindStr := strings.TrimPrefix(r.URL.Path, "/hook/")
	kind, ok := models.ParseHookKind(kindStr)
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := models.ParseHookEvent(kind, body, time.Now())
	if err != nil {
		s.logger.WithError(err).WithField("kind", kind).Warn("Rejected malformed hook payload")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.engine.Enqueue(store.Update{
		Type:    store.UpdateHook,
		Source:  "server",
		Payload: *ev,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleGetSessions returns the published session snapshot in display order.
func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	sessions := s.engine.Store().GetSessions()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// handleSessionAction routes POST /api/sessions/{pid}/{action} for
// action ∈ {refresh, ack, reorder}.
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return
	}
	if s.engine.Store().GetSession(pid) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "refresh":
		s.engine.Enqueue(store.Update{Type: store.UpdateRefresh, Source: "server", Payload: pid})
	case "ack":
		s.engine.Enqueue(store.Update{Type: store.UpdateAck, Source: "server", Payload: pid})
	case "reorder":
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		s.engine.Enqueue(store.Update{
			Type:    store.UpdateReorder,
			Source:  "server",
			Payload: store.ReorderRequest{PID: pid, Index: req.Index},
		})
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// apiStateUpdate is the wire shape of one stream event, shared by the
// SSE and websocket endpoints.
type apiStateUpdate struct {
	UpdateType string                  `json:"update_type"`
	Source     string                  `json:"source,omitempty"`
	Sessions   []*models.SessionRecord `json:"sessions"`
	ConfigFile string                  `json:"config_file,omitempty"`
}

func (s *Server) makeAPIUpdate(u store.Update) apiStateUpdate {
	out := apiStateUpdate{
		UpdateType: string(u.Type),
		Source:     u.Source,
		Sessions:   s.engine.Store().GetSessions(),
	}
	if u.Type == store.UpdateConfigReload {
		if file, ok := u.Payload.(string); ok {
			out.ConfigFile = file
		}
	}
	return out
}

// handleStreamState provides Server-Sent Events (SSE) for real-time
// session updates.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	// Send the current snapshot immediately so the client has data right away.
	initial := apiStateUpdate{UpdateType: "initial", Sessions: s.engine.Store().GetSessions()}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(s.makeAPIUpdate(update))
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.runningConfig)
}
