package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The daemon only binds loopback.
		return true
	},
}

// handleWebsocket upgrades the connection and streams the same updates
// the SSE endpoint serves, as JSON text messages.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	s.logger.Debug("Websocket client connected")

	// Read pump: we never expect client messages, but reading is what
	// surfaces pongs and closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeJSON := func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	initial := apiStateUpdate{UpdateType: "initial", Sessions: s.engine.Store().GetSessions()}
	if err := writeJSON(initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug("Websocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if err := writeJSON(s.makeAPIUpdate(update)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
