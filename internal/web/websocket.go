package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type errorFrame struct {
	Error string `json:"error"`
}

// handleWebSocket streams session snapshots to the client and accepts
// {"input": "..."} frames that are fed into the session's selection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	current, err := s.sessions.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates := s.sessions.Subscribe(id)
	defer s.sessions.Unsubscribe(id, updates)

	// Re-read after subscribing so no update slips between Get and Subscribe.
	if latest, err := s.sessions.Get(id); err == nil {
		current = latest
	}
	if err := s.writeFrame(conn, current); err != nil {
		return
	}
	if current.Status.Done() {
		return
	}

	errs := make(chan error, 1)
	closed := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go s.readInputs(conn, id, errs, closed, done)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case resp, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeFrame(conn, resp); err != nil {
				return
			}
			if resp.Status.Done() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(resp.Status)))
				return
			}

		case err := <-errs:
			if err := s.writeFrame(conn, errorFrame{Error: err.Error()}); err != nil {
				return
			}

		case <-closed:
			return

		case <-s.ctx.Done():
			return

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readInputs feeds client frames into the session until the connection drops.
// Only errors are reported back; successful input shows up as a session update.
func (s *Server) readInputs(conn *websocket.Conn, id string, errs chan<- error, closed chan<- struct{}, done <-chan struct{}) {
	defer close(closed)
	for {
		var req InputRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket read for session %s: %v", id, err)
			}
			return
		}
		if _, err := s.sessions.Input(s.ctx, id, req.Input); err != nil {
			select {
			case errs <- err:
			case <-done:
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal frame: %v", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to write WebSocket message: %v", err)
		return err
	}
	return nil
}
