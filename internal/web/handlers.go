package web

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"tagmatch/internal/metadata"
)

const timeLayout = "2006-01-02 15:04:05"

type SearchRequest struct {
	Query  string                `json:"query"`
	Tracks []metadata.LocalTrack `json:"tracks"`
	Mode   string                `json:"mode"`
}

type InputRequest struct {
	Input string `json:"input"`
}

type SessionResponse struct {
	ID          string                `json:"id"`
	Query       string                `json:"query,omitempty"`
	Mode        metadata.Mode         `json:"mode,omitempty"`
	Tracks      int                   `json:"tracks"`
	Status      SessionStatus         `json:"status"`
	View        *metadata.View        `json:"view,omitempty"`
	Result      *metadata.MatchResult `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   string                `json:"created_at"`
	CompletedAt *string               `json:"completed_at,omitempty"`

	created time.Time
}

func (s *Session) response() SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Query:     s.Query,
		Mode:      s.Mode,
		Tracks:    len(s.Tracks),
		Status:    s.Status,
		Result:    s.Result,
		Error:     s.Error,
		CreatedAt: s.CreatedAt.Format(timeLayout),
		created:   s.CreatedAt,
	}
	if s.View.State != "" {
		view := s.View
		resp.View = &view
	}
	if s.CompletedAt != nil {
		completed := s.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &completed
	}
	return resp
}

func sortResponses(rs []SessionResponse) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].created.Equal(rs[j].created) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].created.Before(rs[j].created)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" && len(req.Tracks) == 0 {
		http.Error(w, "query or tracks is required", http.StatusBadRequest)
		return
	}

	mode := s.config.SearchMode()
	if req.Mode != "" {
		m, ok := metadata.ParseMode(req.Mode)
		if !ok {
			http.Error(w, "mode must be album or track", http.StatusBadRequest)
			return
		}
		mode = m
	}

	sess := s.sessions.Create(req.Query, mode, req.Tracks)
	s.logger.Info("Created session %s (query %q, %d tracks)", sess.ID, req.Query, len(req.Tracks))

	resp, _ := s.sessions.Get(sess.ID)
	go s.processSession(sess.ID, req.Query, mode, req.Tracks)

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	// /api/sessions/{id}, /api/sessions/{id}/input or /api/sessions/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	id := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		resp, err := s.sessions.Get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "input":
		var req InputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		resp, err := s.sessions.Input(s.ctx, id, req.Input)
		if err != nil {
			http.Error(w, err.Error(), inputErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel":
		if err := s.sessions.Cancel(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		resp, _ := s.sessions.Get(id)
		writeJSON(w, http.StatusOK, resp)

	default:
		http.Error(w, "Invalid request", http.StatusBadRequest)
	}
}

func inputErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, metadata.ErrSessionClosed), errors.Is(err, ErrSessionNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) processSession(id, query string, mode metadata.Mode, tracks []metadata.LocalTrack) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.sessions.Update(id, func(sess *Session) {
		sess.Cancel = cancel
	})

	s.logger.Debug("Searching for session %s", id)

	var set metadata.ProviderResultSet
	if query != "" {
		set = s.searcher.ManualSearch(ctx, query, tracks)
	} else {
		set = s.searcher.SearchAll(ctx, tracks, mode)
	}

	if err := ctx.Err(); err != nil {
		s.logger.Debug("Session %s search stopped: %v", id, err)
		s.sessions.Update(id, func(sess *Session) {
			if !sess.Status.Done() {
				sess.Status = StatusFailed
				sess.Error = err.Error()
			}
		})
		return
	}

	sel := metadata.NewSelection(set, tracks, s.searcher)
	if err := s.sessions.Start(id, sel); err != nil {
		s.logger.Error("Failed to start session %s: %v", id, err)
		return
	}

	s.logger.Info("Session %s: %d matches from %d providers", id, set.Total(), set.Len())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
