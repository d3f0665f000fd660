// Package web exposes the operator selection flow over HTTP and WebSocket so
// a remote front end can drive it.
package web

import (
	"context"
	"net/http"

	"tagmatch/internal/config"
	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Searcher runs provider searches on behalf of a session.
// *metadata.Orchestrator satisfies it.
type Searcher interface {
	SearchAll(ctx context.Context, tracks []metadata.LocalTrack, mode metadata.Mode) metadata.ProviderResultSet
	ManualSearch(ctx context.Context, query string, tracks []metadata.LocalTrack) metadata.ProviderResultSet
}

type Server struct {
	ctx      context.Context
	sessions *SessionManager
	searcher Searcher
	config   config.Config
	logger   *logger.Logger
}

func NewServer(ctx context.Context, sessions *SessionManager, searcher Searcher, cfg config.Config, log *logger.Logger) *Server {
	return &Server{
		ctx:      ctx,
		sessions: sessions,
		searcher: searcher,
		config:   cfg,
		logger:   log,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/sessions", s.handleListSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionAction)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
