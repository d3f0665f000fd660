package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tagmatch/internal/metadata"

	"github.com/google/uuid"
)

// SessionStatus represents where a selection session stands
type SessionStatus string

const (
	StatusSearching SessionStatus = "searching"
	StatusAwaiting  SessionStatus = "awaiting"
	StatusResolved  SessionStatus = "resolved"
	StatusAbandoned SessionStatus = "abandoned"
	StatusFailed    SessionStatus = "failed"
)

// Done reports whether the session accepts no more input.
func (s SessionStatus) Done() bool {
	return s == StatusResolved || s == StatusAbandoned || s == StatusFailed
}

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotReady is returned for input sent while the search still runs.
	ErrSessionNotReady = errors.New("session is still searching")
)

// Session is one remote selection: a search followed by operator input.
type Session struct {
	ID          string
	Query       string
	Mode        metadata.Mode
	Tracks      []metadata.LocalTrack
	Status      SessionStatus
	View        metadata.View
	Result      *metadata.MatchResult
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Cancel      context.CancelFunc

	// input serializes access to selection, which is not safe for concurrent use.
	input     sync.Mutex
	selection *metadata.Selection
}

// SessionManager manages selection sessions
type SessionManager struct {
	sessions  map[string]*Session
	mu        sync.RWMutex
	listeners map[string][]chan SessionResponse
}

const sessionRetention = 1 * time.Hour

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		listeners: make(map[string][]chan SessionResponse),
	}
}

// StartCleanup starts a background goroutine that removes sessions finished
// more than an hour ago. Stops when ctx is cancelled.
func (sm *SessionManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.cleanup()
			}
		}
	}()
}

func (sm *SessionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := time.Now().Add(-sessionRetention)
	for id, s := range sm.sessions {
		if s.CompletedAt != nil && s.CompletedAt.Before(cutoff) {
			delete(sm.sessions, id)
			for _, ch := range sm.listeners[id] {
				close(ch)
			}
			delete(sm.listeners, id)
		}
	}
}

// Create registers a new session in the searching state
func (sm *SessionManager) Create(query string, mode metadata.Mode, tracks []metadata.LocalTrack) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s := &Session{
		ID:        uuid.NewString(),
		Query:     query,
		Mode:      mode,
		Tracks:    tracks,
		Status:    StatusSearching,
		CreatedAt: time.Now(),
	}
	sm.sessions[s.ID] = s
	return s
}

// Get retrieves a snapshot of a session by ID
func (sm *SessionManager) Get(id string) (SessionResponse, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, ok := sm.sessions[id]
	if !ok {
		return SessionResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.response(), nil
}

// List returns snapshots of all sessions, oldest first
func (sm *SessionManager) List() []SessionResponse {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]SessionResponse, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s.response())
	}
	sortResponses(out)
	return out
}

// Update applies fn to a session and notifies subscribers
func (sm *SessionManager) Update(id string, fn func(*Session)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	fn(s)

	if s.Status.Done() && s.CompletedAt == nil {
		now := time.Now()
		s.CompletedAt = &now
	}

	sm.notifyListeners(id, s.response())
	return nil
}

// Start attaches the selection built from the search results and presents it.
func (sm *SessionManager) Start(id string, sel *metadata.Selection) error {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.input.Lock()
	defer s.input.Unlock()

	s.selection = sel
	view := sel.Present()
	return sm.Update(id, func(s *Session) {
		if s.Status.Done() {
			return
		}
		s.Status = StatusAwaiting
		s.View = view
	})
}

// Input feeds one line of operator input into a session's selection.
// Invalid input is not an error: the returned snapshot carries the message.
func (sm *SessionManager) Input(ctx context.Context, id, input string) (SessionResponse, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	var status SessionStatus
	if ok {
		status = s.Status
	}
	sm.mu.RUnlock()
	if !ok {
		return SessionResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.input.Lock()
	defer s.input.Unlock()

	if status.Done() {
		return SessionResponse{}, metadata.ErrSessionClosed
	}
	if s.selection == nil {
		return SessionResponse{}, fmt.Errorf("%w: %s", ErrSessionNotReady, id)
	}

	view, err := s.selection.Handle(ctx, input)
	if err != nil && !errors.Is(err, metadata.ErrInvalidSelection) {
		return SessionResponse{}, err
	}
	if view.State == metadata.StatePresenting {
		view = s.selection.Present()
	}

	result, resolved := s.selection.Result()
	if err := sm.Update(id, func(s *Session) {
		s.View = view
		switch view.State {
		case metadata.StateResolved:
			if resolved {
				s.Result = &result
			}
			s.Status = StatusResolved
		case metadata.StateAbandoned:
			s.Status = StatusAbandoned
		}
	}); err != nil {
		return SessionResponse{}, err
	}
	return sm.Get(id)
}

// Subscribe subscribes to session updates
func (sm *SessionManager) Subscribe(id string) <-chan SessionResponse {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan SessionResponse, 10)
	sm.listeners[id] = append(sm.listeners[id], ch)
	return ch
}

// Unsubscribe removes a listener
func (sm *SessionManager) Unsubscribe(id string, ch <-chan SessionResponse) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	listeners := sm.listeners[id]
	for i, listener := range listeners {
		if listener == ch {
			sm.listeners[id] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners
func (sm *SessionManager) notifyListeners(id string, resp SessionResponse) {
	for _, ch := range sm.listeners[id] {
		select {
		case ch <- resp:
		default:
		}
	}
}

// Cancel abandons a session that has not finished yet.
func (sm *SessionManager) Cancel(id string) error {
	return sm.Update(id, func(s *Session) {
		if s.Status.Done() {
			return
		}
		if s.Cancel != nil {
			s.Cancel()
		}
		s.Status = StatusAbandoned
	})
}
