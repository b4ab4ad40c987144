package conversation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
)

// Session is one user's ordered conversation turns.
//
// Turns within a session never overlap: Engine.Ask holds the session's turn
// lock for the whole call.
type Session struct {
	ID string

	turn sync.Mutex

	mu    sync.RWMutex
	turns []generation.Turn
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Turns returns a copy of the history, oldest first.
func (s *Session) Turns() []generation.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]generation.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Reset clears the history. It waits for an in-flight turn to finish, so
// a turn never appends into a history that was cleared under it.
func (s *Session) Reset() {
	s.turn.Lock()
	defer s.turn.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

func (s *Session) append(role generation.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, generation.Turn{Role: role, Content: content})
}

// Sessions holds sessions by id for the lifetime of the process.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Get returns the session with id, creating it if needed. An empty id
// creates a session under a fresh UUID. The returned id is the session's.
func (r *Sessions) Get(id string) (*Session, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s, ok := r.sessions[id]
	if !ok {
		s = NewSession(id)
		r.sessions[id] = s
	}
	return s, id
}

// Reset clears the history of session id and reports whether it existed.
func (r *Sessions) Reset(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if ok {
		s.Reset()
	}
	return ok
}

// Len returns the number of known sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
