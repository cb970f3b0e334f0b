package intake

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the open sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	releaser HandleReleaser
}

func NewRegistry(releaser HandleReleaser) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		releaser: releaser,
	}
}

func (r *Registry) Create() *Session {
	s := NewSession(uuid.NewString(), r.releaser)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	log.Printf("intake: opened session %s", s.ID)
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove unregisters and closes the session.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Close()
	log.Printf("intake: closed session %s", id)
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session, releasing their staged previews.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	log.Printf("intake: closed %d session(s)", len(sessions))
}
