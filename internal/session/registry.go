package session

import (
	"sync"

	"github.com/park285/chess-arena/internal/domain"
)

// Registry indexes live sessions by id and by participant. Its lock is never
// held while a session lock is taken.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Session), byUser: make(map[string]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.id] = s
	r.byUser[s.white.Email] = s
	r.byUser[s.black.Email] = s
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	for _, e := range []string{s.white.Email, s.black.Email} {
		// the player may already be in a newer session
		if r.byUser[e] == s {
			delete(r.byUser, e)
		}
	}
}

func (r *Registry) ByUser(email string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[domain.NormalizeEmail(email)]
	return s, ok
}

func (r *Registry) ByID(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
