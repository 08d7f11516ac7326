package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PassStore tracks single-use passes handed out after a successful captcha
// verification. A pass authorizes exactly one enqueue before it expires.
type PassStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	passes map[string]time.Time
}

// NewPassStore creates a store whose passes live for ttl.
func NewPassStore(ttl time.Duration) *PassStore {
	return &PassStore{ttl: ttl, now: time.Now, passes: make(map[string]time.Time)}
}

// Issue creates a new pass.
func (s *PassStore) Issue() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.passes[id] = s.now().Add(s.ttl)
	return id
}

// Consume reports whether id is a live pass and removes it.
func (s *PassStore) Consume(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.passes[id]
	if !ok {
		return false
	}
	delete(s.passes, id)
	return s.now().Before(expires)
}

func (s *PassStore) sweepLocked() {
	now := s.now()
	for id, expires := range s.passes {
		if !now.Before(expires) {
			delete(s.passes, id)
		}
	}
}
