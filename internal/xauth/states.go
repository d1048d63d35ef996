package xauth

import (
	"sync"
	"time"
)

type pending struct {
	verifier string
	expires  time.Time
}

// stateStore keeps PKCE verifiers keyed by OAuth state until the callback
// consumes them. Entries are single use.
type stateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pending
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pending),
	}
}

func (s *stateStore) put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.entries[state] = pending{verifier: verifier, expires: s.now().Add(s.ttl)}
}

// take returns the verifier for state and forgets it.
func (s *stateStore) take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if s.now().After(p.expires) {
		return "", false
	}
	return p.verifier, true
}

func (s *stateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *stateStore) pruneLocked() {
	now := s.now()
	for k, p := range s.entries {
		if now.After(p.expires) {
			delete(s.entries, k)
		}
	}
}
