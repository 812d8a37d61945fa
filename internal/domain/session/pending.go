package session

import (
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PendingLogin is an authorization request waiting for its callback.
type PendingLogin struct {
	State       string
	Profile     string
	Query       url.Values
	Verifier    string
	RedirectURI string
	CreatedAt   time.Time
}

// PendingStore holds pending logins keyed by OAuth state. Entries expire
// after the TTL and are single use.
type PendingStore struct {
	cache *expirable.LRU[string, PendingLogin]
}

// NewPendingStore creates a store bounded to size entries.
func NewPendingStore(size int, ttl time.Duration) *PendingStore {
	if size <= 0 {
		size = 1024
	}
	return &PendingStore{cache: expirable.NewLRU[string, PendingLogin](size, nil, ttl)}
}

// Put records a pending login under its state.
func (s *PendingStore) Put(p PendingLogin) {
	s.cache.Add(p.State, p)
}

// Take returns and removes the pending login for state. Of concurrent
// callers with the same state only the one whose Remove succeeds gets it.
func (s *PendingStore) Take(state string) (PendingLogin, bool) {
	p, ok := s.cache.Get(state)
	if !ok {
		return PendingLogin{}, false
	}
	if !s.cache.Remove(state) {
		return PendingLogin{}, false
	}
	return p, true
}

// Len returns the number of live entries.
func (s *PendingStore) Len() int {
	return s.cache.Len()
}
