package session

// Package session holds the mutable per-browser-session state shared by
// guards, the role resolver, and the authenticated request layer. All
// mutation goes through Store's two operations so the reset invariant is
// enforced in one place.

import (
	"sync"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
)

// Store is the single source of truth for one session's state. It is safe
// for concurrent use. Subscribers observe every applied mutation in order.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	state    domainauth.SessionState
	subs     map[int]func(domainauth.SessionState)
	nextSub  int
}

// NewStore returns a store in its initial state: no identity, role absent,
// bootstrapping until the first identity notification arrives.
func NewStore() *Store {
	return &Store{
		state: domainauth.SessionState{Bootstrapping: true},
		subs:  make(map[int]func(domainauth.SessionState)),
	}
}

// SetIdentity replaces the identity. A nil identity also resets the role to
// absent in the same step, so no stale role leaks across sessions. The
// first call, whatever its value, clears the bootstrapping flag.
func (s *Store) SetIdentity(id *domainauth.Identity) {
	s.apply(func(st *domainauth.SessionState) bool {
		if id == nil {
			st.Identity = nil
			st.Role = domainauth.RoleAbsent
		} else {
			copied := *id
			st.Identity = &copied
			// A replaced identity starts a new resolution window.
			st.Role = domainauth.RoleAbsent
		}
		st.Bootstrapping = false
		return true
	})
}

// SetRole records the resolved backend role. It is a no-op while no
// identity is present: a role arriving after sign-out belongs to a previous
// session and must be discarded.
func (s *Store) SetRole(role domainauth.Role) {
	s.apply(func(st *domainauth.SessionState) bool {
		if st.Identity == nil {
			return false
		}
		st.Role = role
		return true
	})
}

// Reset restores the initial signed-out state, keeping subscribers.
func (s *Store) Reset() {
	s.apply(func(st *domainauth.SessionState) bool {
		*st = domainauth.SessionState{}
		return true
	})
}

// restore seeds the store from a persisted snapshot. The restored identity
// is not trusted until the provider confirms it, so the store re-enters the
// bootstrapping window.
func (s *Store) restore(st domainauth.SessionState) {
	s.apply(func(cur *domainauth.SessionState) bool {
		*cur = st
		cur.Bootstrapping = true
		return true
	})
}

// Snapshot returns the current state. The returned value is a copy; the
// identity pointer must be treated as read-only.
func (s *Store) Snapshot() domainauth.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every subsequent mutation and returns a
// cancel function. Callbacks run synchronously in mutation order; they
// must not call back into the store from the same goroutine.
func (s *Store) Subscribe(fn func(domainauth.SessionState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// apply runs the mutation under the state lock and notifies subscribers
// when it reports a change. notifyMu is acquired before the state lock is
// released so notifications are delivered in the order mutations were
// applied.
func (s *Store) apply(mutate func(*domainauth.SessionState) bool) {
	s.mu.Lock()
	if !mutate(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state
	subs := make([]func(domainauth.SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
