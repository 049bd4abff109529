// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"
	"time"
)

// Store holds every live session, keyed by opaque session id.
//
// Description:
//
//	Sessions are created lazily on first reference and live for the
//	process lifetime; there is no eviction or TTL. The store map is the
//	only cross-session shared state and is guarded by its own lock; each
//	session carries its own mutex serializing turn processing.
//
// Thread Safety: Safe for concurrent use via sync.RWMutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// NewStoreWithClock creates a store whose sessions see the given clock.
// Used by tests that drive time explicitly.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

// GetOrCreate returns the session for id, creating the zero-valued
// structure on first access. The returned session is NOT locked.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s = newSession(id, st.now())
	st.sessions[id] = s
	return s
}

// Get returns the session for id, or nil if it was never created.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
