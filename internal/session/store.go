// Package session provides the transient grant cache used by the content
// access guard. A grant marks that a user already proved knowledge of a
// content password during the current session scope, so repeated checks skip
// the database until the entry expires.
//
// The cache is an explicit, injected collaborator: the guard only sees the
// Store interface, and deployments embedding this core behind a web layer can
// supply a cookie- or redis-backed implementation instead of the in-process
// Memory store.
package session

import (
	"sync"
	"time"
)

// Store records and answers transient content-access grants. Implementations
// must be safe for concurrent use.
type Store interface {
	// Grant marks the (user, type, id) key as accessible.
	Grant(userID, contentType, contentID string)

	// Granted reports whether a live grant exists for the key.
	Granted(userID, contentType, contentID string) bool

	// RevokeContent drops every user's grant for one content item. Called
	// when the item's password changes.
	RevokeContent(contentType, contentID string)
}

// Memory is a mutex-guarded in-process Store with per-entry TTL. Expired
// entries are dropped lazily on read and wholesale during Grant when the map
// grows past a housekeeping threshold.
type Memory struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[memKey]time.Time

	// now is a clock seam for tests.
	now func() time.Time
}

type memKey struct {
	userID      string
	contentType string
	contentID   string
}

// housekeepAbove bounds how large the map may grow before Grant sweeps
// expired entries.
const housekeepAbove = 1024

// NewMemory returns an empty in-process store whose grants live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[memKey]time.Time),
		now:     time.Now,
	}
}

// Grant implements Store.
func (m *Memory) Grant(userID, contentType, contentID string) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) > housekeepAbove {
		for k, exp := range m.entries {
			if !exp.After(now) {
				delete(m.entries, k)
			}
		}
	}
	m.entries[memKey{userID, contentType, contentID}] = now.Add(m.ttl)
}

// Granted implements Store.
func (m *Memory) Granted(userID, contentType, contentID string) bool {
	now := m.now()
	k := memKey{userID, contentType, contentID}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[k]
	if !ok {
		return false
	}
	if !exp.After(now) {
		delete(m.entries, k)
		return false
	}
	return true
}

// RevokeContent implements Store.
func (m *Memory) RevokeContent(contentType, contentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.contentType == contentType && k.contentID == contentID {
			delete(m.entries, k)
		}
	}
}
