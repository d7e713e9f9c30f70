// Package registry tracks which live connections belong to which
// authenticated user. It is process-scoped state with an explicit
// lifecycle: created at server start, emptied as connections close.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a live connection handle. Sessions from the socket package
// implement it; tests use fakes.
type Conn interface {
	ID() string
	Push(command string, payload any) error
}

// Registry maps a user id to the set of that user's live connections.
// A user signed in on several devices holds several entries in the same
// bucket. Reads racing a removal observe absence, never corrupt state.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[Conn]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[uuid.UUID]map[Conn]struct{})}
}

// Add registers a connection under the user, exactly once per connection
// at the moment it becomes authorized. Adding a second connection for the
// same user grows the set.
func (r *Registry) Add(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[Conn]struct{})
	}
	r.conns[userID][conn] = struct{}{}
}

// Remove drops a connection from the user's bucket. Removing a connection
// that was never added is a no-op.
func (r *Registry) Remove(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// Get returns the user's live connections. An unknown user means
// "no live targets", not an error.
func (r *Registry) Get(userID uuid.UUID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of users with at least one live connection.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
