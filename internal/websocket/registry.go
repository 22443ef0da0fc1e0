package websocket

import (
	"log"
	"sync"
)

// Registry tracks the live connection per participant identity.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]*Connection)}
}

// Register binds a connection under its current user id. An existing
// connection for the same identity is closed asynchronously and replaced.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[userID]; ok && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close replaced connection for %s: %v", userID, err)
			}
		}()
	}
	r.connections[userID] = conn
	return nil
}

// Unregister removes a connection, but only if it is still the one
// registered for its identity; a replacement connection is left alone.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connections[userID] == conn {
		delete(r.connections, userID)
	}
}

// Rename moves a connection's registration from one identity to another,
// used when a client asserts an external id after connecting.
func (r *Registry) Rename(oldID, newID string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connections[oldID] == conn {
		delete(r.connections, oldID)
	}
	r.connections[newID] = conn
}

// Get returns the live connection for an identity.
func (r *Registry) Get(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[userID]
	return conn, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
