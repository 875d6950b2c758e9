package ws

import (
	"log"
	"sync"

	"github.com/Harshcreator/live-attendance-system/pkg/interfaces"
)

// Registry tracks every live connection by its opaque handle. Fan-out
// uses a snapshot-then-send pattern so a connection may disconnect
// mid-broadcast without affecting delivery to the rest.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

var _ interfaces.Broadcaster = (*Registry)(nil)

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds a connection.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID()] = conn
	return nil
}

// Deregister removes the connection for handle. Idempotent.
func (r *Registry) Deregister(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, handle)
}

// Broadcast delivers event to every registered connection, skipping
// excludeHandle if non-empty. Delivery is best-effort: individual send
// failures are logged and never propagate.
func (r *Registry) Broadcast(event interface{}, excludeHandle string) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.connections))
	for handle, conn := range r.connections {
		if handle == excludeHandle {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("Broadcast delivery failed: handle=%s user=%s: %v",
				conn.ID(), conn.Identity().UserID, err)
		}
	}
}

// Unicast delivers event to the single connection for handle, if it is
// still registered. Best-effort, like Broadcast.
func (r *Registry) Unicast(handle string, event interface{}) {
	r.mu.RLock()
	conn, exists := r.connections[handle]
	r.mu.RUnlock()

	if !exists {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("Unicast delivery failed: handle=%s user=%s: %v",
			handle, conn.Identity().UserID, err)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
