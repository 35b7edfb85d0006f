package server

import "sync"

// registry is the process-wide slot holding the one server instance. The
// slot is reserved for the whole of New so two concurrent constructions
// cannot both run their populate functions.
var registry struct {
	mu       sync.Mutex
	reserved bool
	instance *Server
}

func acquire() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.reserved {
		return ErrDuplicateInstance
	}
	registry.reserved = true
	return nil
}

func publish(s *Server) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.instance = s
}

// release frees the slot held by s. A nil s abandons a reservation whose
// construction failed.
func release(s *Server) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.instance != s {
		return
	}
	registry.instance = nil
	registry.reserved = false
}

// Instance returns the running server, or nil.
func Instance() *Server {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.instance
}

// ResetRegistry forgets the current instance without stopping it. It exists
// for tests that construct several servers in one process.
func ResetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.instance = nil
	registry.reserved = false
}
