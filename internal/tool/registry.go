package tool

import (
	"sort"
	"sync"

	"github.com/agentbridge/agentbridge/internal/message"
)

// Registry holds the built-in tool handlers available to a server
// instance. A request-time tool list is assembled by the caller from a
// copy-on-write snapshot (Snapshot) composed with MCP-discovered tools —
// the registry itself never mutates concurrently with request-time reads.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Snapshot returns a copy-on-write list of every registered handler's
// ToolDefinition, safe for a single request to hand to the Dispatcher
// without holding the registry lock for the request's lifetime.
func (r *Registry) Snapshot() []message.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]message.ToolDefinition, 0, len(names))
	for _, name := range names {
		h := r.handlers[name]
		defs = append(defs, message.ToolDefinition{Name: h.Name(), Description: h.Description(), Parameters: h.Schema()})
	}
	return defs
}
