package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
)

// Registry is the process-wide catalogue mapping protocol identifiers to
// handler implementations. It is an explicit, injected object rather than a
// package-level singleton so that tests can register and clear handlers in
// isolation.
//
// Registration normally happens once at startup before any scan; the
// read-write lock makes concurrent registration and lookup safe for the
// server path, where a scan may already be in flight.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]port.ProtocolHandler
	order    []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]port.ProtocolHandler)}
}

// Register inserts a handler under its name. The last registration for a
// given name wins, which lets tests override built-in handlers.
func (r *Registry) Register(handler port.ProtocolHandler) error {
	name := handler.Name()
	if name == "" {
		return fmt.Errorf("handler %T has no name", handler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.handlers[name] = handler
	return nil
}

// Get returns the handler registered under name, or ok=false.
func (r *Registry) Get(name string) (port.ProtocolHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// HandlersForChain returns all handlers whose supported chains include the
// given chain, in registration order.
func (r *Registry) HandlersForChain(chain string) []port.ProtocolHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []port.ProtocolHandler
	for _, name := range r.order {
		h := r.handlers[name]
		if slices.Contains(h.SupportedChains(), chain) {
			matched = append(matched, h)
		}
	}
	return matched
}

// DiscoveryEvents aggregates the discovery event signatures of every handler
// supporting the chain, keyed by protocol name.
func (r *Registry) DiscoveryEvents(chain string) map[string][]string {
	events := make(map[string][]string)
	for _, h := range r.HandlersForChain(chain) {
		events[h.Name()] = h.DiscoveryEvents()
	}
	return events
}

// FindHandlerForContract returns the first chain-matching handler whose
// Matches accepts the contract. The tie-break between multiple matching
// handlers is registration order; callers needing determinism beyond that
// must not rely on it.
func (r *Registry) FindHandlerForContract(contractAddress, chain string) (port.ProtocolHandler, bool) {
	for _, h := range r.HandlersForChain(chain) {
		if h.Matches(contractAddress, chain) {
			return h, true
		}
	}
	return nil, false
}

// Protocols returns all registered protocol names in registration order.
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Clear wipes all registrations. Test teardown only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]port.ProtocolHandler)
	r.order = nil
}
