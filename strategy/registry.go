package strategy

import "sync"

// Registry holds the ordered, static set of strategies assembled at
// startup (spec.md §9: "replace dynamic require() ... with a static
// strategy registry"). Registration order is preserved and used as the
// evaluator's tie-break (spec.md §4.4).
//
// Grounded on the teacher's core/router.go subscription map, generalized
// from "market -> []Strategy" to a flat ordered roster since every
// strategy sees every order (strategies themselves decide via CanFill
// whether an order's chain pair applies to them).
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a strategy. Order of calls is the tie-break order.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
}

// All returns a snapshot of registered strategies in registration order.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}
