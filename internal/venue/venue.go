// Package venue defines the single capability interface every trading venue
// implements, and a registry to look venues up by id.
package venue

import (
	"context"
	"fmt"
	"sync"

	"arbcore/internal/model"
)

// Venue is a source of quotes that may also execute bundles.
type Venue interface {
	ID() string
	Kind() model.VenueKind
	Quote(ctx context.Context, pair model.Pair) (model.Quote, error)
	// Execute submits a bundle whose legs trade on this venue. Venues that
	// cannot execute return model.ErrExecutionUnsupported.
	Execute(ctx context.Context, bundle model.Bundle) (bool, error)
}

// BundleSubmitter submits signed-on-demand bundles for execution.
type BundleSubmitter interface {
	Submit(ctx context.Context, bundle model.Bundle) (bool, error)
}

// Registry holds venues keyed by id.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]Venue
}

func NewRegistry(venues ...Venue) (*Registry, error) {
	r := &Registry{venues: make(map[string]Venue, len(venues))}
	for _, v := range venues {
		if err := r.Add(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(v Venue) error {
	if v == nil || v.ID() == "" {
		return fmt.Errorf("venue id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.venues[v.ID()]; ok {
		return fmt.Errorf("duplicate venue %q", v.ID())
	}
	r.venues[v.ID()] = v
	return nil
}

func (r *Registry) Get(id string) (Venue, bool) {
	r.mu.RLock()
	v, ok := r.venues[id]
	r.mu.RUnlock()
	return v, ok
}
