// Package fetcher holds the acquisition strategies: every technique
// for obtaining a page's HTML sits behind the same Strategy contract,
// so the engine can cascade through them without knowing how any one
// of them works.
package fetcher

import (
	"context"
	"sort"

	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Strategy is one acquisition technique.
type Strategy interface {
	// Name identifies the strategy in outcomes, logs, and config.
	Name() string

	// CloakedProvenance reports whether origin servers trust this
	// strategy's traffic as genuine crawler traffic, as opposed to
	// traffic that merely claims a crawler identity.
	CloakedProvenance() bool

	// Available reports whether the strategy can be attempted right
	// now. A nil return means usable; a ConfigError means the engine
	// skips the strategy without counting a failure.
	Available(ctx context.Context) error

	// Fetch retrieves the content at url. Implementations respect ctx
	// for cancellation and their own per-call timeout.
	Fetch(ctx context.Context, url string) (*types.RawResult, error)

	// Close releases any resources held by the strategy.
	Close() error
}

// Descriptor is the registry's view of one strategy.
type Descriptor struct {
	Name              string   `json:"name"`
	Priority          int      `json:"priority"`
	CloakedProvenance bool     `json:"cloaked_provenance"`
	Tags              []string `json:"tags,omitempty"`
}

type entry struct {
	strategy Strategy
	desc     Descriptor
}

// Registry holds the configured strategies and hands out ordered
// cascades. Registration order is irrelevant; priority comes from the
// configured cascade order.
type Registry struct {
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a strategy at the given priority rank (lower runs
// first). Re-registering a name replaces the previous strategy.
func (r *Registry) Register(s Strategy, priority int, tags ...string) {
	r.entries[s.Name()] = &entry{
		strategy: s,
		desc: Descriptor{
			Name:              s.Name(),
			Priority:          priority,
			CloakedProvenance: s.CloakedProvenance(),
			Tags:              tags,
		},
	}
}

// Get returns the strategy with the given name, or nil.
func (r *Registry) Get(name string) Strategy {
	if e, ok := r.entries[name]; ok {
		return e.strategy
	}
	return nil
}

// Ordered returns every registered strategy sorted by priority.
func (r *Registry) Ordered() []Strategy {
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].desc.Priority < entries[j].desc.Priority
	})

	out := make([]Strategy, len(entries))
	for i, e := range entries {
		out[i] = e.strategy
	}
	return out
}

// Describe returns the descriptors of every registered strategy,
// sorted by priority.
func (r *Registry) Describe() []Descriptor {
	descs := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Priority < descs[j].Priority
	})
	return descs
}

// Close closes every registered strategy, returning the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if err := e.strategy.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
