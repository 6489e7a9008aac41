package index

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/contentql/internal/model"
)

// Provider stores and serves the indexes it owns.
type Provider interface {
	Estimator
	Name() string
	// Cost is the cost reported for each use of one of the provider's
	// indexes, normally LocalCost or RemoteCost.
	Cost() int
	// Filter returns the nodes of the index satisfying every constraint.
	Filter(ctx context.Context, defn Definition, workspace string, constraints []model.Constraint, vars map[string]any) (Results, error)
}

// Registry holds index definitions and the providers that serve them.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	definitions map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		definitions: make(map[string]Definition),
	}
}

// RegisterProvider adds a provider. Provider names are unique.
func (r *Registry) RegisterProvider(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; ok {
		return fmt.Errorf("index provider %q is already registered", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Provider returns the named provider.
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &NoSuchProviderError{Name: name}
	}
	return p, nil
}

// Register validates defn and adds it under its name.
func (r *Registry) Register(defn Definition) error {
	if err := defn.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[defn.Name]; ok {
		return &ExistsError{Name: defn.Name}
	}
	if _, ok := r.providers[defn.ProviderName]; !ok {
		return &NoSuchProviderError{Name: defn.ProviderName}
	}
	r.definitions[defn.Name] = defn
	slog.Debug("registered index", "index", defn.Name, "provider", defn.ProviderName, "kind", defn.Kind)
	return nil
}

// Update replaces an existing definition.
func (r *Registry) Update(defn Definition) error {
	if err := defn.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[defn.Name]; !ok {
		return &NoSuchIndexError{Name: defn.Name}
	}
	if _, ok := r.providers[defn.ProviderName]; !ok {
		return &NoSuchProviderError{Name: defn.ProviderName}
	}
	r.definitions[defn.Name] = defn
	return nil
}

// Remove deletes a definition.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[name]; !ok {
		return &NoSuchIndexError{Name: name}
	}
	delete(r.definitions, name)
	return nil
}

// Definition returns the named definition.
func (r *Registry) Definition(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[name]
	if !ok {
		return Definition{}, &NoSuchIndexError{Name: name}
	}
	return d, nil
}

// Definitions returns every definition sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.definitions))
	for _, name := range slices.Sorted(maps.Keys(r.definitions)) {
		out = append(out, r.definitions[name])
	}
	return out
}

// Plan offers every enabled index covering workspace to calc. Indexes are
// visited in name order.
func (r *Registry) Plan(ctx context.Context, calc CostCalculator, workspace string) error {
	for _, defn := range r.Definitions() {
		p, err := r.Provider(defn.ProviderName)
		if err != nil {
			return err
		}
		added, err := Plan(ctx, calc, p, defn, workspace, WithCost(p.Cost()))
		if err != nil {
			return err
		}
		if added {
			slog.Debug("offered index", "index", defn.Name, "workspace", workspace)
		}
	}
	return nil
}

// Filter runs the named index.
func (r *Registry) Filter(ctx context.Context, name, workspace string, constraints []model.Constraint, vars map[string]any) (Results, error) {
	defn, err := r.Definition(name)
	if err != nil {
		return nil, err
	}
	p, err := r.Provider(defn.ProviderName)
	if err != nil {
		return nil, err
	}
	res, err := p.Filter(ctx, defn, workspace, constraints, vars)
	if err != nil {
		return nil, fmt.Errorf("index %q: %w", name, err)
	}
	return Closing(res), nil
}
