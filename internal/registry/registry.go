// Package registry maps operation names to factories so pipelines can
// be assembled from declarative YAML definitions instead of code.
package registry

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/textweave/textweave/internal/operation"
)

// Registry errors.
var (
	// ErrUnknownOp reports a definition referencing an operation name
	// no factory was registered for.
	ErrUnknownOp = eris.New("registry: unknown operation")

	// ErrDuplicateOp reports a second registration under the same name.
	ErrDuplicateOp = eris.New("registry: operation already registered")
)

// Factory builds an operation from its declarative parameters.
type Factory func(params map[string]any) (operation.Operation, error)

// Registry holds named operation factories. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty registry. Most callers want NewDefault.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return eris.Wrapf(ErrDuplicateOp, "%q", name)
	}
	r.factories[name] = factory
	return nil
}

// Build instantiates the named operation with the given parameters.
func (r *Registry) Build(name string, params map[string]any) (operation.Operation, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrUnknownOp, "%q", name)
	}
	op, err := factory(params)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: build %q", name)
	}
	return op, nil
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeParams unmarshals loosely-typed parameters into a factory's
// typed config struct, honoring the struct's yaml tags.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return eris.Wrap(err, "registry: encode params")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "registry: decode params")
	}
	return nil
}
