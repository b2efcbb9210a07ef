// Package builtins provides the slug builtin function registry.
package builtins

import (
	"context"
	"sort"

	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/evaluator"
)

// Fn represents a builtin function.
type Fn struct {
	Name         string
	CapabilityID string
	Execute      func(ctx context.Context, args []evaluator.Value) (evaluator.Value, error)
}

// Registry holds registered builtin functions.
type Registry struct {
	fns map[string]*Fn
}

// NewRegistry creates a new empty builtin registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]*Fn),
	}
}

// Register adds a builtin function to the registry, replacing any function
// of the same name.
func (r *Registry) Register(fn Fn) {
	r.fns[fn.Name] = &fn
}

// Get retrieves a builtin function by name.
func (r *Registry) Get(name string) *Fn {
	return r.fns[name]
}

// Has reports whether name is registered. It lets the parser accept calls
// to builtins.
func (r *Registry) Has(name string) bool {
	_, ok := r.fns[name]
	return ok
}

// All returns all registered builtin functions.
func (r *Registry) All() map[string]*Fn {
	return r.fns
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter returns a registry holding only the functions whose capability the
// policy allows. Functions without a capability are always kept.
func (r *Registry) Filter(policy *capabilities.Policy) *Registry {
	out := NewRegistry()
	for name, fn := range r.fns {
		if fn.CapabilityID == "" || policy.IsAllowed(fn.CapabilityID) {
			out.fns[name] = fn
		}
	}
	return out
}

// Exec converts the registry into the table the evaluator dispatches on.
func (r *Registry) Exec() map[string]*evaluator.Builtin {
	out := make(map[string]*evaluator.Builtin, len(r.fns))
	for name, fn := range r.fns {
		out[name] = &evaluator.Builtin{
			Name:    fn.Name,
			Execute: fn.Execute,
		}
	}
	return out
}
