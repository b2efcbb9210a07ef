package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/thomasrohde/slug/pkg/ast"
)

// Scope lookup failures.
var (
	ErrRedeclared = errors.New("already declared")
	ErrNotFound   = errors.New("not found")
	ErrNoRoot     = errors.New("scope chain has no root")
)

// ScopeError reports a failed declare, assign or resolve.
type ScopeError struct {
	Op   string // "declare", "assign" or "resolve"
	Name string
	Err  error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("variable %s %s", e.Name, e.Err)
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}

// Variable is a declared name's slot.
type Variable struct {
	Type  ast.VarType
	Value Value
}

// Scope is one level of the runtime variable chain.
type Scope struct {
	vars   map[string]*Variable
	parent *Scope
	root   bool
}

// NewRootScope creates the global scope of a run.
func NewRootScope() *Scope {
	return &Scope{vars: make(map[string]*Variable), root: true}
}

// NewScope creates a scope whose lookups continue in parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{vars: make(map[string]*Variable), parent: parent}
}

// Parent returns the enclosing scope, or nil at the end of the chain.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsRoot reports whether s is a run's global scope.
func (s *Scope) IsRoot() bool {
	return s.root
}

// Depth is the number of scopes above s.
func (s *Scope) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Names returns the names declared directly in s, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the variable declared directly in s.
func (s *Scope) Lookup(name string) (*Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// find walks the chain for name.
func (s *Scope) find(name string) (*Variable, error) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, nil
		}
		if sc.parent == nil && !sc.root {
			return nil, ErrNoRoot
		}
	}
	return nil, ErrNotFound
}

// Declare adds name to s. A nil value stores the type's default. Shadowing is
// not allowed: the name must not be visible anywhere up the chain.
func (s *Scope) Declare(name string, typ ast.VarType, value Value) error {
	_, err := s.find(name)
	switch {
	case err == nil:
		return &ScopeError{Op: "declare", Name: name, Err: ErrRedeclared}
	case !errors.Is(err, ErrNotFound):
		return &ScopeError{Op: "declare", Name: name, Err: err}
	}
	if value == nil {
		value = DefaultValue(typ)
	}
	s.vars[name] = &Variable{Type: typ, Value: value}
	return nil
}

// Assign overwrites the nearest declaration of name.
func (s *Scope) Assign(name string, value Value) error {
	v, err := s.find(name)
	if err != nil {
		return &ScopeError{Op: "assign", Name: name, Err: err}
	}
	v.Value = value
	return nil
}

// Resolve reads the nearest declaration of name.
func (s *Scope) Resolve(name string) (Value, error) {
	v, err := s.find(name)
	if err != nil {
		return nil, &ScopeError{Op: "resolve", Name: name, Err: err}
	}
	return v.Value, nil
}

// link re-parents s. Used by the call protocol once parameters are declared.
func (s *Scope) link(parent *Scope) {
	s.parent = parent
}
