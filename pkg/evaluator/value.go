// Package evaluator implements the slug tree-walking evaluator.
package evaluator

import (
	"strconv"

	"github.com/thomasrohde/slug/pkg/ast"
)

// Value is the interface for all slug runtime values.
// A nil Value means "no value", the result of calls and statements.
type Value interface {
	String() string
	value() // sealed marker
}

// Int is a 32-bit signed integer value.
type Int struct {
	Value int32
}

func (Int) value()           {}
func (v Int) String() string { return strconv.FormatInt(int64(v.Value), 10) }

// Str is a string value.
type Str struct {
	Value string
}

func (Str) value()           {}
func (v Str) String() string { return v.Value }

// Bool is a boolean value.
type Bool struct {
	Value bool
}

func (Bool) value()           {}
func (v Bool) String() string { return strconv.FormatBool(v.Value) }

// NewInt creates an integer value.
func NewInt(n int32) Value {
	return Int{Value: n}
}

// NewStr creates a string value.
func NewStr(s string) Value {
	return Str{Value: s}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Bool{Value: b}
}

// DefaultValue is the value a declaration without an initialiser receives.
func DefaultValue(t ast.VarType) Value {
	switch t {
	case ast.TypeString:
		return Str{}
	case ast.TypeBool:
		return Bool{}
	}
	return Int{}
}

// TypeName returns the runtime type name of v.
func TypeName(v Value) string {
	switch v.(type) {
	case Int:
		return "int"
	case Str:
		return "string"
	case Bool:
		return "bool"
	case nil:
		return "no value"
	}
	return "unknown"
}

// ToInt coerces v to an integer. Strings holding a base-10 int32 convert;
// everything else fails.
func ToInt(v Value) (int32, bool) {
	switch val := v.(type) {
	case Int:
		return val.Value, true
	case Str:
		n, err := strconv.ParseInt(val.Value, 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(n), true
	}
	return 0, false
}
