// Package diagnostics defines slug diagnostic types for lex, parse, validation and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/thomasrohde/slug/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex       = "E_LEX"
	EParse     = "E_PARSE"
	EScope     = "E_SCOPE"
	EType      = "E_TYPE"
	EStructure = "E_STRUCTURE"
	EUnknownFn = "E_UNKNOWN_FN"
	EBuiltin   = "E_BUILTIN"
	EIO        = "E_IO"
	ECanceled  = "E_CANCELED"
	EConfig    = "E_CONFIG"
)

// Category returns the error family a code belongs to.
func Category(code string) string {
	switch code {
	case ELex:
		return "LexError"
	case EParse:
		return "ParseError"
	case EScope:
		return "ScopeError"
	case EType:
		return "RuntimeTypeError"
	case EStructure:
		return "ProgramStructureError"
	case EUnknownFn, EBuiltin:
		return "CallError"
	case EIO:
		return "IOError"
	case ECanceled:
		return "Canceled"
	case EConfig:
		return "ConfigError"
	}
	return "Error"
}

// IsCompileTime reports whether a code is produced before evaluation starts.
func IsCompileTime(code string) bool {
	return code == ELex || code == EParse
}

// Diagnostic represents a lex, parse, validation, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

func (d Diagnostic) Error() string {
	return d.Message
}

var (
	headerColor = color.New(color.FgRed, color.Bold)
	arrowColor  = color.New(color.FgBlue)
	hintColor   = color.New(color.FgCyan)
)

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := headerColor.Sprintf("error[%s]", d.Code) + ": " + d.Message +
		"\n  " + arrowColor.Sprint("-->") + " " + loc
	if d.Hint != "" {
		out += "\n  " + hintColor.Sprint("hint:") + " " + d.Hint
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
