// Package validator implements a static pass over slug programs that reports
// what evaluation would reject once it reached the offending code.
package validator

import (
	"fmt"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/diagnostics"
	"github.com/thomasrohde/slug/pkg/evaluator"
)

type scope struct {
	bindings map[string]bool
	parent   *scope
}

func newScope(parent *scope) *scope {
	return &scope{bindings: make(map[string]bool), parent: parent}
}

func (s *scope) has(name string) bool {
	if s.bindings[name] {
		return true
	}
	if s.parent != nil {
		return s.parent.has(name)
	}
	return false
}

func (s *scope) add(name string) {
	s.bindings[name] = true
}

type validator struct {
	diags []diagnostics.Diagnostic
	root  *scope
	// strict is set while checking Main, whose caller chain is exactly the
	// globals, so names missing from the lexical chain are known to fail.
	strict bool
}

// Validate performs semantic analysis on a slug program and returns diagnostics.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	v := &validator{root: newScope(nil)}

	v.validateStructure(program)

	v.strict = true
	for _, g := range program.Globals {
		v.validateStmt(g, v.root)
	}

	entry := program.Entry()
	for _, fn := range program.Functions {
		v.strict = fn == entry && fn.Name == "Main"
		v.validateFunction(fn)
	}
	if entry != nil && entry.Name == "Main" && len(entry.Params) > 0 {
		span := entry.Span
		v.addDiag(diagnostics.EType, fmt.Sprintf("function Main expects %d arguments, got 0", len(entry.Params)), &span)
	}

	return v.diags
}

func (v *validator) addDiag(code, msg string, span *ast.Span) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, span, ""))
}

func (v *validator) validateStructure(program *ast.Program) {
	if len(program.Globals) == 0 && len(program.Functions) == 0 {
		span := program.Span
		v.addDiag(diagnostics.EStructure, "program has no global declarations and no functions", &span)
		return
	}
	if entry := program.Entry(); entry != nil && entry.Name != "Main" {
		span := entry.Span
		v.addDiag(diagnostics.EStructure, fmt.Sprintf("the last function must be Main, found %s", entry.Name), &span)
	}
}

// validateFunction checks fn's body in a scope whose parent is the globals.
// Parameters are declared against the globals only.
func (v *validator) validateFunction(fn *ast.Function) {
	body := newScope(v.root)
	for _, p := range fn.Params {
		v.declare(body, p.Name, p.Span)
	}
	v.validateStatements(fn.Body.Statements, body)
}

func (v *validator) validateStatements(stmts []ast.Node, sc *scope) {
	for _, s := range stmts {
		v.validateStmt(s, sc)
	}
}

func (v *validator) declare(sc *scope, name string, span ast.Span) {
	if sc.has(name) {
		v.addDiag(diagnostics.EScope, fmt.Sprintf("variable %s already declared", name), &span)
		return
	}
	sc.add(name)
}

func (v *validator) use(sc *scope, name string, span ast.Span) {
	if v.strict && !sc.has(name) {
		v.addDiag(diagnostics.EScope, fmt.Sprintf("variable %s not found", name), &span)
	}
}

func (v *validator) validateStmt(n ast.Node, sc *scope) {
	switch n := n.(type) {
	case *ast.VariableDeclaration:
		v.declare(sc, n.Name, n.Span)
	case *ast.VariableDeclarationAssign:
		v.validateExpr(n.Value, sc)
		v.declare(sc, n.Name, n.Span)
	case *ast.VariableAssign:
		v.validateExpr(n.Value, sc)
		v.use(sc, n.Name, n.Span)
	case *ast.Block:
		v.validateStatements(n.Statements, newScope(sc))
	case *ast.If:
		v.validateCondition(n.Cond, sc, "if")
		v.validateStatements(n.Then.Statements, newScope(sc))
		if n.Else != nil {
			v.validateStatements(n.Else.Statements, newScope(sc))
		}
	case *ast.While:
		v.validateCondition(n.Cond, sc, "while")
		// The body shares the enclosing scope.
		v.validateStatements(n.Body.Statements, sc)
	case *ast.For:
		forScope := newScope(sc)
		v.validateStmt(n.Init, forScope)
		v.validateCondition(n.Cond, forScope, "for")
		v.validateStatements(n.Body.Statements, newScope(forScope))
		v.validateStmt(n.Step, forScope)
	case *ast.Function:
		// Callers of a nested function are not known, so its names are not
		// checked strictly.
		strict := v.strict
		v.strict = false
		v.validateFunction(n)
		v.strict = strict
	case *ast.NoOp:
	default:
		v.validateExpr(n, sc)
	}
}

func (v *validator) validateCondition(n ast.Node, sc *scope, stmt string) {
	if _, ok := n.(*ast.Comparison); !ok {
		span := n.NodeSpan()
		v.addDiag(diagnostics.EType, fmt.Sprintf("%s condition must be a comparison, got %s", stmt, n.Kind()), &span)
	}
	v.validateExpr(n, sc)
}

func (v *validator) validateExpr(n ast.Node, sc *scope) {
	switch n := n.(type) {
	case *ast.Number, *ast.Bool:
	case *ast.Str:
		for _, name := range evaluator.Placeholders(n.Value) {
			v.use(sc, name, n.Span)
		}
	case *ast.VariableUsage:
		v.use(sc, n.Name, n.Span)
	case *ast.Binary:
		v.validateExpr(n.Left, sc)
		v.validateExpr(n.Right, sc)
	case *ast.Comparison:
		v.validateExpr(n.Left, sc)
		v.validateExpr(n.Right, sc)
	case *ast.Unary:
		if _, ok := n.Operand.(*ast.Number); !ok {
			span := n.Span
			v.addDiag(diagnostics.EType, fmt.Sprintf("unary %s needs a number literal, got %s", n.Op, n.Operand.Kind()), &span)
		}
	case *ast.FunctionCall:
		for _, a := range n.Args {
			v.validateExpr(a, sc)
		}
		if n.Target != nil && len(n.Args) != len(n.Target.Params) {
			span := n.Span
			v.addDiag(diagnostics.EType, fmt.Sprintf("function %s expects %d arguments, got %d", n.Name, len(n.Target.Params), len(n.Args)), &span)
		}
	}
}
