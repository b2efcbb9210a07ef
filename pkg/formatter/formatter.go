// Package formatter implements the slug source code formatter.
package formatter

import (
	"strconv"
	"strings"

	"github.com/thomasrohde/slug/pkg/ast"
)

const indent = "  "

// Format pretty-prints a slug AST back to source code. Skipped (NoOp)
// statements are not reproduced.
func Format(program *ast.Program) string {
	var lines []string

	for _, g := range program.Globals {
		lines = append(lines, formatStmt(g, 0))
	}

	for i, fn := range program.Functions {
		if i > 0 || len(program.Globals) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, formatStmt(fn, 0))
	}

	return strings.Join(lines, "\n") + "\n"
}

// HasComments reports whether source contains a // comment outside string literals.
func HasComments(source string) bool {
	inString := false
	for i := 0; i < len(source); i++ {
		switch {
		case source[i] == '"':
			inString = !inString
		case !inString && source[i] == '/' && i+1 < len(source) && source[i+1] == '/':
			return true
		}
	}
	return false
}

func formatStmt(n ast.Node, depth int) string {
	prefix := strings.Repeat(indent, depth)
	switch stmt := n.(type) {
	case *ast.VariableDeclaration:
		return prefix + stmt.Type.String() + " " + stmt.Name
	case *ast.VariableDeclarationAssign:
		return prefix + stmt.Type.String() + " " + stmt.Name + " = " + formatExpr(stmt.Value)
	case *ast.VariableAssign:
		return prefix + formatAssign(stmt)
	case *ast.FunctionCall:
		return prefix + formatExpr(stmt)
	case *ast.Function:
		params := make([]string, len(stmt.Params))
		for i, p := range stmt.Params {
			params[i] = p.Type.String() + " " + p.Name
		}
		return prefix + "func " + stmt.Name + "(" + strings.Join(params, ", ") + ") " + formatBlock(stmt.Body, depth)
	case *ast.If:
		out := prefix + "if (" + formatExpr(stmt.Cond) + ") " + formatBlock(stmt.Then, depth)
		if stmt.Else != nil {
			out += " else " + formatBlock(stmt.Else, depth)
		}
		return out
	case *ast.While:
		return prefix + "while (" + formatExpr(stmt.Cond) + ") " + formatBlock(stmt.Body, depth)
	case *ast.For:
		init := strings.TrimSpace(formatStmt(stmt.Init, 0))
		step := strings.TrimSpace(formatStmt(stmt.Step, 0))
		return prefix + "for (" + init + "; " + formatExpr(stmt.Cond) + "; " + step + ") " + formatBlock(stmt.Body, depth)
	}
	return prefix + formatExpr(n)
}

func formatAssign(a *ast.VariableAssign) string {
	return a.Name + " = " + formatExpr(a.Value)
}

func formatBlock(b *ast.Block, depth int) string {
	var lines []string
	for _, s := range b.Statements {
		if _, skip := s.(*ast.NoOp); skip {
			continue
		}
		lines = append(lines, formatStmt(s, depth+1))
	}
	if len(lines) == 0 {
		return "{}"
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + strings.Repeat(indent, depth) + "}"
}

func formatExpr(n ast.Node) string {
	switch expr := n.(type) {
	case *ast.Number:
		return strconv.FormatInt(int64(expr.Value), 10)
	case *ast.Str:
		// String literals have no escapes; the value never contains a quote.
		return `"` + expr.Value + `"`
	case *ast.Bool:
		if expr.Value {
			return "true"
		}
		return "false"
	case *ast.VariableUsage:
		return expr.Name
	case *ast.FunctionCall:
		args := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			args[i] = formatExpr(a)
		}
		return expr.Name + "(" + strings.Join(args, ", ") + ")"
	case *ast.Unary:
		return string(expr.Op) + factor(expr.Operand)
	case *ast.Binary:
		if expr.Op == ast.OpAdd || expr.Op == ast.OpSub {
			right := formatExpr(expr.Right)
			if isAdditive(expr.Right) {
				right = "(" + right + ")"
			}
			return formatExpr(expr.Left) + " " + string(expr.Op) + " " + right
		}
		return termLeft(expr.Left) + " " + string(expr.Op) + " " + factor(expr.Right)
	case *ast.Comparison:
		return termLeft(expr.Left) + " " + string(expr.Op) + " " + factor(expr.Right)
	}
	return ""
}

func isAdditive(n ast.Node) bool {
	b, ok := n.(*ast.Binary)
	return ok && (b.Op == ast.OpAdd || b.Op == ast.OpSub)
}

// termLeft formats the left operand of a term-level operator.
func termLeft(n ast.Node) string {
	if _, ok := n.(*ast.Comparison); ok || isAdditive(n) {
		return "(" + formatExpr(n) + ")"
	}
	return formatExpr(n)
}

// factor formats an operand that the grammar parses as a single factor.
func factor(n ast.Node) string {
	switch n.(type) {
	case *ast.Binary, *ast.Comparison:
		return "(" + formatExpr(n) + ")"
	}
	return formatExpr(n)
}
