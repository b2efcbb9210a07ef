package formatter

import (
	"strconv"
	"strings"

	"github.com/thomasrohde/slug/pkg/ast"
)

// ShapeNode is a position-free view of an AST node.
type ShapeNode struct {
	Kind     string
	Label    string
	Children []ShapeNode
}

// Shape returns the structure of n without spans or compile-time links.
func Shape(n ast.Node) ShapeNode {
	s := ShapeNode{Kind: n.Kind(), Label: label(n)}
	for _, c := range ast.Children(n) {
		s.Children = append(s.Children, Shape(c))
	}
	return s
}

// ShapeString renders Shape(n) as an s-expression, e.g.
// (Binary + (Number 1) (Number 2)).
func ShapeString(n ast.Node) string {
	var b strings.Builder
	writeShape(&b, Shape(n))
	return b.String()
}

func writeShape(b *strings.Builder, s ShapeNode) {
	b.WriteByte('(')
	b.WriteString(s.Kind)
	if s.Label != "" {
		b.WriteByte(' ')
		b.WriteString(s.Label)
	}
	for _, c := range s.Children {
		b.WriteByte(' ')
		writeShape(b, c)
	}
	b.WriteByte(')')
}

func label(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Number:
		return strconv.FormatInt(int64(n.Value), 10)
	case *ast.Str:
		return strconv.Quote(n.Value)
	case *ast.Bool:
		return strconv.FormatBool(n.Value)
	case *ast.VariableUsage:
		return n.Name
	case *ast.VariableDeclaration:
		return n.Type.String() + " " + n.Name
	case *ast.VariableDeclarationAssign:
		return n.Type.String() + " " + n.Name
	case *ast.VariableAssign:
		return n.Name
	case *ast.Binary:
		return string(n.Op)
	case *ast.Comparison:
		return string(n.Op)
	case *ast.Unary:
		return string(n.Op)
	case *ast.Function:
		return n.Name
	case *ast.FunctionCall:
		if n.Target == nil {
			return n.Name + " builtin"
		}
		return n.Name
	case *ast.NoOp:
		return strconv.Quote(n.Text)
	}
	return ""
}
