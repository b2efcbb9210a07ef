package ast_test

import (
	"testing"

	"github.com/thomasrohde/slug/pkg/ast"
)

func TestNodeKinds(t *testing.T) {
	nodes := []ast.Node{
		&ast.Number{Value: 42},
		&ast.Str{Value: "hello"},
		&ast.Bool{Value: true},
		&ast.VariableUsage{Name: "x"},
		&ast.Comparison{},
		&ast.Binary{},
		&ast.NoOp{},
		&ast.Program{},
	}

	expected := []string{
		"Number", "Str", "Bool", "VariableUsage",
		"Comparison", "Binary", "NoOp", "Program",
	}

	for i, node := range nodes {
		if got := node.Kind(); got != expected[i] {
			t.Errorf("node %d: got Kind() = %q, want %q", i, got, expected[i])
		}
	}
}

func TestVarTypeString(t *testing.T) {
	if ast.TypeInt.String() != "int" || ast.TypeString.String() != "string" || ast.TypeBool.String() != "bool" {
		t.Errorf("unexpected VarType names")
	}
}

func TestWalkPreOrder(t *testing.T) {
	body := &ast.Block{Statements: []ast.Node{
		&ast.VariableAssign{Name: "a", Value: &ast.Binary{
			Left:  &ast.Number{Value: 1},
			Op:    ast.OpAdd,
			Right: &ast.Number{Value: 2},
		}},
	}}
	prog := &ast.Program{Functions: []*ast.Function{{Name: "Main", Body: body}}}

	var kinds []string
	ast.Walk(prog, func(n ast.Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	want := []string{"Program", "Function", "Block", "VariableAssign", "Binary", "Number", "Number"}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	prog := &ast.Program{Functions: []*ast.Function{{Name: "Main", Body: &ast.Block{
		Statements: []ast.Node{&ast.NoOp{}},
	}}}}
	count := 0
	ast.Walk(prog, func(n ast.Node) bool {
		count++
		_, isFn := n.(*ast.Function)
		return !isFn
	})
	if count != 2 {
		t.Errorf("visited %d nodes, want 2", count)
	}
}

func TestEntry(t *testing.T) {
	if (&ast.Program{}).Entry() != nil {
		t.Error("expected nil entry for empty program")
	}
	p := &ast.Program{Functions: []*ast.Function{{Name: "Helper"}, {Name: "Main"}}}
	if p.Entry().Name != "Main" {
		t.Errorf("got entry %s", p.Entry().Name)
	}
}
