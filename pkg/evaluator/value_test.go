package evaluator_test

import (
	"testing"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/evaluator"
)

func TestValueStrings(t *testing.T) {
	tests := []struct {
		value evaluator.Value
		want  string
	}{
		{evaluator.NewInt(42), "42"},
		{evaluator.NewInt(-7), "-7"},
		{evaluator.NewStr("hello"), "hello"},
		{evaluator.NewStr(""), ""},
		{evaluator.NewBool(true), "true"},
		{evaluator.NewBool(false), "false"},
	}

	for i, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("test %d: String() = %q, want %q", i, got, tt.want)
		}
	}
}

func TestDefaultValue(t *testing.T) {
	if evaluator.DefaultValue(ast.TypeInt) != evaluator.NewInt(0) {
		t.Error("int default")
	}
	if evaluator.DefaultValue(ast.TypeString) != evaluator.NewStr("") {
		t.Error("string default")
	}
	if evaluator.DefaultValue(ast.TypeBool) != evaluator.NewBool(false) {
		t.Error("bool default")
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		value evaluator.Value
		want  int32
		ok    bool
	}{
		{evaluator.NewInt(3), 3, true},
		{evaluator.NewStr("12"), 12, true},
		{evaluator.NewStr("-12"), -12, true},
		{evaluator.NewStr(" 12"), 0, false},
		{evaluator.NewStr("2147483648"), 0, false},
		{evaluator.NewStr("abc"), 0, false},
		{evaluator.NewBool(true), 0, false},
		{nil, 0, false},
	}
	for i, tt := range tests {
		got, ok := evaluator.ToInt(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("test %d: ToInt(%v) = %d, %v; want %d, %v", i, tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTypeName(t *testing.T) {
	if evaluator.TypeName(evaluator.NewInt(1)) != "int" ||
		evaluator.TypeName(evaluator.NewStr("")) != "string" ||
		evaluator.TypeName(evaluator.NewBool(true)) != "bool" ||
		evaluator.TypeName(nil) != "no value" {
		t.Error("unexpected type names")
	}
}

func TestScopeToJSON(t *testing.T) {
	sc := evaluator.NewRootScope()
	_ = sc.Declare("b", ast.TypeString, evaluator.NewStr("x\"y"))
	_ = sc.Declare("a", ast.TypeInt, evaluator.NewInt(42))
	_ = sc.Declare("c", ast.TypeBool, nil)

	b, err := evaluator.ScopeToJSON(sc)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":42,"b":"x\"y","c":false}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}

	empty, _ := evaluator.ScopeToJSON(evaluator.NewRootScope())
	if string(empty) != "{}" {
		t.Errorf("got %s", empty)
	}
}

func TestScopeValues(t *testing.T) {
	sc := evaluator.NewRootScope()
	_ = sc.Declare("n", ast.TypeInt, evaluator.NewInt(5))
	vals := evaluator.ScopeValues(sc)
	if vals["n"] != int32(5) {
		t.Errorf("got %#v", vals)
	}
}
