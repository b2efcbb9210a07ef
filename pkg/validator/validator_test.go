package validator_test

import (
	"strings"
	"testing"

	"github.com/thomasrohde/slug/pkg/diagnostics"
	"github.com/thomasrohde/slug/pkg/parser"
	"github.com/thomasrohde/slug/pkg/validator"
)

// mustParseAndValidate parses source and validates, returning diagnostics from validation only.
// It fatals on parse errors so test cases focus on validator behavior.
func mustParseAndValidate(t *testing.T, source string) []diagnostics.Diagnostic {
	t.Helper()
	prog, parseErrs := parser.Parse(source, "test.slug", parser.WithBuiltins(parser.BuiltinNames("WriteLine", "ReadLine", "Random")))
	if len(parseErrs) > 0 {
		t.Fatalf("unexpected parse error: %s", parseErrs[0].Message)
	}
	return validator.Validate(prog)
}

func assertNoDiags(t *testing.T, diags []diagnostics.Diagnostic) {
	t.Helper()
	if len(diags) != 0 {
		var msgs []string
		for _, d := range diags {
			msgs = append(msgs, d.Code+": "+d.Message)
		}
		t.Errorf("expected no diagnostics, got %d:\n  %s", len(diags), strings.Join(msgs, "\n  "))
	}
}

func assertDiagCount(t *testing.T, diags []diagnostics.Diagnostic, expected int) {
	t.Helper()
	if len(diags) != expected {
		var msgs []string
		for _, d := range diags {
			msgs = append(msgs, d.Code+": "+d.Message)
		}
		t.Errorf("expected %d diagnostics, got %d:\n  %s", expected, len(diags), strings.Join(msgs, "\n  "))
	}
}

// assertDiag checks that diagnostic at index i has the expected code and
// that its message contains the fragment.
func assertDiag(t *testing.T, diags []diagnostics.Diagnostic, index int, code, fragment string) {
	t.Helper()
	if index >= len(diags) {
		t.Errorf("expected diagnostic at index %d with code %s, but only %d diagnostics exist", index, code, len(diags))
		return
	}
	if diags[index].Code != code {
		t.Errorf("diagnostic[%d]: got code %q, want %q (message: %s)", index, diags[index].Code, code, diags[index].Message)
	}
	if !strings.Contains(diags[index].Message, fragment) {
		t.Errorf("diagnostic[%d]: message %q does not contain %q", index, diags[index].Message, fragment)
	}
	if diags[index].Span == nil {
		t.Errorf("diagnostic[%d]: missing span", index)
	}
}

// ===== Valid programs =====

func TestValid(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"globals only", `int a = 1 int b = a + 2`},
		{"empty main", `func Main() { }`},
		{"main uses globals", `int a string s func Main() { a = 3 s = "x" WriteLine(a) }`},
		{"helper then main", `func Show(int x) { WriteLine(x) } func Main() { Show(1) }`},
		{"if else", `func Main() { int a = 1 if (a > 0) { int b = 1 } else { int b = 2 } }`},
		{"for loop", `func Main() { for (int i = 0; i < 3; i = i + 1) { int sq = i * i WriteLine(sq) } }`},
		{"for reuse name", `func Main() { for (int i = 0; i < 1; i = i + 1) { } for (int i = 0; i < 1; i = i + 1) { } }`},
		{"while shares scope", `func Main() { int i = 0 while (i < 3) { i = i + 1 } }`},
		{"while declaration visible after", `func Main() { int i = 0 while (i < 1) { int seen = 1 i = i + 1 } WriteLine(seen) }`},
		{"interpolation", `int n = 2 func Main() { string s = "n is $n" WriteLine("$s !") }`},
		{"bare dollar", `func Main() { WriteLine("cost: $ 5") }`},
		{"unary number", `func Main() { int a = -5 int b = +(3) }`},
		{"builtin returns", `func Main() { int r = Random(1, 3) string s = ReadLine() }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNoDiags(t, mustParseAndValidate(t, tt.source))
		})
	}
}

// ===== Structure =====

func TestError_EmptyProgram(t *testing.T) {
	diags := mustParseAndValidate(t, ``)
	assertDiagCount(t, diags, 1)
	assertDiag(t, diags, 0, diagnostics.EStructure, "no global declarations")
}

func TestError_MainNotLast(t *testing.T) {
	diags := mustParseAndValidate(t, `func Main() { } func Helper() { }`)
	assertDiagCount(t, diags, 1)
	assertDiag(t, diags, 0, diagnostics.EStructure, "found Helper")
}

func TestError_MainWithParams(t *testing.T) {
	diags := mustParseAndValidate(t, `func Main(int a) { }`)
	assertDiagCount(t, diags, 1)
	assertDiag(t, diags, 0, diagnostics.EType, "Main expects 1 arguments, got 0")
}

// ===== Types =====

func TestError_Conditions(t *testing.T) {
	tests := []struct {
		name, source, fragment string
	}{
		{"if binary", `func Main() { if (1 + 1) { } }`, "if condition must be a comparison, got Binary"},
		{"if bool", `func Main() { if (true) { } }`, "got Bool"},
		{"while number", `func Main() { while (1) { } }`, "while condition must be a comparison, got Number"},
		{"if variable", `bool b func Main() { if (b) { } }`, "got VariableUsage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := mustParseAndValidate(t, tt.source)
			assertDiagCount(t, diags, 1)
			assertDiag(t, diags, 0, diagnostics.EType, tt.fragment)
		})
	}
}

func TestError_UnaryOperand(t *testing.T) {
	diags := mustParseAndValidate(t, `int x = 1 func Main() { int a = -x int b = - +5 }`)
	assertDiagCount(t, diags, 2)
	assertDiag(t, diags, 0, diagnostics.EType, "unary - needs a number literal, got VariableUsage")
	assertDiag(t, diags, 1, diagnostics.EType, "got Unary")
}

func TestError_CallArity(t *testing.T) {
	diags := mustParseAndValidate(t, `func Add(int a, int b) { } func Main() { Add(1) Add(1, 2) Add(1, 2, 3) }`)
	assertDiagCount(t, diags, 2)
	assertDiag(t, diags, 0, diagnostics.EType, "function Add expects 2 arguments, got 1")
	assertDiag(t, diags, 1, diagnostics.EType, "got 3")
}

func TestBuiltinArityNotChecked(t *testing.T) {
	assertNoDiags(t, mustParseAndValidate(t, `func Main() { WriteLine(1, 2) }`))
}

// ===== Scopes =====

func TestError_Redeclaration(t *testing.T) {
	tests := []struct {
		name, source string
	}{
		{"global twice", `int a int a`},
		{"local shadows global", `int a func Main() { int a = 1 }`},
		{"param shadows global", `int a func Show(int a) { } func Main() { }`},
		{"nested block", `func Main() { int a if (1 == 1) { string a } }`},
		{"for init shadows local", `func Main() { int i for (int i = 0; i < 1; i = i + 1) { } }`},
		{"for body shadows counter", `func Main() { for (int i = 0; i < 1; i = i + 1) { int i } }`},
		{"local shadows param", `func Show(int x) { int x } func Main() { }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := mustParseAndValidate(t, tt.source)
			assertDiagCount(t, diags, 1)
			assertDiag(t, diags, 0, diagnostics.EScope, "already declared")
		})
	}
}

func TestSiblingBlocksMayReuseNames(t *testing.T) {
	assertNoDiags(t, mustParseAndValidate(t, `func Main() {
  if (1 == 1) { int b = 1 }
  if (1 == 1) { int b = 2 }
}`))
}

func TestError_NotFoundInMain(t *testing.T) {
	tests := []struct {
		name, source, fragment string
	}{
		{"use", `func Main() { WriteLine(missing) }`, "variable missing not found"},
		{"assign", `func Main() { missing = 1 }`, "variable missing not found"},
		{"interpolation", `func Main() { WriteLine("hi $who") }`, "variable who not found"},
		{"block local gone", `func Main() { if (1 == 1) { int b } b = 2 }`, "variable b not found"},
		{"for counter gone", `func Main() { for (int i = 0; i < 1; i = i + 1) { } WriteLine(i) }`, "variable i not found"},
		{"global used before declared", `int a = b int b`, "variable b not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := mustParseAndValidate(t, tt.source)
			assertDiagCount(t, diags, 1)
			assertDiag(t, diags, 0, diagnostics.EScope, tt.fragment)
		})
	}
}

func TestHelpersMayUseCallerNames(t *testing.T) {
	// Show reads total from whichever scope calls it.
	assertNoDiags(t, mustParseAndValidate(t, `func Show() { WriteLine(total) } func Main() { int total = 3 Show() }`))
}

func TestNestedFunctionBodiesChecked(t *testing.T) {
	diags := mustParseAndValidate(t, `func Main() {
  func Inner(int n) { while (n) { } WriteLine(fromCaller) }
  Inner(1)
  WriteLine(nope)
}`)
	assertDiagCount(t, diags, 2)
	assertDiag(t, diags, 0, diagnostics.EType, "while condition must be a comparison")
	assertDiag(t, diags, 1, diagnostics.EScope, "variable nope not found")
}

func TestMultipleKinds(t *testing.T) {
	diags := mustParseAndValidate(t, `int a int a func Main() { if (a) { } WriteLine(nope) }`)
	assertDiagCount(t, diags, 3)
	assertDiag(t, diags, 0, diagnostics.EScope, "variable a already declared")
	assertDiag(t, diags, 1, diagnostics.EType, "condition must be a comparison")
	assertDiag(t, diags, 2, diagnostics.EScope, "variable nope not found")
}
