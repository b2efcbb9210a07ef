package parser_test

import (
	"testing"

	"github.com/thomasrohde/slug/pkg/parser"
)

// FuzzParse feeds random inputs to the parser to catch panics and hangs.
func FuzzParse(f *testing.F) {
	seeds := []string{
		`func Main() { }`,
		`int a = 42
func Main() { WriteLine(a) }`,
		`func Test(int one, int two) { WriteLine(one + two) }
func Main() { Test(1, 2) }`,
		`func Main() { for (int i = 0; i < 3; i = i + 1) { WriteLine(i) } }`,
		`func Main() { int i = 0 while (i < 3) { i = i + 1 } }`,
		`func Main() { if (1 == 1) { } else { } }`,
		`func Main() { x = 1 < 2 * 3 }`,
		`func Main() { return class new }`,
		`func Main() { Later() }`,
		`func Main() {`,
		`func`,
		`int`,
		`for (`,
		`func Main() { x = -(-(5)) }`,
		`// comment // func Main() { }`,
		``,
		`}}}{{{`,
		`((((`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	builtins := parser.BuiltinNames("WriteLine", "Random", "ReadLine")
	f.Fuzz(func(t *testing.T, input string) {
		prog, diags := parser.Parse(input, "fuzz.slug", parser.WithBuiltins(builtins))
		if prog == nil && len(diags) == 0 {
			t.Fatalf("nil program without diagnostics for %q", input)
		}
		if prog != nil && len(diags) > 0 {
			t.Fatalf("program returned together with diagnostics for %q", input)
		}
	})
}
