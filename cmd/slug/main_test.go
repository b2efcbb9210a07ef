package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.slug")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	isolate(t)
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"slug"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageErrors(t *testing.T) {
	code, _, stderr := runCLI(t, "", "run")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "usage error: slug run FILE")

	code, _, stderr = runCLI(t, "", "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)

	code, _, stderr = runCLI(t, "", "run", filepath.Join(t.TempDir(), "missing.slug"))
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "E_IO")
}

func TestBadConfigFlag(t *testing.T) {
	path := writeProgram(t, `int a`)
	code, _, stderr := runCLI(t, "", "--log-level", "loud", "run", path)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "E_CONFIG")
}

func TestPrettyDiagnostics(t *testing.T) {
	path := writeProgram(t, `func Main() { Nope() }`)
	code, _, stderr := runCLI(t, "", "--pretty", "run", path)
	assert.Equal(t, exitCompile, code)
	assert.Contains(t, stderr, "error[E_PARSE]: function Nope does not exist")
	assert.Contains(t, stderr, "--> "+path+":1:15")
}

func TestDebugLogging(t *testing.T) {
	path := writeProgram(t, `func Main() { WriteLine(1) }`)
	code, stdout, stderr := runCLI(t, "", "--log-level", "debug", "--log-format", "json", "run", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "1\n", stdout)
	assert.Contains(t, stderr, `"msg":"interpreted program"`)
	assert.Contains(t, stderr, `"event":"builtin_call"`)
}

func TestTokensCommand(t *testing.T) {
	path := writeProgram(t, `int a = 1`)
	code, stdout, stderr := runCLI(t, "", "tokens", path)
	require.Equal(t, exitOK, code, stderr)
	for _, want := range []string{"POS", "TYPE", "VALUE", "1:1", "1:5", "end of file", "identifier"} {
		assert.Contains(t, stdout, want)
	}
}

func TestASTCommand(t *testing.T) {
	path := writeProgram(t, `int a = 1 + 2`)
	code, stdout, stderr := runCLI(t, "", "ast", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "(Binary + (Number 1) (Number 2))")

	code, stdout, stderr = runCLI(t, "", "ast", "--dump", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "ast.Program")
	assert.Contains(t, stdout, "StartLine: (int) 1")
}

func TestFmtWrite(t *testing.T) {
	path := writeProgram(t, "int   a=1\n")
	code, stdout, stderr := runCLI(t, "", "fmt", "--write", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int a = 1\n", string(data))

	commented := writeProgram(t, "int a // note //\n")
	code, _, stderr = runCLI(t, "", "fmt", "-w", commented)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "comments")
	data, err = os.ReadFile(commented)
	require.NoError(t, err)
	assert.Equal(t, "int a // note //\n", string(data))
}

func TestCheckPretty(t *testing.T) {
	path := writeProgram(t, `func Main() { }`)
	code, stdout, _ := runCLI(t, "", "--pretty", "check", path)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "No errors found.\n", stdout)
}

func TestPolicyCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "slug.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[capabilities]\ndeny = [\"rand\"]\n"), 0o644))

	code, stdout, stderr := runCLI(t, "", "--config", cfg, "policy")
	require.Equal(t, exitOK, code, stderr)
	lines := strings.Split(stdout, "\n")
	var randLine string
	for _, l := range lines {
		if strings.Contains(l, "rand") {
			randLine = l
		}
	}
	assert.Contains(t, randLine, "false")
	assert.Contains(t, stdout, "io.write")
}

func TestRunTraceAndSummary(t *testing.T) {
	path := writeProgram(t, `func Show(int x) { WriteLine(x) }
func Main() {
  for (int i = 0; i < 2; i = i + 1) { Show(i) }
}`)
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")

	code, stdout, stderr := runCLI(t, "", "run", "--trace", tracePath, path)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "0\n1\n", stdout)

	code, stdout, stderr = runCLI(t, "", "trace", tracePath)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"fnCalls":3`)
	assert.Contains(t, stdout, `"builtinCalls":2`)
	assert.Contains(t, stdout, `"callsByName":{"Main":1,"Show":2,"WriteLine":2}`)
	assert.Contains(t, stdout, `"ok":true`)

	code, stdout, stderr = runCLI(t, "", "trace", "--text", tracePath)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Run: ")
	assert.Contains(t, stdout, "WriteLine")
	assert.Contains(t, stdout, "TOTAL")
}

func TestComputeTraceSummarySkipsJunk(t *testing.T) {
	in := strings.Join([]string{
		`{"ts":"2024-01-01T00:00:00Z","runId":"r1","event":"run_start"}`,
		`not json`,
		``,
		`{"ts":"2024-01-01T00:00:00.5Z","runId":"r1","event":"var_declare","data":{"name":"a","depth":"3"}}`,
		`{"ts":"2024-01-01T00:00:01Z","runId":"r1","event":"run_end","data":{"ok":"false"}}`,
	}, "\n")
	s, err := computeTraceSummary(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "r1", s.RunID)
	assert.Equal(t, 3, s.TotalEvents)
	assert.Equal(t, 1, s.Declarations)
	assert.Equal(t, 3, s.MaxScopeDepth)
	assert.False(t, s.OK)
	assert.Equal(t, 1000.0, s.DurationMs)
}
