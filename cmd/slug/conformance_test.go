package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/thomasrohde/slug/internal/testutil"
	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/diagnostics"
)

// isolate keeps user-level config and policy files out of the run.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestConformance(t *testing.T) {
	dirs, err := testutil.ListScenarios(testutil.ScenariosDir)
	if err != nil {
		t.Fatalf("listing scenarios: %v", err)
	}
	if len(dirs) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, dir := range dirs {
		dir := dir
		t.Run(filepath.Base(dir), func(t *testing.T) {
			isolate(t)
			scenario, err := testutil.LoadScenario(dir)
			if err != nil {
				t.Fatalf("failed to load scenario: %v", err)
			}
			runScenario(t, dir, scenario)
		})
	}
}

func runScenario(t *testing.T, dir string, scenario *testutil.Scenario) {
	t.Helper()

	args := []string{"slug"}
	if scenario.Policy != nil {
		args = append(args, "--config", writePolicyConfig(t, scenario.Policy))
	}
	args = append(args, scenario.Args...)
	args = append(args, testutil.CommandArgs(dir, scenario.Cmd)...)

	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(scenario.Stdin), &stdout, &stderr)

	want := scenario.Expect
	if code != want.ExitCode {
		t.Errorf("exit code: got %d, want %d\nstderr: %s", code, want.ExitCode, stderr.String())
	}
	if want.StdoutText != nil && stdout.String() != *want.StdoutText {
		t.Errorf("stdout:\n got %q\nwant %q", stdout.String(), *want.StdoutText)
	}
	if want.StdoutContains != "" && !strings.Contains(stdout.String(), want.StdoutContains) {
		t.Errorf("stdout %q does not contain %q", stdout.String(), want.StdoutContains)
	}
	if want.StdoutJSON != nil {
		checkStdoutJSON(t, stdout.String(), want.StdoutJSON)
	}
	if want.StderrCode != "" {
		checkStderrCode(t, stderr.String(), want.StderrCode)
	}
	if want.StderrContains != "" && !strings.Contains(stderr.String(), want.StderrContains) {
		t.Errorf("stderr %q does not contain %q", stderr.String(), want.StderrContains)
	}
}

func writePolicyConfig(t *testing.T, p *testutil.ScenarioPolicy) string {
	t.Helper()
	cfg := struct {
		Capabilities capabilities.PolicyFile `toml:"capabilities"`
	}{capabilities.PolicyFile{Allow: p.Allow, Deny: p.Deny}}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encoding policy: %v", err)
	}
	path := filepath.Join(t.TempDir(), "slug.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func checkStdoutJSON(t *testing.T, stdout string, expected any) {
	t.Helper()
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	var got any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &got); err != nil {
		t.Fatalf("last stdout line is not JSON: %v\nstdout: %s", err, stdout)
	}
	want, err := testutil.NormalizeJSON(expected)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stdout JSON mismatch (-want +got):\n%s", diff)
	}
}

func checkStderrCode(t *testing.T, stderr, code string) {
	t.Helper()
	var diags []diagnostics.Diagnostic
	line := stderr[strings.LastIndex(strings.TrimRight(stderr, "\n"), "\n")+1:]
	if err := json.Unmarshal([]byte(line), &diags); err != nil {
		t.Fatalf("stderr is not a diagnostics array: %v\nstderr: %s", err, stderr)
	}
	if len(diags) == 0 {
		t.Fatalf("no diagnostics on stderr")
	}
	if diags[0].Code != code {
		t.Errorf("diagnostic code: got %s, want %s (%s)", diags[0].Code, code, diags[0].Message)
	}
	if diags[0].Span == nil && diagnostics.IsCompileTime(code) {
		t.Errorf("compile-time diagnostic has no span")
	}
}
