// Package testutil provides shared test helpers for slug Go tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ScenariosDir is the scenarios directory relative to a package one level
// below cmd/.
const ScenariosDir = "../../testdata/scenarios"

// ScenarioFile is the file that marks a scenario directory.
const ScenarioFile = "scenario.yaml"

// Scenario describes one CLI invocation and its expected outcome.
type Scenario struct {
	// Args are global flags placed before the command.
	Args   []string        `yaml:"args,omitempty"`
	Cmd    []string        `yaml:"cmd"`
	Stdin  string          `yaml:"stdin,omitempty"`
	Policy *ScenarioPolicy `yaml:"policy,omitempty"`
	Meta   *ScenarioMeta   `yaml:"meta,omitempty"`
	Expect ExpectedResult  `yaml:"expect"`
}

// ScenarioPolicy defines capability permissions for a scenario.
type ScenarioPolicy struct {
	Allow []string `yaml:"allow,omitempty"`
	Deny  []string `yaml:"deny,omitempty"`
}

// ScenarioMeta holds optional scenario metadata.
type ScenarioMeta struct {
	Tags []string `yaml:"tags,omitempty"`
}

// ExpectedResult describes the expected outcome of running a scenario.
type ExpectedResult struct {
	ExitCode       int     `yaml:"exitCode"`
	StdoutText     *string `yaml:"stdoutText,omitempty"`
	StdoutContains string  `yaml:"stdoutContains,omitempty"`
	// StdoutJSON is compared against the last line of stdout.
	StdoutJSON     any    `yaml:"stdoutJson,omitempty"`
	StderrCode     string `yaml:"stderrCode,omitempty"`
	StderrContains string `yaml:"stderrContains,omitempty"`
}

// LoadScenario loads a scenario from a directory containing scenario.yaml.
func LoadScenario(dir string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Join(dir, ScenarioFile))
	if err != nil {
		return nil, err
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if len(s.Cmd) == 0 {
		return nil, errors.New(dir + ": scenario has no cmd")
	}
	return &s, nil
}

// ListScenarios returns all scenario directories under the given root, sorted.
func ListScenarios(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			scenarioPath := filepath.Join(root, e.Name(), ScenarioFile)
			if _, err := os.Stat(scenarioPath); err == nil {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// CommandArgs returns the scenario's command with the program path, the last
// element, resolved against the scenario directory. "-" is left alone.
func CommandArgs(scenarioDir string, cmd []string) []string {
	out := append([]string(nil), cmd...)
	if n := len(out); n > 1 && out[n-1] != "-" {
		out[n-1] = filepath.Join(scenarioDir, out[n-1])
	}
	return out
}

// NormalizeJSON round-trips v through encoding/json so YAML-decoded and
// JSON-decoded values compare equal.
func NormalizeJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
