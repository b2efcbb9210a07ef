// Package capabilities implements the policy that decides which builtins a
// slug program may call.
package capabilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Capability IDs guarded by builtins.
const (
	IOWrite = "io.write"
	IORead  = "io.read"
	Rand    = "rand"
)

// Known lists every capability ID a policy may name.
var Known = []string{IOWrite, IORead, Rand}

// Policy defines which capabilities are allowed for program execution.
type Policy struct {
	Allowed map[string]bool // nil allows everything not in Denied
	Denied  map[string]bool
}

// PolicyFile is the on-disk form of a policy. An empty Allow list allows
// every capability that is not denied.
type PolicyFile struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty" toml:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty" toml:"deny,omitempty"`
}

// IsAllowed checks whether a capability is permitted by this policy.
// A nil policy allows everything.
func (p *Policy) IsAllowed(cap string) bool {
	if p == nil {
		return true
	}
	if p.Denied[cap] {
		return false
	}
	if p.Allowed == nil {
		return true
	}
	return p.Allowed[cap]
}

// String lists the allowed capabilities, for logging.
func (p *Policy) String() string {
	var allowed []string
	for _, cap := range Known {
		if p.IsAllowed(cap) {
			allowed = append(allowed, cap)
		}
	}
	return "[" + strings.Join(allowed, " ") + "]"
}

// Validate reports capability IDs in pf that no builtin uses.
func Validate(pf *PolicyFile) error {
	known := make(map[string]bool, len(Known))
	for _, cap := range Known {
		known[cap] = true
	}
	var unknown []string
	for _, cap := range append(append([]string(nil), pf.Allow...), pf.Deny...) {
		if !known[cap] {
			unknown = append(unknown, cap)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown capabilities: %s", strings.Join(unknown, ", "))
}

// LoadPolicy loads a policy from the project directory or the user's home.
// Precedence: project (.slugpolicy.json) → user (~/.slug/policy.json) → allow-all.
// A file that exists but cannot be parsed is an error.
func LoadPolicy(projectDir string) (*Policy, *PolicyFile, error) {
	paths := []string{filepath.Join(projectDir, ".slugpolicy.json")}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".slug", "policy.json"))
	}

	for _, path := range paths {
		pf, err := loadPolicyFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("policy %s: %w", path, err)
		}
		if err := Validate(pf); err != nil {
			return nil, nil, fmt.Errorf("policy %s: %w", path, err)
		}
		return Build(pf), pf, nil
	}

	return AllowAll(), nil, nil
}

func loadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf PolicyFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Build turns a policy file into a Policy. Deny overrides allow.
func Build(pf *PolicyFile) *Policy {
	if pf == nil {
		return AllowAll()
	}
	p := &Policy{Denied: make(map[string]bool)}
	if len(pf.Allow) > 0 {
		p.Allowed = make(map[string]bool)
		for _, cap := range pf.Allow {
			p.Allowed[cap] = true
		}
	}
	for _, cap := range pf.Deny {
		p.Denied[cap] = true
	}
	return p
}

// AllowAll returns a policy that permits all capabilities.
func AllowAll() *Policy {
	return &Policy{}
}

// DenyAll returns a policy that denies all capabilities.
func DenyAll() *Policy {
	return &Policy{Allowed: make(map[string]bool)}
}
