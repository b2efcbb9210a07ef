// Package config loads slug's settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/slug/pkg/capabilities"
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

type Config struct {
	Log          LogConfig               `toml:"log" yaml:"log"`
	Diagnostics  DiagnosticsConfig       `toml:"diagnostics" yaml:"diagnostics"`
	Random       RandomConfig            `toml:"random" yaml:"random"`
	Capabilities capabilities.PolicyFile `toml:"capabilities" yaml:"capabilities"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// DiagnosticsConfig controls how errors are printed. Nil fields mean
// "decide from the terminal".
type DiagnosticsConfig struct {
	Pretty *bool `toml:"pretty,omitempty" yaml:"pretty,omitempty"`
	Color  *bool `toml:"color,omitempty" yaml:"color,omitempty"`
}

type RandomConfig struct {
	Seed *int64 `toml:"seed,omitempty" yaml:"seed,omitempty"`
}

// Handle records where a config came from. Path is empty for defaults.
type Handle struct {
	Path   string
	Format Format
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	var errs error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = errors.Join(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = errors.Join(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if err := capabilities.Validate(&c.Capabilities); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

// HasPolicy reports whether the file named any capabilities.
func (c Config) HasPolicy() bool {
	return len(c.Capabilities.Allow) > 0 || len(c.Capabilities.Deny) > 0
}

// FormatFor picks a decoder from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Load reads one config file. Missing fields keep their defaults.
func Load(path string) (Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := decode(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func decode(data []byte, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}
	return cfg, nil
}

// Dir is the user-level config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "slug")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "slug")
	}
	return ""
}

// Candidates lists the files Discover tries, in order.
func Candidates(projectDir string) []Handle {
	var out []Handle
	add := func(dir string) {
		out = append(out,
			Handle{Path: filepath.Join(dir, "slug.toml"), Format: FormatTOML},
			Handle{Path: filepath.Join(dir, ".slug.yaml"), Format: FormatYAML},
			Handle{Path: filepath.Join(dir, ".slug.yml"), Format: FormatYAML},
		)
	}
	if projectDir != "" {
		add(projectDir)
	}
	if dir := Dir(); dir != "" {
		add(dir)
	}
	return out
}

// Discover loads the first config file found for projectDir and falls back
// to Default. Parse errors fail immediately; missing files are skipped.
func Discover(projectDir string) (Config, Handle, error) {
	var accumulated error
	for _, candidate := range Candidates(projectDir) {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(accumulated, fmt.Errorf("read config %q: %w", candidate.Path, err))
			continue
		}
		cfg, err := decode(data, candidate.Format)
		if err != nil {
			return Config{}, Handle{}, fmt.Errorf("parse config %q: %w", candidate.Path, err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, Handle{}, fmt.Errorf("config %q: %w", candidate.Path, err)
		}
		return cfg, candidate, nil
	}
	if accumulated != nil {
		return Config{}, Handle{}, accumulated
	}
	return Default(), Handle{}, nil
}
