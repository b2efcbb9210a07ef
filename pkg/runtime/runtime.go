// Package runtime provides the top-level slug runtime orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/builtins"
	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/diagnostics"
	"github.com/thomasrohde/slug/pkg/evaluator"
	"github.com/thomasrohde/slug/pkg/formatter"
	"github.com/thomasrohde/slug/pkg/lexer"
	"github.com/thomasrohde/slug/pkg/parser"
	"github.com/thomasrohde/slug/pkg/validator"
)

// Result holds the outcome of a program execution.
type Result struct {
	Globals *evaluator.Scope
	RunID   string
}

// Runtime wires together all slug components for program execution.
type Runtime struct {
	builtins *builtins.Registry
	policy   *capabilities.Policy
	logger   *slog.Logger
	stdout   io.Writer
	stdin    io.Reader
	seed     *int64
	runID    string
	trace    func(event evaluator.TraceEvent)
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithBuiltins replaces the default builtins. The stdio and seed options
// only apply to the defaults.
func WithBuiltins(r *builtins.Registry) Option {
	return func(rt *Runtime) {
		rt.builtins = r
	}
}

// WithPolicy sets the capability policy.
func WithPolicy(p *capabilities.Policy) Option {
	return func(rt *Runtime) {
		rt.policy = p
	}
}

// WithLogger sets the logger used for timings and trace events.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithStdout sets where WriteLine writes.
func WithStdout(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.stdout = w
	}
}

// WithStdin sets where ReadLine reads.
func WithStdin(r io.Reader) Option {
	return func(rt *Runtime) {
		rt.stdin = r
	}
}

// WithSeed makes Random deterministic.
func WithSeed(seed int64) Option {
	return func(rt *Runtime) {
		rt.seed = &seed
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// New creates a new Runtime with the given options.
// By default every capability is allowed and nothing is logged.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		policy: capabilities.AllowAll(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		stdout: os.Stdout,
		stdin:  os.Stdin,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// registry returns the builtins a run may call, after the policy is applied.
func (rt *Runtime) registry() *builtins.Registry {
	reg := rt.builtins
	if reg == nil {
		seed := time.Now().UnixNano()
		if rt.seed != nil {
			seed = *rt.seed
		}
		reg = builtins.NewRegistry()
		builtins.RegisterDefaults(reg, builtins.IO{
			Stdout: rt.stdout,
			Stdin:  rt.stdin,
			Rand:   rand.New(rand.NewSource(seed)),
		})
	}
	return reg.Filter(rt.policy)
}

// Parse parses a slug program, resolving calls against the builtins the
// policy allows.
func (rt *Runtime) Parse(source, filename string) (*ast.Program, error) {
	return rt.parse(source, filename, rt.registry())
}

func (rt *Runtime) parse(source, filename string, reg *builtins.Registry) (*ast.Program, error) {
	start := time.Now()
	program, diags := parser.Parse(source, filename, parser.WithBuiltins(reg))
	rt.logger.Debug("parsed program", "file", filename, "elapsed", time.Since(start), "diagnostics", len(diags))
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	return program, nil
}

// Run parses and executes a slug program. The returned Result carries the
// globals even when evaluation fails part way.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	reg := rt.registry()
	program, err := rt.parse(source, filename, reg)
	if err != nil {
		return nil, err
	}

	runID := rt.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := rt.logger.With("run", runID)
	logger.Debug("capabilities", "allowed", rt.policy.String(), "builtins", strings.Join(reg.Names(), ","))

	start := time.Now()
	exec, err := evaluator.Execute(ctx, program, evaluator.ExecOptions{
		Builtins: reg.Exec(),
		Trace:    rt.traceFunc(logger),
		RunID:    runID,
	})
	logger.Debug("interpreted program", "file", filename, "elapsed", time.Since(start), "ok", err == nil)

	result := &Result{RunID: runID}
	if exec != nil {
		result.Globals = exec.Globals
	}
	return result, err
}

func (rt *Runtime) traceFunc(logger *slog.Logger) func(evaluator.TraceEvent) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) && rt.trace == nil {
		return nil
	}
	return func(ev evaluator.TraceEvent) {
		attrs := []any{"event", string(ev.Event)}
		if ev.Span != nil {
			attrs = append(attrs, "line", ev.Span.StartLine, "col", ev.Span.StartCol)
		}
		for k, v := range ev.Data {
			attrs = append(attrs, k, v)
		}
		logger.Debug("trace", attrs...)
		if rt.trace != nil {
			rt.trace(ev)
		}
	}
}

// Check parses and validates a slug program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.Parse(source, filename, parser.WithBuiltins(rt.registry()))
	if len(diags) > 0 {
		return diags
	}
	return validator.Validate(program)
}

// Format parses and formats a slug program. Calls are not resolved against
// the builtins, so any syntactically valid program can be formatted.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

// Tokens lexes a slug program.
func (rt *Runtime) Tokens(source, filename string) ([]lexer.Token, error) {
	toks, err := lexer.Tokenize(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{le.Diag}}
		}
		return nil, err
	}
	return toks, nil
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
