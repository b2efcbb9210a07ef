// Command slug is the slug interpreter CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"

	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/config"
	"github.com/thomasrohde/slug/pkg/diagnostics"
	"github.com/thomasrohde/slug/pkg/evaluator"
	"github.com/thomasrohde/slug/pkg/runtime"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1 // usage, IO and config errors
	exitCompile = 2 // lex and parse errors
	exitRuntime = 4 // everything evaluation reports
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML or YAML configuration file",
	}
	prettyFlag = cli.BoolFlag{
		Name:  "pretty",
		Usage: "human-readable diagnostics (default: when stderr is a terminal)",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
	}
	logFormatFlag = cli.StringFlag{
		Name:  "log-format",
		Usage: "text or json",
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "seed for Random",
	}
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// session carries the process streams into command actions.
type session struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// exitError ends the process with code. Its diagnostics have already been
// printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	s := &session{stdin: stdin, stdout: stdout, stderr: stderr}
	app := newApp(s)

	err := app.Run(args)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(stderr, "error:", err)
	return exitUsage
}

func newApp(s *session) *cli.App {
	app := cli.NewApp()
	app.Name = "slug"
	app.Usage = "run, check and format slug programs"
	app.Version = "0.1.0"
	app.Writer = s.stdout
	app.Flags = []cli.Flag{configFlag, prettyFlag, logLevelFlag, logFormatFlag, seedFlag}
	app.Action = func(c *cli.Context) error {
		if c.NArg() > 0 {
			return s.usage("unknown command %q", c.Args().First())
		}
		return cli.ShowAppHelp(c)
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Execute a program",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "globals", Usage: "print the global variables as JSON when the run ends"},
				cli.StringFlag{Name: "trace", Usage: "write trace events as NDJSON to `PATH`"},
			},
			Action: s.cmdRun,
		},
		{
			Name:      "check",
			Usage:     "Parse and validate a program without running it",
			ArgsUsage: "FILE",
			Action:    s.cmdCheck,
		},
		{
			Name:      "fmt",
			Usage:     "Print a program in canonical form",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "write, w", Usage: "rewrite the file in place"},
			},
			Action: s.cmdFmt,
		},
		{
			Name:      "tokens",
			Usage:     "Print the token stream",
			ArgsUsage: "FILE",
			Action:    s.cmdTokens,
		},
		{
			Name:      "ast",
			Usage:     "Print the syntax tree",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "dump", Usage: "dump every node field"},
			},
			Action: s.cmdAST,
		},
		{
			Name:   "policy",
			Usage:  "Show which capabilities programs may use",
			Action: s.cmdPolicy,
		},
		{
			Name:      "trace",
			Usage:     "Summarise an NDJSON trace file",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "text", Usage: "print a table instead of JSON"},
			},
			Action: s.cmdTrace,
		},
	}
	return app
}

// settings is the effective configuration for one command.
type settings struct {
	cfg    config.Config
	logger *slog.Logger
	pretty bool
	policy *capabilities.Policy
}

func (s *session) usage(format string, args ...any) error {
	fmt.Fprintf(s.stderr, "usage error: "+format+"\n", args...)
	return &exitError{code: exitUsage}
}

// report prints err as diagnostics and returns the matching exit error.
func (s *session) report(st *settings, err error) error {
	var de *runtime.DiagnosticError
	if errors.As(err, &de) {
		return s.printDiags(st, de.Diagnostics)
	}
	var re *evaluator.RuntimeError
	if errors.As(err, &re) {
		return s.printDiags(st, []diagnostics.Diagnostic{diagnostics.MakeDiag(re.Code, re.Message, re.Span, "")})
	}
	return s.printDiags(st, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, "")})
}

func (s *session) printDiags(st *settings, diags []diagnostics.Diagnostic) error {
	pretty := st != nil && st.pretty
	fmt.Fprintln(s.stderr, diagnostics.FormatDiagnostics(diags, pretty))
	code := exitRuntime
	for _, d := range diags {
		if c := exitCodeForDiag(d.Code); c < code {
			code = c
		}
	}
	return &exitError{code: code}
}

func exitCodeForDiag(code string) int {
	switch {
	case diagnostics.IsCompileTime(code):
		return exitCompile
	case code == diagnostics.EIO, code == diagnostics.EConfig:
		return exitUsage
	}
	return exitRuntime
}

// setup loads configuration for a command operating on path and applies
// the global flags on top of it.
func (s *session) setup(c *cli.Context, path string) (*settings, error) {
	projectDir := "."
	if path != "" && path != "-" {
		projectDir = filepath.Dir(path)
	}

	var (
		cfg config.Config
		err error
	)
	if file := c.GlobalString(configFlag.Name); file != "" {
		cfg, err = config.Load(file)
	} else {
		cfg, _, err = config.Discover(projectDir)
	}
	if err != nil {
		return nil, s.printDiags(nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, "")})
	}

	if c.GlobalIsSet(logLevelFlag.Name) {
		cfg.Log.Level = c.GlobalString(logLevelFlag.Name)
	}
	if c.GlobalIsSet(logFormatFlag.Name) {
		cfg.Log.Format = c.GlobalString(logFormatFlag.Name)
	}
	if c.GlobalIsSet(seedFlag.Name) {
		seed := c.GlobalInt64(seedFlag.Name)
		cfg.Random.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, s.printDiags(nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, "")})
	}

	st := &settings{cfg: cfg, logger: newLogger(s.stderr, cfg.Log)}

	terminal := isTerminal(s.stderr)
	st.pretty = terminal
	if cfg.Diagnostics.Pretty != nil {
		st.pretty = *cfg.Diagnostics.Pretty
	}
	if c.GlobalIsSet(prettyFlag.Name) {
		st.pretty = c.GlobalBool(prettyFlag.Name)
	}
	useColor := terminal
	if cfg.Diagnostics.Color != nil {
		useColor = *cfg.Diagnostics.Color
	}
	color.NoColor = !useColor

	if cfg.HasPolicy() {
		st.policy = capabilities.Build(&cfg.Capabilities)
	} else {
		st.policy, _, err = capabilities.LoadPolicy(projectDir)
		if err != nil {
			return nil, s.printDiags(st, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, "")})
		}
	}
	st.logger.Debug("configured", "policy", st.policy.String(), "pretty", st.pretty)
	return st, nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// runtimeOptions turns settings into runtime options shared by commands.
func (s *session) runtimeOptions(st *settings) []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(st.logger),
		runtime.WithPolicy(st.policy),
		runtime.WithStdout(s.stdout),
		runtime.WithStdin(s.stdin),
	}
	if st.cfg.Random.Seed != nil {
		opts = append(opts, runtime.WithSeed(*st.cfg.Random.Seed))
	}
	return opts
}

// readSource reads the program named by the command's first argument.
// "-" reads standard input.
func (s *session) readSource(c *cli.Context, st *settings) (source, filename string, err error) {
	path := c.Args().First()
	if path == "-" {
		data, err := io.ReadAll(s.stdin)
		if err != nil {
			return "", "", s.report(st, fmt.Errorf("cannot read standard input: %w", err))
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", s.report(st, fmt.Errorf("cannot read file: %w", err))
	}
	return string(data), path, nil
}

// fileArg checks that exactly one program path was given.
func (s *session) fileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", s.usage("slug %s %s", c.Command.Name, c.Command.ArgsUsage)
	}
	return c.Args().First(), nil
}
