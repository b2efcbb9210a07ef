package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/evaluator"
	"github.com/thomasrohde/slug/pkg/formatter"
	"github.com/thomasrohde/slug/pkg/runtime"
)

func (s *session) cmdRun(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	st, err := s.setup(c, path)
	if err != nil {
		return err
	}
	source, filename, err := s.readSource(c, st)
	if err != nil {
		return err
	}

	opts := s.runtimeOptions(st)
	if tracePath := c.String("trace"); tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			return s.report(st, fmt.Errorf("cannot create trace file: %w", err))
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		opts = append(opts, runtime.WithTrace(func(ev evaluator.TraceEvent) {
			if err := enc.Encode(ev); err != nil {
				st.logger.Warn("trace write failed", "path", tracePath, "err", err)
			}
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := runtime.New(opts...).Run(ctx, source, filename)
	if err != nil {
		return s.report(st, err)
	}
	if c.Bool("globals") {
		b, err := evaluator.ScopeToJSON(res.Globals)
		if err != nil {
			return s.report(st, err)
		}
		fmt.Fprintln(s.stdout, string(b))
	}
	return nil
}

func (s *session) cmdCheck(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	st, err := s.setup(c, path)
	if err != nil {
		return err
	}
	source, filename, err := s.readSource(c, st)
	if err != nil {
		return err
	}

	diags := runtime.New(s.runtimeOptions(st)...).Check(source, filename)
	if len(diags) > 0 {
		return s.printDiags(st, diags)
	}
	if st.pretty {
		fmt.Fprintln(s.stdout, "No errors found.")
	} else {
		fmt.Fprintln(s.stdout, "[]")
	}
	return nil
}

func (s *session) cmdFmt(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	write := c.Bool("write")
	if write && path == "-" {
		return s.usage("--write needs a file, not standard input")
	}
	st, err := s.setup(c, path)
	if err != nil {
		return err
	}
	source, filename, err := s.readSource(c, st)
	if err != nil {
		return err
	}

	formatted, err := runtime.New(s.runtimeOptions(st)...).Format(source, filename)
	if err != nil {
		return s.report(st, err)
	}

	if formatter.HasComments(source) {
		if write {
			return s.usage("%s has comments, which formatting would drop; not rewriting", path)
		}
		fmt.Fprintln(s.stderr, "warning: comments are not preserved by the formatter")
	}

	if write {
		if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
			return s.report(st, fmt.Errorf("error writing file: %w", err))
		}
		return nil
	}
	fmt.Fprint(s.stdout, formatted)
	return nil
}

func (s *session) cmdTokens(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	st, err := s.setup(c, path)
	if err != nil {
		return err
	}
	source, filename, err := s.readSource(c, st)
	if err != nil {
		return err
	}

	toks, err := runtime.New(s.runtimeOptions(st)...).Tokens(source, filename)
	if err != nil {
		return s.report(st, err)
	}

	table := tablewriter.NewWriter(s.stdout)
	table.SetHeader([]string{"Pos", "Type", "Value"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, tok := range toks {
		pos := strconv.Itoa(tok.Span.StartLine) + ":" + strconv.Itoa(tok.Span.StartCol)
		table.Append([]string{pos, tok.Type.String(), tok.Value})
	}
	table.Render()
	return nil
}

func (s *session) cmdAST(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	st, err := s.setup(c, path)
	if err != nil {
		return err
	}
	source, filename, err := s.readSource(c, st)
	if err != nil {
		return err
	}

	program, err := runtime.New(s.runtimeOptions(st)...).Parse(source, filename)
	if err != nil {
		return s.report(st, err)
	}

	if c.Bool("dump") {
		dumper := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(s.stdout, program)
		return nil
	}
	fmt.Fprintln(s.stdout, formatter.ShapeString(program))
	return nil
}

func (s *session) cmdPolicy(c *cli.Context) error {
	st, err := s.setup(c, "")
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(s.stdout)
	table.SetHeader([]string{"Capability", "Allowed"})
	table.SetBorder(false)
	for _, cap := range capabilities.Known {
		table.Append([]string{cap, strconv.FormatBool(st.policy.IsAllowed(cap))})
	}
	table.Render()
	return nil
}
