package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/thomasrohde/slug/pkg/evaluator"
)

// TraceSummary aggregates the events of one NDJSON trace file.
type TraceSummary struct {
	RunID         string         `json:"runId"`
	TotalEvents   int            `json:"totalEvents"`
	FnCalls       int            `json:"fnCalls"`
	FnFailures    int            `json:"fnFailures"`
	BuiltinCalls  int            `json:"builtinCalls"`
	CallsByName   map[string]int `json:"callsByName"`
	Declarations  int            `json:"declarations"`
	MaxScopeDepth int            `json:"maxScopeDepth"`
	OK            bool           `json:"ok"`
	StartTime     string         `json:"startTime,omitempty"`
	EndTime       string         `json:"endTime,omitempty"`
	DurationMs    float64        `json:"durationMs"`
}

func computeTraceSummary(r io.Reader) (*TraceSummary, error) {
	summary := &TraceSummary{CallsByName: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event evaluator.TraceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case evaluator.TraceRunStart:
			if summary.StartTime == "" {
				summary.StartTime = event.Timestamp
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.Timestamp
			summary.OK = event.Data["ok"] == "true"
		case evaluator.TraceFnCallStart:
			summary.FnCalls++
			summary.CallsByName[event.Data["fn"]]++
		case evaluator.TraceFnCallEnd:
			if event.Data["ok"] == "false" {
				summary.FnFailures++
			}
		case evaluator.TraceBuiltinCall:
			summary.BuiltinCalls++
			summary.CallsByName[event.Data["fn"]]++
		case evaluator.TraceVarDeclare:
			summary.Declarations++
			if d, err := strconv.Atoi(event.Data["depth"]); err == nil && d > summary.MaxScopeDepth {
				summary.MaxScopeDepth = d
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := time.Parse(time.RFC3339Nano, summary.StartTime)
		end, err2 := time.Parse(time.RFC3339Nano, summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Microseconds()) / 1000
		}
	}
	return summary, nil
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s (ok: %t)\n", s.RunID, s.OK)
	fmt.Fprintf(w, "Events: %d, declarations: %d, max scope depth: %d\n", s.TotalEvents, s.Declarations, s.MaxScopeDepth)
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.3fms\n", s.DurationMs)
	}

	names := make([]string, 0, len(s.CallsByName))
	for name := range s.CallsByName {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Function", "Calls"})
	table.SetBorder(false)
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(s.CallsByName[name])})
	}
	table.SetFooter([]string{"total", strconv.Itoa(s.FnCalls + s.BuiltinCalls)})
	table.Render()
}

func (s *session) cmdTrace(c *cli.Context) error {
	path, err := s.fileArg(c)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return s.report(nil, fmt.Errorf("cannot read file: %w", err))
	}
	defer f.Close()

	summary, err := computeTraceSummary(f)
	if err != nil {
		return s.report(nil, err)
	}
	if c.Bool("text") {
		printTraceSummaryText(s.stdout, summary)
		return nil
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return s.report(nil, err)
	}
	fmt.Fprintln(s.stdout, string(b))
	return nil
}
