package builtins

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thomasrohde/slug/pkg/capabilities"
	"github.com/thomasrohde/slug/pkg/evaluator"
)

// IO is the environment the default builtins talk to. Zero fields fall
// back to the process's stdout and stdin and a time-seeded generator.
type IO struct {
	Stdout io.Writer
	Stdin  io.Reader
	Rand   *rand.Rand
}

// RegisterDefaults adds WriteLine, Random and ReadLine.
func RegisterDefaults(r *Registry, env IO) {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stdin == nil {
		env.Stdin = os.Stdin
	}
	if env.Rand == nil {
		env.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	in := bufio.NewReader(env.Stdin)

	r.Register(Fn{Name: "WriteLine", CapabilityID: capabilities.IOWrite, Execute: writeLine(env.Stdout)})
	r.Register(Fn{Name: "Random", CapabilityID: capabilities.Rand, Execute: random(env.Rand)})
	r.Register(Fn{Name: "ReadLine", CapabilityID: capabilities.IORead, Execute: readLine(in)})
}

func arity(name string, args []evaluator.Value, want ...int) error {
	for _, n := range want {
		if len(args) == n {
			return nil
		}
	}
	counts := make([]string, len(want))
	for i, n := range want {
		counts[i] = strconv.Itoa(n)
	}
	return fmt.Errorf("%w: %s takes %s, got %d", evaluator.ErrArity, name, strings.Join(counts, " or "), len(args))
}

// writeLine prints its single argument followed by a newline.
func writeLine(out io.Writer) func(context.Context, []evaluator.Value) (evaluator.Value, error) {
	return func(_ context.Context, args []evaluator.Value) (evaluator.Value, error) {
		if err := arity("WriteLine", args, 1); err != nil {
			return nil, err
		}
		if _, err := fmt.Fprintln(out, args[0].String()); err != nil {
			return nil, fmt.Errorf("%w: %v", evaluator.ErrIO, err)
		}
		return nil, nil
	}
}

func intArg(name string, v evaluator.Value) (int32, error) {
	n, ok := evaluator.ToInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s needs integer arguments, got %s %q", evaluator.ErrArgument, name, evaluator.TypeName(v), v.String())
	}
	return n, nil
}

// random returns an integer in [0, n) for Random(n) and in [lo, hi) for
// Random(lo, hi).
func random(rng *rand.Rand) func(context.Context, []evaluator.Value) (evaluator.Value, error) {
	return func(_ context.Context, args []evaluator.Value) (evaluator.Value, error) {
		if err := arity("Random", args, 1, 2); err != nil {
			return nil, err
		}

		var lo, hi int32
		var err error
		if len(args) == 1 {
			if hi, err = intArg("Random", args[0]); err != nil {
				return nil, err
			}
		} else {
			if lo, err = intArg("Random", args[0]); err != nil {
				return nil, err
			}
			if hi, err = intArg("Random", args[1]); err != nil {
				return nil, err
			}
		}
		if lo >= hi {
			return nil, fmt.Errorf("%w: Random range [%d, %d) is empty", evaluator.ErrArgument, lo, hi)
		}

		span := int64(hi) - int64(lo)
		return evaluator.NewInt(int32(int64(lo) + rng.Int63n(span))), nil
	}
}

// readLine reads one line of input. A line holding a base-10 int32 comes
// back as an int, anything else as a string.
func readLine(in *bufio.Reader) func(context.Context, []evaluator.Value) (evaluator.Value, error) {
	return func(_ context.Context, args []evaluator.Value) (evaluator.Value, error) {
		if err := arity("ReadLine", args, 0); err != nil {
			return nil, err
		}

		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: end of input", evaluator.ErrIO)
			}
			return nil, fmt.Errorf("%w: %v", evaluator.ErrIO, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if n, err := strconv.ParseInt(line, 10, 32); err == nil {
			return evaluator.NewInt(int32(n)), nil
		}
		return evaluator.NewStr(line), nil
	}
}
