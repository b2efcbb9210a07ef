package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/diagnostics"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart    TraceEventType = "run_start"
	TraceRunEnd      TraceEventType = "run_end"
	TraceFnCallStart TraceEventType = "fn_call_start"
	TraceFnCallEnd   TraceEventType = "fn_call_end"
	TraceBuiltinCall TraceEventType = "builtin_call"
	TraceVarDeclare  TraceEventType = "var_declare"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	RunID     string            `json:"runId"`
	Event     TraceEventType    `json:"event"`
	Span      *ast.Span         `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Builtin defines a natively implemented function callable from slug code.
type Builtin struct {
	Name    string
	Execute func(ctx context.Context, args []Value) (Value, error)
}

// Errors a builtin may wrap to select the reported code.
var (
	ErrArity    = errors.New("wrong number of arguments")
	ErrArgument = errors.New("invalid argument")
	ErrIO       = errors.New("i/o failure")
)

// ExecOptions configures program execution.
type ExecOptions struct {
	Builtins map[string]*Builtin
	Trace    func(event TraceEvent)
	RunID    string
}

// ExecResult holds the state left behind by a run. It is returned even when
// execution fails.
type ExecResult struct {
	Globals *Scope
}

// RuntimeError represents an error raised while evaluating a program.
type RuntimeError struct {
	Code    string
	Message string
	Span    *ast.Span
	Err     error
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

type evaluator struct {
	ctx  context.Context
	opts ExecOptions
	root *Scope
}

func (ev *evaluator) emit(event TraceEventType, span *ast.Span, data map[string]string) {
	if ev.opts.Trace != nil {
		ev.opts.Trace(TraceEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			RunID:     ev.opts.RunID,
			Event:     event,
			Span:      span,
			Data:      data,
		})
	}
}

// Execute runs a parsed program: globals are evaluated into a fresh root
// scope, then Main is called.
func Execute(ctx context.Context, program *ast.Program, opts ExecOptions) (*ExecResult, error) {
	ev := &evaluator{
		ctx:  ctx,
		opts: opts,
		root: NewRootScope(),
	}
	result := &ExecResult{Globals: ev.root}

	span := program.Span
	ev.emit(TraceRunStart, &span, nil)
	err := ev.execProgram(program)
	ev.emit(TraceRunEnd, &span, map[string]string{"ok": strconv.FormatBool(err == nil)})
	return result, err
}

func (ev *evaluator) execProgram(program *ast.Program) error {
	if len(program.Globals) == 0 && len(program.Functions) == 0 {
		return &RuntimeError{
			Code:    diagnostics.EStructure,
			Message: "program has no global declarations and no functions",
			Span:    &program.Span,
		}
	}

	for _, g := range program.Globals {
		if _, err := ev.eval(g, ev.root); err != nil {
			return err
		}
	}

	entry := program.Entry()
	if entry == nil {
		return nil
	}
	if entry.Name != "Main" {
		return &RuntimeError{
			Code:    diagnostics.EStructure,
			Message: fmt.Sprintf("the last function must be Main, found %s", entry.Name),
			Span:    &entry.Span,
		}
	}
	return ev.callFunction(entry, nil, ev.root, entry.Span)
}

func typeError(span ast.Span, format string, args ...any) error {
	return &RuntimeError{Code: diagnostics.EType, Message: fmt.Sprintf(format, args...), Span: &span}
}

func scopeError(err error, span ast.Span) error {
	return &RuntimeError{Code: diagnostics.EScope, Message: err.Error(), Span: &span, Err: err}
}

func (ev *evaluator) checkCanceled(span ast.Span) error {
	if err := ev.ctx.Err(); err != nil {
		return &RuntimeError{Code: diagnostics.ECanceled, Message: "execution canceled", Span: &span, Err: err}
	}
	return nil
}

func (ev *evaluator) execStatements(stmts []ast.Node, sc *Scope) error {
	for _, s := range stmts {
		if err := ev.checkCanceled(s.NodeSpan()); err != nil {
			return err
		}
		if _, err := ev.eval(s, sc); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) execBlock(b *ast.Block, parent *Scope) error {
	return ev.execStatements(b.Statements, NewScope(parent))
}

func (ev *evaluator) eval(n ast.Node, sc *Scope) (Value, error) {
	switch n := n.(type) {
	case *ast.Number:
		return Int{Value: n.Value}, nil
	case *ast.Bool:
		return Bool{Value: n.Value}, nil
	case *ast.Str:
		s, err := ev.interpolate(n, sc)
		if err != nil {
			return nil, err
		}
		return Str{Value: s}, nil

	case *ast.VariableUsage:
		v, err := sc.Resolve(n.Name)
		if err != nil {
			return nil, scopeError(err, n.Span)
		}
		return v, nil
	case *ast.VariableDeclaration:
		return nil, ev.declare(sc, n.Name, n.Type, nil, n.Span)
	case *ast.VariableDeclarationAssign:
		v, err := ev.value(n.Value, sc)
		if err != nil {
			return nil, err
		}
		return nil, ev.declare(sc, n.Name, n.Type, v, n.Span)
	case *ast.VariableAssign:
		v, err := ev.value(n.Value, sc)
		if err != nil {
			return nil, err
		}
		if err := sc.Assign(n.Name, v); err != nil {
			return nil, scopeError(err, n.Span)
		}
		return nil, nil

	case *ast.Binary:
		return ev.evalBinary(n, sc)
	case *ast.Comparison:
		ok, err := ev.evalComparison(n, sc)
		if err != nil {
			return nil, err
		}
		return Bool{Value: ok}, nil
	case *ast.Unary:
		return evalUnary(n)

	case *ast.Block:
		return nil, ev.execBlock(n, sc)
	case *ast.Function:
		// Declared while parsing; nothing to do at run time.
		return nil, nil
	case *ast.FunctionCall:
		return ev.evalCall(n, sc)
	case *ast.If:
		return nil, ev.execIf(n, sc)
	case *ast.While:
		return nil, ev.execWhile(n, sc)
	case *ast.For:
		return nil, ev.execFor(n, sc)
	case *ast.NoOp:
		return nil, nil
	}
	return nil, typeError(n.NodeSpan(), "unhandled node kind %s", n.Kind())
}

// value evaluates n and fails if it produces no value.
func (ev *evaluator) value(n ast.Node, sc *Scope) (Value, error) {
	v, err := ev.eval(n, sc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if call, ok := n.(*ast.FunctionCall); ok {
			return nil, typeError(call.Span, "%s does not return a value", call.Name)
		}
		return nil, typeError(n.NodeSpan(), "%s does not produce a value", n.Kind())
	}
	return v, nil
}

func (ev *evaluator) declare(sc *Scope, name string, typ ast.VarType, v Value, span ast.Span) error {
	if err := sc.Declare(name, typ, v); err != nil {
		return scopeError(err, span)
	}
	ev.emit(TraceVarDeclare, &span, map[string]string{
		"name":  name,
		"type":  typ.String(),
		"depth": strconv.Itoa(sc.Depth()),
	})
	return nil
}

// --- Operators ---

func (ev *evaluator) intOperand(n ast.Node, op string, sc *Scope) (int32, error) {
	v, err := ev.value(n, sc)
	if err != nil {
		return 0, err
	}
	i, ok := ToInt(v)
	if !ok {
		return 0, typeError(n.NodeSpan(), "operand of %s must be an integer, got %s %q", op, TypeName(v), v.String())
	}
	return i, nil
}

func (ev *evaluator) evalBinary(n *ast.Binary, sc *Scope) (Value, error) {
	l, err := ev.intOperand(n.Left, string(n.Op), sc)
	if err != nil {
		return nil, err
	}
	r, err := ev.intOperand(n.Right, string(n.Op), sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case ast.OpAdd:
		return Int{Value: l + r}, nil
	case ast.OpSub:
		return Int{Value: l - r}, nil
	case ast.OpMul:
		return Int{Value: l * r}, nil
	case ast.OpDiv:
		if r == 0 {
			return nil, typeError(n.Span, "division by zero")
		}
		return Int{Value: l / r}, nil
	}
	return nil, typeError(n.Span, "unsupported arithmetic operator %s", n.Op)
}

func (ev *evaluator) evalComparison(n *ast.Comparison, sc *Scope) (bool, error) {
	l, err := ev.intOperand(n.Left, string(n.Op), sc)
	if err != nil {
		return false, err
	}
	r, err := ev.intOperand(n.Right, string(n.Op), sc)
	if err != nil {
		return false, err
	}

	switch n.Op {
	case ast.OpEq:
		return l == r, nil
	case ast.OpNotEq:
		return l != r, nil
	case ast.OpGt:
		return l > r, nil
	case ast.OpLt:
		return l < r, nil
	case ast.OpGtEq:
		return l >= r, nil
	case ast.OpLtEq:
		return l <= r, nil
	}
	return false, typeError(n.Span, "unsupported comparison operator %s", n.Op)
}

func evalUnary(n *ast.Unary) (Value, error) {
	num, ok := n.Operand.(*ast.Number)
	if !ok {
		return nil, typeError(n.Span, "unary %s needs a number literal, got %s", n.Op, n.Operand.Kind())
	}
	switch n.Op {
	case ast.OpNeg:
		return Int{Value: -num.Value}, nil
	case ast.OpPlus:
		return Int{Value: num.Value}, nil
	}
	return nil, typeError(n.Span, "unsupported unary operator %s", n.Op)
}

// --- Strings ---

// interpolate replaces each $name in a string literal with the current value
// of name. The name runs to the next whitespace or quote; substituted text is
// not rescanned.
func (ev *evaluator) interpolate(n *ast.Str, sc *Scope) (string, error) {
	s := n.Value
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var b strings.Builder
	for {
		i := strings.IndexByte(s, '$')
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])
		rest := s[i+1:]
		end := strings.IndexFunc(rest, placeholderEnd)
		if end < 0 {
			end = len(rest)
		}
		name := rest[:end]
		if name == "" {
			b.WriteByte('$')
			s = rest
			continue
		}
		v, err := sc.Resolve(name)
		if err != nil {
			return "", scopeError(err, n.Span)
		}
		b.WriteString(v.String())
		s = rest[end:]
	}
}

// Placeholders returns the names a string literal interpolates, in order.
func Placeholders(s string) []string {
	var names []string
	for {
		i := strings.IndexByte(s, '$')
		if i < 0 {
			return names
		}
		rest := s[i+1:]
		end := strings.IndexFunc(rest, placeholderEnd)
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			names = append(names, rest[:end])
		}
		s = rest[end:]
	}
}

func placeholderEnd(r rune) bool { return unicode.IsSpace(r) || r == '"' }

// --- Calls ---

func (ev *evaluator) evalCall(n *ast.FunctionCall, sc *Scope) (Value, error) {
	// Arity is checked before any argument is evaluated.
	if n.Target != nil && len(n.Args) != len(n.Target.Params) {
		return nil, arityError(n.Target, len(n.Args), n.Span)
	}

	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.value(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if n.Target != nil {
		return nil, ev.callFunction(n.Target, args, sc, n.Span)
	}
	return ev.callBuiltin(n, args)
}

// callFunction runs fn's body in a fresh scope. Parameters are declared while
// that scope hangs off the root, so they only clash with globals; the scope is
// then linked to the caller's, giving the body access to the caller's names.
func (ev *evaluator) callFunction(fn *ast.Function, args []Value, caller *Scope, span ast.Span) error {
	if len(args) != len(fn.Params) {
		return arityError(fn, len(args), span)
	}

	ev.emit(TraceFnCallStart, &span, map[string]string{"fn": fn.Name})

	body := NewScope(ev.root)
	for i, p := range fn.Params {
		if err := ev.declare(body, p.Name, p.Type, args[i], p.Span); err != nil {
			return err
		}
	}
	body.link(caller)

	err := ev.execStatements(fn.Body.Statements, body)
	ev.emit(TraceFnCallEnd, &span, map[string]string{"fn": fn.Name, "ok": strconv.FormatBool(err == nil)})
	return err
}

func arityError(fn *ast.Function, got int, span ast.Span) error {
	return typeError(span, "function %s expects %d arguments, got %d", fn.Name, len(fn.Params), got)
}

func (ev *evaluator) callBuiltin(n *ast.FunctionCall, args []Value) (Value, error) {
	b, ok := ev.opts.Builtins[n.Name]
	if !ok || b == nil {
		return nil, &RuntimeError{
			Code:    diagnostics.EUnknownFn,
			Message: fmt.Sprintf("function %s does not exist", n.Name),
			Span:    &n.Span,
		}
	}

	ev.emit(TraceBuiltinCall, &n.Span, map[string]string{"fn": n.Name, "args": strconv.Itoa(len(args))})
	v, err := b.Execute(ev.ctx, args)
	if err == nil {
		return v, nil
	}

	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Span == nil {
			re.Span = &n.Span
		}
		return nil, re
	}
	code := diagnostics.EBuiltin
	switch {
	case errors.Is(err, ErrArity), errors.Is(err, ErrArgument):
		code = diagnostics.EType
	case errors.Is(err, ErrIO):
		code = diagnostics.EIO
	}
	return nil, &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", n.Name, err),
		Span:    &n.Span,
		Err:     err,
	}
}

// --- Control flow ---

// condition evaluates an if, while or for condition, which must be a comparison.
func (ev *evaluator) condition(n ast.Node, sc *Scope, stmt string) (bool, error) {
	cmp, ok := n.(*ast.Comparison)
	if !ok {
		return false, typeError(n.NodeSpan(), "%s condition must be a comparison, got %s", stmt, n.Kind())
	}
	return ev.evalComparison(cmp, sc)
}

func (ev *evaluator) execIf(n *ast.If, sc *Scope) error {
	ok, err := ev.condition(n.Cond, sc, "if")
	if err != nil {
		return err
	}
	if ok {
		return ev.execBlock(n.Then, sc)
	}
	if n.Else != nil {
		return ev.execBlock(n.Else, sc)
	}
	return nil
}

// execWhile runs the loop body directly in the enclosing scope.
func (ev *evaluator) execWhile(n *ast.While, sc *Scope) error {
	for {
		if err := ev.checkCanceled(n.Span); err != nil {
			return err
		}
		ok, err := ev.condition(n.Cond, sc, "while")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := ev.execStatements(n.Body.Statements, sc); err != nil {
			return err
		}
	}
}

func (ev *evaluator) execFor(n *ast.For, sc *Scope) error {
	forScope := NewScope(sc)
	if _, err := ev.eval(n.Init, forScope); err != nil {
		return err
	}
	for {
		if err := ev.checkCanceled(n.Span); err != nil {
			return err
		}
		ok, err := ev.condition(n.Cond, forScope, "for")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := ev.execBlock(n.Body, forScope); err != nil {
			return err
		}
		if _, err := ev.eval(n.Step, forScope); err != nil {
			return err
		}
	}
}
