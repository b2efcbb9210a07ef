// Package parser implements the slug language parser.
//
// The parser pulls tokens from the scanner one at a time and builds the AST
// in a single pass. Function calls are resolved while parsing against the
// functions declared so far, so a call may only name a function whose body
// has already been parsed, or a builtin.
package parser

import (
	"fmt"
	"strconv"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/diagnostics"
	"github.com/thomasrohde/slug/pkg/lexer"
)

// Builtins reports which call names are provided natively.
type Builtins interface {
	Has(name string) bool
}

// NameSet is a fixed set of builtin names.
type NameSet map[string]bool

// Has implements Builtins.
func (s NameSet) Has(name string) bool { return s[name] }

// BuiltinNames builds a NameSet from names.
func BuiltinNames(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Option configures Parse.
type Option func(*parser)

// WithBuiltins makes the parser reject calls to names that are neither a
// declared function nor in b. Without it, unknown names are left for the
// evaluator to resolve.
func WithBuiltins(b Builtins) Option {
	return func(p *parser) { p.builtins = b }
}

type parser struct {
	scanner  *lexer.Scanner
	cur      lexer.Token
	prev     lexer.Token
	diags    []diagnostics.Diagnostic
	builtins Builtins
	funcs    map[string]*ast.Function
	scopes   []*ast.Block
}

// Parse scans and parses source into an AST. The first lex or parse error
// stops parsing; the program is nil whenever diagnostics are returned.
func Parse(source, filename string, opts ...Option) (*ast.Program, []diagnostics.Diagnostic) {
	p := &parser{
		scanner: lexer.New(source, filename),
		funcs:   make(map[string]*ast.Function),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cur = lexer.Token{Type: lexer.TokEOF, Span: ast.Span{File: filename, StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1}}
	p.advance()

	prog := p.parseProgram(filename)
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

func (p *parser) failed() bool {
	return len(p.diags) > 0
}

func (p *parser) peek() lexer.TokenType {
	return p.cur.Type
}

// advance consumes the current token and pulls the next one from the scanner.
func (p *parser) advance() lexer.Token {
	tok := p.cur
	if p.failed() {
		return tok
	}
	next, err := p.scanner.NextToken()
	if err != nil {
		if le, ok := err.(*lexer.LexError); ok {
			p.diags = append(p.diags, le.Diag)
		} else {
			p.addDiag(diagnostics.ELex, err.Error(), &tok.Span)
		}
		next = lexer.Token{Type: lexer.TokEOF, Span: tok.Span}
	}
	p.prev = tok
	p.cur = next
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.cur
	if tok.Type != typ {
		p.addError(fmt.Sprintf("expected %s, got %s", typ, describe(tok)), &tok.Span)
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) addError(msg string, span *ast.Span) {
	p.addDiag(diagnostics.EParse, msg, span)
}

func (p *parser) addDiag(code, msg string, span *ast.Span) {
	if p.failed() {
		return
	}
	p.diags = append(p.diags, diagnostics.MakeDiag(code, msg, span, ""))
}

func (p *parser) spanFrom(start ast.Span) ast.Span {
	end := p.prev.Span
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokEOF:
		return "end of file"
	case lexer.TokString:
		return strconv.Quote(tok.Value)
	}
	return "'" + tok.Value + "'"
}

func varType(t lexer.TokenType) ast.VarType {
	switch t {
	case lexer.TokStringType:
		return ast.TypeString
	case lexer.TokBoolType:
		return ast.TypeBool
	}
	return ast.TypeInt
}

func (p *parser) top() *ast.Block {
	return p.scopes[len(p.scopes)-1]
}

// --- Program ---

func (p *parser) parseProgram(filename string) *ast.Program {
	start := p.cur.Span
	root := &ast.Block{Span: start}
	p.scopes = []*ast.Block{root}
	prog := &ast.Program{Scope: root}

	for p.peek().IsTypeKeyword() {
		decl := p.parseDeclaration()
		if decl == nil {
			return nil
		}
		prog.Globals = append(prog.Globals, decl)
	}

	for p.peek() == lexer.TokFunc {
		fn := p.parseFunction()
		if fn == nil {
			return nil
		}
		prog.Functions = append(prog.Functions, fn)
	}

	if _, ok := p.expect(lexer.TokEOF); !ok {
		return nil
	}

	prog.Span = spanFromTo(ast.Span{File: filename, StartLine: 1, StartCol: 1}, p.cur.Span)
	root.Span = prog.Span
	return prog
}

// --- Functions ---

func (p *parser) parseFunction() *ast.Function {
	start := p.advance() // consume func

	nameTok := p.cur
	if nameTok.Type != lexer.TokCall {
		p.addError(fmt.Sprintf("expected function name followed by '(', got %s", describe(nameTok)), &nameTok.Span)
		return nil
	}
	p.advance()
	if _, exists := p.funcs[nameTok.Value]; exists {
		p.addError(fmt.Sprintf("function %s is already declared", nameTok.Value), &nameTok.Span)
		return nil
	}

	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}

	var params []*ast.VariableDeclaration
	for p.peek() != lexer.TokRParen {
		if !p.peek().IsTypeKeyword() {
			p.addError(fmt.Sprintf("expected parameter declaration, got %s", describe(p.cur)), &p.cur.Span)
			return nil
		}
		decl := p.parseDeclaration()
		if decl == nil {
			return nil
		}
		param, ok := decl.(*ast.VariableDeclaration)
		if !ok {
			span := decl.NodeSpan()
			p.addError("parameters cannot have initial values", &span)
			return nil
		}
		params = append(params, param)
		if p.peek() == lexer.TokComma {
			p.advance()
		}
	}
	p.advance() // consume )

	body := p.parseBlock()
	if body == nil {
		return nil
	}

	fn := &ast.Function{
		Span:   p.spanFrom(start.Span),
		Name:   nameTok.Value,
		Params: params,
		Body:   body,
	}
	// Registered only now: a function cannot call itself.
	p.funcs[fn.Name] = fn
	return fn
}

// --- Blocks & statements ---

func (p *parser) parseBlock() *ast.Block {
	start, ok := p.expect(lexer.TokLBrace)
	if !ok {
		return nil
	}

	block := &ast.Block{Parent: p.top(), Depth: len(p.scopes)}
	p.scopes = append(p.scopes, block)
	defer func() { p.scopes = p.scopes[:len(p.scopes)-1] }()

	for p.peek() != lexer.TokRBrace && p.peek() != lexer.TokEOF {
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
	}

	if _, ok := p.expect(lexer.TokRBrace); !ok {
		return nil
	}
	block.Span = p.spanFrom(start.Span)
	return block
}

func (p *parser) parseStatement() ast.Node {
	switch tok := p.cur; {
	case tok.Type == lexer.TokFunc:
		if fn := p.parseFunction(); fn != nil {
			return fn
		}
		return nil
	case tok.Type.IsTypeKeyword():
		return p.parseDeclaration()
	case tok.Type == lexer.TokName:
		if assign := p.parseAssignment(); assign != nil {
			return assign
		}
		return nil
	case tok.Type == lexer.TokCall:
		if call := p.parseCall(); call != nil {
			return call
		}
		return nil
	case tok.Type == lexer.TokIf:
		return p.parseIf()
	case tok.Type == lexer.TokWhile:
		return p.parseWhile()
	case tok.Type == lexer.TokFor:
		return p.parseFor()
	default:
		// Unrecognised statements are skipped one token at a time.
		p.advance()
		return &ast.NoOp{Span: tok.Span, Text: tok.Value}
	}
}

// parseDeclaration parses `type NAME` or `type NAME = expression`.
func (p *parser) parseDeclaration() ast.Node {
	typTok := p.advance()
	nameTok, ok := p.expect(lexer.TokName)
	if !ok {
		return nil
	}
	typ := varType(typTok.Type)

	if p.peek() != lexer.TokAssign {
		return &ast.VariableDeclaration{Span: p.spanFrom(typTok.Span), Name: nameTok.Value, Type: typ}
	}
	p.advance() // consume =

	value := p.parseExpression()
	if value == nil {
		return nil
	}
	return &ast.VariableDeclarationAssign{
		Span:  p.spanFrom(typTok.Span),
		Name:  nameTok.Value,
		Type:  typ,
		Value: value,
	}
}

func (p *parser) parseAssignment() *ast.VariableAssign {
	nameTok, ok := p.expect(lexer.TokName)
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokAssign); !ok {
		return nil
	}
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	return &ast.VariableAssign{Span: p.spanFrom(nameTok.Span), Name: nameTok.Value, Value: value}
}

func (p *parser) parseCall() *ast.FunctionCall {
	nameTok := p.advance() // consume call name
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}

	var args []ast.Node
	for p.peek() != lexer.TokRParen {
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if p.peek() == lexer.TokComma {
			p.advance()
		}
	}
	p.advance() // consume )

	call := &ast.FunctionCall{Span: p.spanFrom(nameTok.Span), Name: nameTok.Value, Args: args}
	if fn, ok := p.funcs[call.Name]; ok {
		call.Target = fn
	} else if p.builtins != nil && !p.builtins.Has(call.Name) {
		p.addError(fmt.Sprintf("function %s does not exist", call.Name), &nameTok.Span)
		return nil
	}
	return call
}

func (p *parser) parseIf() ast.Node {
	start := p.advance() // consume if
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}
	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}

	node := &ast.If{Cond: cond, Then: then}
	if p.peek() == lexer.TokElse {
		p.advance()
		els := p.parseBlock()
		if els == nil {
			return nil
		}
		node.Else = els
	}
	node.Span = p.spanFrom(start.Span)
	return node
}

func (p *parser) parseWhile() ast.Node {
	start := p.advance() // consume while
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}
	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.While{Span: p.spanFrom(start.Span), Cond: cond, Body: body}
}

// parseFor parses `for ( init ; condition ; step ) block`. The condition
// is checked here: it must be a comparison.
func (p *parser) parseFor() ast.Node {
	start := p.advance() // consume for
	if _, ok := p.expect(lexer.TokLParen); !ok {
		return nil
	}

	var init ast.Node
	switch {
	case p.peek().IsTypeKeyword():
		init = p.parseDeclaration()
	case p.peek() == lexer.TokName:
		if assign := p.parseAssignment(); assign != nil {
			init = assign
		}
	default:
		p.addError(fmt.Sprintf("expected declaration or assignment in for header, got %s", describe(p.cur)), &p.cur.Span)
	}
	if init == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokSemicolon); !ok {
		return nil
	}

	cond := p.parseTerm()
	if cond == nil {
		return nil
	}
	if _, ok := cond.(*ast.Comparison); !ok {
		span := cond.NodeSpan()
		p.addDiag(diagnostics.EType, fmt.Sprintf("for condition must be a comparison, got %s", cond.Kind()), &span)
		return nil
	}
	if _, ok := p.expect(lexer.TokSemicolon); !ok {
		return nil
	}

	step := p.parseAssignment()
	if step == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokRParen); !ok {
		return nil
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.For{Span: p.spanFrom(start.Span), Init: init, Cond: cond, Step: step, Body: body}
}

// --- Expressions ---
//
//   expression := term (('+' | '-') term)*
//   term       := factor (('*' | '/') factor)* [cmp factor]
//   factor     := ('+' | '-') factor | NUMBER | STRING | BOOL
//               | '(' expression ')' | call | NAME
//
// Comparisons bind at term level. Once one is formed the term ends, so
// `a < b + 1` is (a < b) + 1.

func (p *parser) parseExpression() ast.Node {
	left := p.parseTerm()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokPlus || p.peek() == lexer.TokMinus {
		opTok := p.advance()
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		left = &ast.Binary{
			Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Left:  left,
			Op:    ast.BinaryOp(opTok.Value),
			Right: right,
		}
	}
	return left
}

func (p *parser) parseTerm() ast.Node {
	left := p.parseFactor()
	if left == nil {
		return nil
	}
	for {
		switch {
		case p.peek() == lexer.TokStar || p.peek() == lexer.TokSlash:
			opTok := p.advance()
			right := p.parseFactor()
			if right == nil {
				return nil
			}
			left = &ast.Binary{
				Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
				Left:  left,
				Op:    ast.BinaryOp(opTok.Value),
				Right: right,
			}
		case p.peek().IsComparison():
			opTok := p.advance()
			right := p.parseFactor()
			if right == nil {
				return nil
			}
			return &ast.Comparison{
				Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
				Left:  left,
				Op:    ast.CompareOp(opTok.Value),
				Right: right,
			}
		default:
			return left
		}
	}
}

func (p *parser) parseFactor() ast.Node {
	tok := p.cur
	switch tok.Type {
	case lexer.TokPlus, lexer.TokMinus:
		p.advance()
		operand := p.parseFactor()
		if operand == nil {
			return nil
		}
		return &ast.Unary{Span: spanFromTo(tok.Span, operand.NodeSpan()), Op: ast.UnaryOp(tok.Value), Operand: operand}

	case lexer.TokNumber:
		p.advance()
		n, err := strconv.ParseInt(tok.Value, 10, 32)
		if err != nil {
			p.addError(fmt.Sprintf("integer literal %s is out of range", tok.Value), &tok.Span)
			return nil
		}
		return &ast.Number{Span: tok.Span, Value: int32(n)}

	case lexer.TokString:
		p.advance()
		return &ast.Str{Span: tok.Span, Value: tok.Value}

	case lexer.TokBool:
		p.advance()
		return &ast.Bool{Span: tok.Span, Value: tok.Value == "true"}

	case lexer.TokLParen:
		p.advance()
		inner := p.parseExpression()
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
		return inner

	case lexer.TokCall:
		if call := p.parseCall(); call != nil {
			return call
		}
		return nil
	}

	nameTok, ok := p.expect(lexer.TokName)
	if !ok {
		return nil
	}
	return &ast.VariableUsage{Span: nameTok.Span, Name: nameTok.Value}
}
