// Package lexer implements the slug language tokenizer.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thomasrohde/slug/pkg/ast"
	"github.com/thomasrohde/slug/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokFunc TokenType = iota
	TokClass
	TokReturn
	TokNew
	TokIf
	TokElse
	TokFor
	TokWhile

	// Type keywords
	TokIntType
	TokStringType
	TokBoolType

	// Literals
	TokNumber
	TokString
	TokBool

	// Identifiers
	TokName
	TokCall // identifier immediately followed by (

	// Punctuation
	TokLBrace    // {
	TokRBrace    // }
	TokLParen    // (
	TokRParen    // )
	TokSemicolon // ;
	TokComma     // ,
	TokAssign    // =

	// Comparison operators
	TokEq    // ==
	TokNotEq // !=
	TokGtEq  // >=
	TokLtEq  // <=
	TokGt    // >
	TokLt    // <

	// Arithmetic operators
	TokPlus  // +
	TokMinus // -
	TokStar  // *
	TokSlash // /

	// Special
	TokEOF
)

var tokenNames = map[TokenType]string{
	TokFunc:       "func",
	TokClass:      "class",
	TokReturn:     "return",
	TokNew:        "new",
	TokIf:         "if",
	TokElse:       "else",
	TokFor:        "for",
	TokWhile:      "while",
	TokIntType:    "int",
	TokStringType: "string",
	TokBoolType:   "bool",
	TokNumber:     "number",
	TokString:     "string literal",
	TokBool:       "boolean",
	TokName:       "identifier",
	TokCall:       "call",
	TokLBrace:     "'{'",
	TokRBrace:     "'}'",
	TokLParen:     "'('",
	TokRParen:     "')'",
	TokSemicolon:  "';'",
	TokComma:      "','",
	TokAssign:     "'='",
	TokEq:         "'=='",
	TokNotEq:      "'!='",
	TokGtEq:       "'>='",
	TokLtEq:       "'<='",
	TokGt:         "'>'",
	TokLt:         "'<'",
	TokPlus:       "'+'",
	TokMinus:      "'-'",
	TokStar:       "'*'",
	TokSlash:      "'/'",
	TokEOF:        "end of file",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// IsTypeKeyword reports whether t starts a typed declaration.
func (t TokenType) IsTypeKeyword() bool {
	return t == TokIntType || t == TokStringType || t == TokBoolType
}

// IsComparison reports whether t is one of the six comparison operators.
func (t TokenType) IsComparison() bool {
	return t >= TokEq && t <= TokLt
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
}

var keywords = map[string]TokenType{
	"func":   TokFunc,
	"class":  TokClass,
	"return": TokReturn,
	"new":    TokNew,
	"if":     TokIf,
	"else":   TokElse,
	"for":    TokFor,
	"while":  TokWhile,
	"int":    TokIntType,
	"string": TokStringType,
	"bool":   TokBoolType,
}

// Scanner produces tokens on demand. It holds no lookahead beyond the
// current character and cannot be rewound.
type Scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
	done     bool
}

// New returns a Scanner positioned at the start of source.
func New(source, filename string) *Scanner {
	return &Scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *Scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *Scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

// peekRune decodes the character at the current position.
func (s *Scanner) peekRune() rune {
	if s.atEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	return r
}

// advance consumes one character, which may span several bytes.
func (s *Scanner) advance() rune {
	ch, size := utf8.DecodeRuneInString(s.source[s.pos:])
	s.pos += size
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *Scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

func (s *Scanner) skipWhitespaceAndComments() error {
	for !s.atEnd() {
		if unicode.IsSpace(s.peekRune()) {
			s.advance()
		} else if s.peek() == '/' && s.peekAt(1) == '/' {
			if err := s.skipComment(); err != nil {
				return err
			}
		} else {
			break
		}
	}
	return nil
}

// skipComment consumes a // ... // comment. Inside a comment every slash
// must be part of the closing pair.
func (s *Scanner) skipComment() error {
	startLine, startCol := s.line, s.col
	s.advance()
	s.advance()
	for {
		if s.atEnd() {
			return s.lexError(startLine, startCol, "unterminated comment")
		}
		if s.peek() != '/' {
			s.advance()
			continue
		}
		if s.peekAt(1) == '/' {
			s.advance()
			s.advance()
			return nil
		}
		if s.pos+1 >= len(s.source) {
			return s.lexError(startLine, startCol, "unterminated comment")
		}
		return s.lexError(s.line, s.col, "malformed comment: single '/' inside comment")
	}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

// isDigit matches the ASCII digits number literals are made of.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (s *Scanner) scanString() (Token, error) {
	startLine, startCol := s.line, s.col
	s.advance() // consume opening "

	start := s.pos
	for !s.atEnd() {
		if s.peek() == '"' {
			text := s.source[start:s.pos]
			s.advance() // consume closing "
			return Token{
				Type:  TokString,
				Value: text,
				Span:  s.span(startLine, startCol),
			}, nil
		}
		s.advance()
	}
	return Token{}, s.lexError(startLine, startCol, "unterminated string literal")
}

func (s *Scanner) scanNumber() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}

	return Token{
		Type:  TokNumber,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}
}

func (s *Scanner) scanIdentOrKeyword() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isIdentPart(s.peekRune()) {
		s.advance()
	}

	text := s.source[startPos:s.pos]

	if tokType, ok := keywords[text]; ok {
		return Token{
			Type:  tokType,
			Value: text,
			Span:  s.span(startLine, startCol),
		}
	}

	if strings.EqualFold(text, "true") || strings.EqualFold(text, "false") {
		return Token{
			Type:  TokBool,
			Value: strings.ToLower(text),
			Span:  s.span(startLine, startCol),
		}
	}

	tokType := TokName
	if s.peek() == '(' {
		tokType = TokCall
	}
	return Token{
		Type:  tokType,
		Value: text,
		Span:  s.span(startLine, startCol),
	}
}

func (s *Scanner) lexError(line, col int, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

// NextToken returns the next token. Once the input is exhausted it keeps
// returning TokEOF.
func (s *Scanner) NextToken() (Token, error) {
	if err := s.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	if s.atEnd() {
		s.done = true
		return Token{
			Type:  TokEOF,
			Value: "",
			Span:  s.span(s.line, s.col),
		}, nil
	}

	ch := s.peek()
	startLine, startCol := s.line, s.col

	// Single-char tokens
	switch ch {
	case '{':
		s.advance()
		return Token{Type: TokLBrace, Value: "{", Span: s.span(startLine, startCol)}, nil
	case '}':
		s.advance()
		return Token{Type: TokRBrace, Value: "}", Span: s.span(startLine, startCol)}, nil
	case '(':
		s.advance()
		return Token{Type: TokLParen, Value: "(", Span: s.span(startLine, startCol)}, nil
	case ')':
		s.advance()
		return Token{Type: TokRParen, Value: ")", Span: s.span(startLine, startCol)}, nil
	case ';':
		s.advance()
		return Token{Type: TokSemicolon, Value: ";", Span: s.span(startLine, startCol)}, nil
	case ',':
		s.advance()
		return Token{Type: TokComma, Value: ",", Span: s.span(startLine, startCol)}, nil
	case '+':
		s.advance()
		return Token{Type: TokPlus, Value: "+", Span: s.span(startLine, startCol)}, nil
	case '-':
		s.advance()
		return Token{Type: TokMinus, Value: "-", Span: s.span(startLine, startCol)}, nil
	case '*':
		s.advance()
		return Token{Type: TokStar, Value: "*", Span: s.span(startLine, startCol)}, nil
	}

	// Multi-char tokens
	switch ch {
	case '/':
		// A following '/' was already taken as a comment.
		s.advance()
		if s.atEnd() {
			return Token{}, s.lexError(startLine, startCol, "unexpected end of input after '/'")
		}
		return Token{Type: TokSlash, Value: "/", Span: s.span(startLine, startCol)}, nil

	case '=':
		s.advance()
		if !s.atEnd() && s.peek() == '=' {
			s.advance()
			return Token{Type: TokEq, Value: "==", Span: s.span(startLine, startCol)}, nil
		}
		return Token{Type: TokAssign, Value: "=", Span: s.span(startLine, startCol)}, nil

	case '!':
		s.advance()
		if !s.atEnd() && s.peek() == '=' {
			s.advance()
			return Token{Type: TokNotEq, Value: "!=", Span: s.span(startLine, startCol)}, nil
		}
		return Token{}, s.lexError(startLine, startCol, "unexpected character '!'")

	case '>':
		s.advance()
		if !s.atEnd() && s.peek() == '=' {
			s.advance()
			return Token{Type: TokGtEq, Value: ">=", Span: s.span(startLine, startCol)}, nil
		}
		return Token{Type: TokGt, Value: ">", Span: s.span(startLine, startCol)}, nil

	case '<':
		s.advance()
		if !s.atEnd() && s.peek() == '=' {
			s.advance()
			return Token{Type: TokLtEq, Value: "<=", Span: s.span(startLine, startCol)}, nil
		}
		return Token{Type: TokLt, Value: "<", Span: s.span(startLine, startCol)}, nil
	}

	// Numbers
	if isDigit(ch) {
		return s.scanNumber(), nil
	}

	// Strings
	if ch == '"' {
		return s.scanString()
	}

	// Identifiers and keywords
	if isLetter(s.peekRune()) {
		return s.scanIdentOrKeyword(), nil
	}

	r := s.advance()
	return Token{}, s.lexError(startLine, startCol, fmt.Sprintf("unexpected character %q", r))
}

// Done reports whether the scanner has returned TokEOF.
func (s *Scanner) Done() bool {
	return s.done
}

// Tokenize breaks source code into a slice of tokens ending with TokEOF.
func Tokenize(source, filename string) ([]Token, error) {
	s := New(source, filename)
	var tokens []Token

	for {
		tok, err := s.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}
