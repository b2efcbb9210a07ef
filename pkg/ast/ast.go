// Package ast defines the slug language AST node types.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
	node() // sealed marker
}

// VarType is the declared type of a variable.
type VarType int

const (
	TypeInt VarType = iota
	TypeString
	TypeBool
)

func (t VarType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	}
	return "unknown"
}

// BinaryOp represents an arithmetic operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
)

// CompareOp represents a comparison operator.
type CompareOp string

const (
	OpEq    CompareOp = "=="
	OpNotEq CompareOp = "!="
	OpGt    CompareOp = ">"
	OpLt    CompareOp = "<"
	OpGtEq  CompareOp = ">="
	OpLtEq  CompareOp = "<="
)

// UnaryOp represents a prefix sign.
type UnaryOp string

const (
	OpPlus UnaryOp = "+"
	OpNeg  UnaryOp = "-"
)

// --- Literals ---

type Number struct {
	Span  Span
	Value int32
}

func (n *Number) Kind() string   { return "Number" }
func (n *Number) NodeSpan() Span { return n.Span }
func (n *Number) node()          {}

// Str is a string literal. Its Value may contain $name interpolations.
type Str struct {
	Span  Span
	Value string
}

func (n *Str) Kind() string   { return "Str" }
func (n *Str) NodeSpan() Span { return n.Span }
func (n *Str) node()          {}

type Bool struct {
	Span  Span
	Value bool
}

func (n *Bool) Kind() string   { return "Bool" }
func (n *Bool) NodeSpan() Span { return n.Span }
func (n *Bool) node()          {}

// --- Variables ---

type VariableUsage struct {
	Span Span
	Name string
}

func (n *VariableUsage) Kind() string   { return "VariableUsage" }
func (n *VariableUsage) NodeSpan() Span { return n.Span }
func (n *VariableUsage) node()          {}

type VariableDeclaration struct {
	Span Span
	Name string
	Type VarType
}

func (n *VariableDeclaration) Kind() string   { return "VariableDeclaration" }
func (n *VariableDeclaration) NodeSpan() Span { return n.Span }
func (n *VariableDeclaration) node()          {}

type VariableDeclarationAssign struct {
	Span  Span
	Name  string
	Type  VarType
	Value Node
}

func (n *VariableDeclarationAssign) Kind() string   { return "VariableDeclarationAssign" }
func (n *VariableDeclarationAssign) NodeSpan() Span { return n.Span }
func (n *VariableDeclarationAssign) node()          {}

type VariableAssign struct {
	Span  Span
	Name  string
	Value Node
}

func (n *VariableAssign) Kind() string   { return "VariableAssign" }
func (n *VariableAssign) NodeSpan() Span { return n.Span }
func (n *VariableAssign) node()          {}

// --- Operators ---

type Binary struct {
	Span  Span
	Left  Node
	Op    BinaryOp
	Right Node
}

func (n *Binary) Kind() string   { return "Binary" }
func (n *Binary) NodeSpan() Span { return n.Span }
func (n *Binary) node()          {}

// Comparison is kept distinct from Binary: only a Comparison may appear as
// an if, while or for condition.
type Comparison struct {
	Span  Span
	Left  Node
	Op    CompareOp
	Right Node
}

func (n *Comparison) Kind() string   { return "Comparison" }
func (n *Comparison) NodeSpan() Span { return n.Span }
func (n *Comparison) node()          {}

type Unary struct {
	Span    Span
	Op      UnaryOp
	Operand Node
}

func (n *Unary) Kind() string   { return "Unary" }
func (n *Unary) NodeSpan() Span { return n.Span }
func (n *Unary) node()          {}

// --- Structure ---

// Block is a braced statement list. Parent and Depth record the lexical
// block chain built while parsing; the root block of a program has no parent.
type Block struct {
	Span       Span
	Parent     *Block
	Depth      int
	Statements []Node
}

func (n *Block) Kind() string   { return "Block" }
func (n *Block) NodeSpan() Span { return n.Span }
func (n *Block) node()          {}

type Function struct {
	Span   Span
	Name   string
	Params []*VariableDeclaration
	Body   *Block
}

func (n *Function) Kind() string   { return "Function" }
func (n *Function) NodeSpan() Span { return n.Span }
func (n *Function) node()          {}

// FunctionCall names its callee. Target is nil when the call resolves to a builtin.
type FunctionCall struct {
	Span   Span
	Name   string
	Target *Function
	Args   []Node
}

func (n *FunctionCall) Kind() string   { return "FunctionCall" }
func (n *FunctionCall) NodeSpan() Span { return n.Span }
func (n *FunctionCall) node()          {}

type If struct {
	Span Span
	Cond Node
	Then *Block
	Else *Block // nil when absent
}

func (n *If) Kind() string   { return "If" }
func (n *If) NodeSpan() Span { return n.Span }
func (n *If) node()          {}

type While struct {
	Span Span
	Cond Node
	Body *Block
}

func (n *While) Kind() string   { return "While" }
func (n *While) NodeSpan() Span { return n.Span }
func (n *While) node()          {}

type For struct {
	Span Span
	Init Node
	Cond Node
	Step Node
	Body *Block
}

func (n *For) Kind() string   { return "For" }
func (n *For) NodeSpan() Span { return n.Span }
func (n *For) node()          {}

// NoOp stands in for a statement the parser could not recognise. Text is the
// skipped token.
type NoOp struct {
	Span Span
	Text string
}

func (n *NoOp) Kind() string   { return "NoOp" }
func (n *NoOp) NodeSpan() Span { return n.Span }
func (n *NoOp) node()          {}

// Program is the parse result. Scope is the root of the lexical block chain.
type Program struct {
	Span      Span
	Globals   []Node
	Functions []*Function
	Scope     *Block
}

func (n *Program) Kind() string   { return "Program" }
func (n *Program) NodeSpan() Span { return n.Span }
func (n *Program) node()          {}

// Entry returns the last declared function, or nil.
func (n *Program) Entry() *Function {
	if len(n.Functions) == 0 {
		return nil
	}
	return n.Functions[len(n.Functions)-1]
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Number, *Str, *Bool, *VariableUsage, *VariableDeclaration, *NoOp:
		return nil
	case *VariableDeclarationAssign:
		return []Node{n.Value}
	case *VariableAssign:
		return []Node{n.Value}
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Comparison:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Block:
		return append([]Node(nil), n.Statements...)
	case *Function:
		out := make([]Node, 0, len(n.Params)+1)
		for _, p := range n.Params {
			out = append(out, p)
		}
		return append(out, n.Body)
	case *FunctionCall:
		return append([]Node(nil), n.Args...)
	case *If:
		if n.Else != nil {
			return []Node{n.Cond, n.Then, n.Else}
		}
		return []Node{n.Cond, n.Then}
	case *While:
		return []Node{n.Cond, n.Body}
	case *For:
		return []Node{n.Init, n.Cond, n.Step, n.Body}
	case *Program:
		out := append([]Node(nil), n.Globals...)
		for _, fn := range n.Functions {
			out = append(out, fn)
		}
		return out
	}
	return nil
}

// Walk traverses the tree rooted at n in pre-order. Children of a node are
// skipped when fn returns false for it.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
