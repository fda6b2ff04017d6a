// Package ast defines the input contract this compiler consumes: a tree
// shape produced by an external, out-of-scope surface-syntax parser.
// Nothing in this package parses source text; it only declares the node
// kinds the AST→IR converter (package irgen) is contractually allowed to
// see, and fails on anything else with UnsupportedConstruct.
package ast

import (
	"bytes"
	"strings"

	"github.com/anistark/waspy/token"
)

type (
	Node interface {
		TokenLiteral() string
		String() string
		Pos() token.Position
	}

	Stmt interface {
		Node
		statementNode()
	}

	Expr interface {
		Node
		expressionNode()
	}
)

// Program is the root of every compiled module.
type Program struct {
	Stmts []Stmt
}

func (p *Program) TokenLiteral() string {
	if len(p.Stmts) > 0 {
		return p.Stmts[0].TokenLiteral()
	}
	return ""
}
func (p *Program) Pos() token.Position { return token.NoPos }
func (p *Program) String() string {
	var out bytes.Buffer
	for _, s := range p.Stmts {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Param is a function/lambda parameter; Annotation is nil when the
// source omitted a type annotation.
type Param struct {
	Name       string
	Annotation *TypeAnnotation
}

// TypeAnnotation is the textual type an annotation names, e.g. "int",
// "float", "str", "list[int]", "MyClass". irgen resolves the text into
// an ir.IRType; this package makes no judgment about validity.
type TypeAnnotation struct {
	Text string
	P    token.Position
}

// Decorator is a bare name (`memoize`) or call (`memoize()`/future
// argumented decorators) attached to a function definition.
type Decorator struct {
	Name string
	Args []Expr
	P    token.Position
}

// ExceptHandler matches one `except` clause of a Try statement.
type ExceptHandler struct {
	TypeName string // empty means bare `except:`
	VarName  string // empty means no `as name` binding
	Body     *BlockStmt
	P        token.Position
}

// ---- Statements ----

type BlockStmt struct {
	Stmts []Stmt
	P     token.Position
}

func (b *BlockStmt) statementNode()       {}
func (b *BlockStmt) TokenLiteral() string { return "block" }
func (b *BlockStmt) Pos() token.Position  { return b.P }
func (b *BlockStmt) String() string {
	var out bytes.Buffer
	for _, s := range b.Stmts {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// FunctionDef declares a top-level function or, when nested inside a
// ClassDef's body, a method.
type FunctionDef struct {
	Name       string
	Params     []Param
	ReturnType *TypeAnnotation
	Body       *BlockStmt
	Decorators []*Decorator
	P          token.Position
}

func (f *FunctionDef) statementNode()       {}
func (f *FunctionDef) TokenLiteral() string { return "def" }
func (f *FunctionDef) Pos() token.Position  { return f.P }
func (f *FunctionDef) String() string {
	var parts []string
	for _, p := range f.Params {
		parts = append(parts, p.Name)
	}
	return "def " + f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// ClassDef declares a class. Fields are not listed explicitly; they are
// derived from `self.x = …` assignments inside `__init__`.
type ClassDef struct {
	Name string
	Body *BlockStmt
	P    token.Position
}

func (c *ClassDef) statementNode()       {}
func (c *ClassDef) TokenLiteral() string { return "class" }
func (c *ClassDef) Pos() token.Position  { return c.P }
func (c *ClassDef) String() string       { return "class " + c.Name }

type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else *BlockStmt // nil when absent; elif chains are nested If in Else
	P    token.Position
}

func (s *IfStmt) statementNode()       {}
func (s *IfStmt) TokenLiteral() string { return "if" }
func (s *IfStmt) Pos() token.Position  { return s.P }
func (s *IfStmt) String() string       { return "if " + s.Cond.String() }

type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
	P    token.Position
}

func (s *WhileStmt) statementNode()       {}
func (s *WhileStmt) TokenLiteral() string { return "while" }
func (s *WhileStmt) Pos() token.Position  { return s.P }
func (s *WhileStmt) String() string       { return "while " + s.Cond.String() }

// ForStmt is `for Var in Iterable: Body`.
type ForStmt struct {
	Var      string
	Iterable Expr
	Body     *BlockStmt
	P        token.Position
}

func (s *ForStmt) statementNode()       {}
func (s *ForStmt) TokenLiteral() string { return "for" }
func (s *ForStmt) Pos() token.Position  { return s.P }
func (s *ForStmt) String() string       { return "for " + s.Var + " in " + s.Iterable.String() }

type TryStmt struct {
	Body     *BlockStmt
	Handlers []*ExceptHandler
	Finally  *BlockStmt // nil when absent
	P        token.Position
}

func (s *TryStmt) statementNode()       {}
func (s *TryStmt) TokenLiteral() string { return "try" }
func (s *TryStmt) Pos() token.Position  { return s.P }
func (s *TryStmt) String() string       { return "try" }

type WithStmt struct {
	ContextExpr Expr
	AsVar       string // empty means no `as` binding
	Body        *BlockStmt
	P           token.Position
}

func (s *WithStmt) statementNode()       {}
func (s *WithStmt) TokenLiteral() string { return "with" }
func (s *WithStmt) Pos() token.Position  { return s.P }
func (s *WithStmt) String() string       { return "with " + s.ContextExpr.String() }

// RaiseStmt is `raise` (bare re-raise, Exc == nil) or `raise Exc(...)`.
type RaiseStmt struct {
	Exc Expr
	P   token.Position
}

func (s *RaiseStmt) statementNode()       {}
func (s *RaiseStmt) TokenLiteral() string { return "raise" }
func (s *RaiseStmt) Pos() token.Position  { return s.P }
func (s *RaiseStmt) String() string       { return "raise" }

type ReturnStmt struct {
	Value Expr // nil means bare `return`
	P     token.Position
}

func (s *ReturnStmt) statementNode()       {}
func (s *ReturnStmt) TokenLiteral() string { return "return" }
func (s *ReturnStmt) Pos() token.Position  { return s.P }
func (s *ReturnStmt) String() string       { return "return" }

// AssignStmt covers plain assignment to any target shape: Identifier
// (Assign), IndexExpr (IndexAssign), AttributeExpr (AttrAssign). Lowering
// decides which IRStmt to produce by inspecting Target's concrete type.
type AssignStmt struct {
	Target Expr
	Value  Expr
	P      token.Position
}

func (s *AssignStmt) statementNode()       {}
func (s *AssignStmt) TokenLiteral() string { return "=" }
func (s *AssignStmt) Pos() token.Position  { return s.P }
func (s *AssignStmt) String() string       { return s.Target.String() + " = " + s.Value.String() }

type AugAssignStmt struct {
	Target Expr
	Op     string // "+", "-", "*", "/", "//", "%", "**"
	Value  Expr
	P      token.Position
}

func (s *AugAssignStmt) statementNode()       {}
func (s *AugAssignStmt) TokenLiteral() string { return s.Op + "=" }
func (s *AugAssignStmt) Pos() token.Position  { return s.P }
func (s *AugAssignStmt) String() string       { return s.Target.String() + " " + s.Op + "= " + s.Value.String() }

type ExprStmt struct {
	Value Expr
	P     token.Position
}

func (s *ExprStmt) statementNode()       {}
func (s *ExprStmt) TokenLiteral() string { return s.Value.TokenLiteral() }
func (s *ExprStmt) Pos() token.Position  { return s.P }
func (s *ExprStmt) String() string       { return s.Value.String() }

// ImportStmt covers `import Name [as Alias]` and `from … import Name`.
type ImportStmt struct {
	Name  string
	Alias string // empty means no alias
	P     token.Position
}

func (s *ImportStmt) statementNode()       {}
func (s *ImportStmt) TokenLiteral() string { return "import" }
func (s *ImportStmt) Pos() token.Position  { return s.P }
func (s *ImportStmt) String() string       { return "import " + s.Name }

type BreakStmt struct{ P token.Position }

func (s *BreakStmt) statementNode()       {}
func (s *BreakStmt) TokenLiteral() string { return "break" }
func (s *BreakStmt) Pos() token.Position  { return s.P }
func (s *BreakStmt) String() string       { return "break" }

type ContinueStmt struct{ P token.Position }

func (s *ContinueStmt) statementNode()       {}
func (s *ContinueStmt) TokenLiteral() string { return "continue" }
func (s *ContinueStmt) Pos() token.Position  { return s.P }
func (s *ContinueStmt) String() string       { return "continue" }

type PassStmt struct{ P token.Position }

func (s *PassStmt) statementNode()       {}
func (s *PassStmt) TokenLiteral() string { return "pass" }
func (s *PassStmt) Pos() token.Position  { return s.P }
func (s *PassStmt) String() string       { return "pass" }

// ---- Expressions ----

type Identifier struct {
	Name string
	P    token.Position
}

func (e *Identifier) expressionNode()     {}
func (e *Identifier) TokenLiteral() string { return e.Name }
func (e *Identifier) Pos() token.Position  { return e.P }
func (e *Identifier) String() string       { return e.Name }

type IntLiteral struct {
	Value int64
	P     token.Position
}

func (e *IntLiteral) expressionNode()      {}
func (e *IntLiteral) TokenLiteral() string { return "int" }
func (e *IntLiteral) Pos() token.Position  { return e.P }
func (e *IntLiteral) String() string       { return strings.TrimSpace(itoa(e.Value)) }

type FloatLiteral struct {
	Value float64
	P     token.Position
}

func (e *FloatLiteral) expressionNode()      {}
func (e *FloatLiteral) TokenLiteral() string { return "float" }
func (e *FloatLiteral) Pos() token.Position  { return e.P }
func (e *FloatLiteral) String() string       { return "float" }

type BoolLiteral struct {
	Value bool
	P     token.Position
}

func (e *BoolLiteral) expressionNode()      {}
func (e *BoolLiteral) TokenLiteral() string { return "bool" }
func (e *BoolLiteral) Pos() token.Position  { return e.P }
func (e *BoolLiteral) String() string {
	if e.Value {
		return "True"
	}
	return "False"
}

type StrLiteral struct {
	Value string
	P     token.Position
}

func (e *StrLiteral) expressionNode()      {}
func (e *StrLiteral) TokenLiteral() string { return "str" }
func (e *StrLiteral) Pos() token.Position  { return e.P }
func (e *StrLiteral) String() string       { return `"` + e.Value + `"` }

type BytesLiteral struct {
	Value []byte
	P     token.Position
}

func (e *BytesLiteral) expressionNode()      {}
func (e *BytesLiteral) TokenLiteral() string { return "bytes" }
func (e *BytesLiteral) Pos() token.Position  { return e.P }
func (e *BytesLiteral) String() string       { return "b\"...\"" }

type NoneLiteral struct{ P token.Position }

func (e *NoneLiteral) expressionNode()      {}
func (e *NoneLiteral) TokenLiteral() string { return "None" }
func (e *NoneLiteral) Pos() token.Position  { return e.P }
func (e *NoneLiteral) String() string       { return "None" }

type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	P     token.Position
}

func (e *BinaryExpr) expressionNode()      {}
func (e *BinaryExpr) TokenLiteral() string { return e.Op }
func (e *BinaryExpr) Pos() token.Position  { return e.P }
func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

type UnaryExpr struct {
	Op      string
	Operand Expr
	P       token.Position
}

func (e *UnaryExpr) expressionNode()      {}
func (e *UnaryExpr) TokenLiteral() string { return e.Op }
func (e *UnaryExpr) Pos() token.Position  { return e.P }
func (e *UnaryExpr) String() string       { return "(" + e.Op + e.Operand.String() + ")" }

// BoolOpExpr is a short-circuiting `and`/`or` chain over 2+ operands.
type BoolOpExpr struct {
	Op       string // "and" | "or"
	Operands []Expr
	P        token.Position
}

func (e *BoolOpExpr) expressionNode()      {}
func (e *BoolOpExpr) TokenLiteral() string { return e.Op }
func (e *BoolOpExpr) Pos() token.Position  { return e.P }
func (e *BoolOpExpr) String() string       { return "(" + e.Op + "...)" }

type CompareExpr struct {
	Op    string // "==" "!=" "<" "<=" ">" ">="
	Left  Expr
	Right Expr
	P     token.Position
}

func (e *CompareExpr) expressionNode()      {}
func (e *CompareExpr) TokenLiteral() string { return e.Op }
func (e *CompareExpr) Pos() token.Position  { return e.P }
func (e *CompareExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

// CallExpr covers both plain calls (`Callee` is an Identifier) and
// method calls (`Callee` is an AttributeExpr); lowering disambiguates.
type CallExpr struct {
	Callee Expr
	Args   []Expr
	P      token.Position
}

func (e *CallExpr) expressionNode()      {}
func (e *CallExpr) TokenLiteral() string { return "call" }
func (e *CallExpr) Pos() token.Position  { return e.P }
func (e *CallExpr) String() string       { return e.Callee.String() + "(...)" }

type AttributeExpr struct {
	Receiver Expr
	Name     string
	P        token.Position
}

func (e *AttributeExpr) expressionNode()      {}
func (e *AttributeExpr) TokenLiteral() string { return "." }
func (e *AttributeExpr) Pos() token.Position  { return e.P }
func (e *AttributeExpr) String() string       { return e.Receiver.String() + "." + e.Name }

type IndexExpr struct {
	Container Expr
	Index     Expr
	P         token.Position
}

func (e *IndexExpr) expressionNode()      {}
func (e *IndexExpr) TokenLiteral() string { return "[]" }
func (e *IndexExpr) Pos() token.Position  { return e.P }
func (e *IndexExpr) String() string       { return e.Container.String() + "[" + e.Index.String() + "]" }

// SliceExpr fields are nil when the corresponding part was omitted.
type SliceExpr struct {
	Container Expr
	Start     Expr
	Stop      Expr
	Step      Expr
	P         token.Position
}

func (e *SliceExpr) expressionNode()      {}
func (e *SliceExpr) TokenLiteral() string { return "[::]" }
func (e *SliceExpr) Pos() token.Position  { return e.P }
func (e *SliceExpr) String() string       { return e.Container.String() + "[::]" }

type ListLiteral struct {
	Elements []Expr
	P        token.Position
}

func (e *ListLiteral) expressionNode()      {}
func (e *ListLiteral) TokenLiteral() string { return "[" }
func (e *ListLiteral) Pos() token.Position  { return e.P }
func (e *ListLiteral) String() string       { return "[...]" }

type DictLiteral struct {
	Keys   []Expr
	Values []Expr
	P      token.Position
}

func (e *DictLiteral) expressionNode()      {}
func (e *DictLiteral) TokenLiteral() string { return "{" }
func (e *DictLiteral) Pos() token.Position  { return e.P }
func (e *DictLiteral) String() string       { return "{...}" }

type TupleLiteral struct {
	Elements []Expr
	P        token.Position
}

func (e *TupleLiteral) expressionNode()      {}
func (e *TupleLiteral) TokenLiteral() string { return "(" }
func (e *TupleLiteral) Pos() token.Position  { return e.P }
func (e *TupleLiteral) String() string       { return "(...)" }

// FStringPart is either a literal chunk (Expr == nil) or an expression
// chunk (Literal == "").
type FStringPart struct {
	Literal string
	Expr    Expr
}

type FStringExpr struct {
	Parts []FStringPart
	P     token.Position
}

func (e *FStringExpr) expressionNode()      {}
func (e *FStringExpr) TokenLiteral() string { return "fstring" }
func (e *FStringExpr) Pos() token.Position  { return e.P }
func (e *FStringExpr) String() string       { return "f\"...\"" }

// FormatPercentExpr is `Format % Args` (printf-style %-formatting).
type FormatPercentExpr struct {
	Format Expr
	Args   []Expr
	P      token.Position
}

func (e *FormatPercentExpr) expressionNode()      {}
func (e *FormatPercentExpr) TokenLiteral() string { return "%" }
func (e *FormatPercentExpr) Pos() token.Position  { return e.P }
func (e *FormatPercentExpr) String() string       { return "(fmt % args)" }

type LambdaExpr struct {
	Params []Param
	Body   Expr
	P      token.Position
}

func (e *LambdaExpr) expressionNode()      {}
func (e *LambdaExpr) TokenLiteral() string { return "lambda" }
func (e *LambdaExpr) Pos() token.Position  { return e.P }
func (e *LambdaExpr) String() string       { return "lambda" }

// ListCompExpr is `[Element for VarName in Iterable if Cond]`; Cond is
// nil when the comprehension carries no filter.
type ListCompExpr struct {
	Element  Expr
	VarName  string
	Iterable Expr
	Cond     Expr
	P        token.Position
}

func (e *ListCompExpr) expressionNode()      {}
func (e *ListCompExpr) TokenLiteral() string { return "[for]" }
func (e *ListCompExpr) Pos() token.Position  { return e.P }
func (e *ListCompExpr) String() string       { return "[... for ... in ...]" }

type YieldExpr struct {
	Value Expr // nil means bare `yield`
	P     token.Position
}

func (e *YieldExpr) expressionNode()      {}
func (e *YieldExpr) TokenLiteral() string { return "yield" }
func (e *YieldExpr) Pos() token.Position  { return e.P }
func (e *YieldExpr) String() string       { return "yield" }

// AwaitExpr is reserved: recognized by the converter but never emitted.
type AwaitExpr struct {
	Value Expr
	P     token.Position
}

func (e *AwaitExpr) expressionNode()      {}
func (e *AwaitExpr) TokenLiteral() string { return "await" }
func (e *AwaitExpr) Pos() token.Position  { return e.P }
func (e *AwaitExpr) String() string       { return "await" }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [24]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
