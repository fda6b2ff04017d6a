// Package ir defines the typed, tree-shaped intermediate representation
// this compiler lowers source ASTs into. Every case is a concrete
// struct behind a small marker-method interface, the same sum-type
// idiom the ast package uses for Stmt/Expr, generalized here so every
// expression also carries a well-defined IRType.
package ir

import (
	"github.com/anistark/waspy/token"
	"github.com/anistark/waspy/types"
)

type (
	Expr interface {
		exprNode()
		Pos() token.Position
	}

	Stmt interface {
		stmtNode()
		Pos() token.Position
	}
)

// Param is a function parameter or class field: a name paired with its
// resolved IRType.
type Param struct {
	Name string
	Type types.Type
}

// Decorator is a resolved, name-keyed rewrite recorded on an IRFunction;
// by the time one is produced, the name has already been validated
// against the decorator registry.
type Decorator struct {
	Name string
	Args []Expr
}

// Handler is one `except` arm of a Try statement. Tag is the resolved
// exception-type tag for TypeName, or 0 for a bare `except:` that
// matches anything.
type Handler struct {
	TypeName string
	VarName  string
	Tag      int
	Body     []Stmt
}

// ---- Expressions ----

type IntConst struct {
	Value int64
	P     token.Position
}

func (IntConst) exprNode()             {}
func (e IntConst) Pos() token.Position { return e.P }

type FloatConst struct {
	Value float64
	P     token.Position
}

func (FloatConst) exprNode()             {}
func (e FloatConst) Pos() token.Position { return e.P }

type BoolConst struct {
	Value bool
	P     token.Position
}

func (BoolConst) exprNode()             {}
func (e BoolConst) Pos() token.Position { return e.P }

type StrConst struct {
	Value string
	P     token.Position
}

func (StrConst) exprNode()             {}
func (e StrConst) Pos() token.Position { return e.P }

type BytesConst struct {
	Value []byte
	P     token.Position
}

func (BytesConst) exprNode()             {}
func (e BytesConst) Pos() token.Position { return e.P }

type NoneConst struct{ P token.Position }

func (NoneConst) exprNode()             {}
func (e NoneConst) Pos() token.Position { return e.P }

// Var is a read of a name already defined in the function's locals
// table, a module global, or a parameter.
type Var struct {
	Name string
	Type types.Type
	P    token.Position
}

func (Var) exprNode()             {}
func (e Var) Pos() token.Position { return e.P }

type BinOp struct {
	Op     string // "+" "-" "*" "/" "//" "%" "**"
	L, R   Expr
	Result types.Type
	P      token.Position
}

func (BinOp) exprNode()             {}
func (e BinOp) Pos() token.Position { return e.P }

type UnaryOp struct {
	Op     string // "-" "not" "~"
	V      Expr
	Result types.Type
	P      token.Position
}

func (UnaryOp) exprNode()             {}
func (e UnaryOp) Pos() token.Position { return e.P }

// BoolOp is a short-circuiting `and`/`or` chain.
type BoolOp struct {
	Op       string // "and" | "or"
	Operands []Expr
	P        token.Position
}

func (BoolOp) exprNode()             {}
func (e BoolOp) Pos() token.Position { return e.P }

type Compare struct {
	Op   string // "==" "!=" "<" "<=" ">" ">="
	L, R Expr
	P    token.Position
}

func (Compare) exprNode()             {}
func (e Compare) Pos() token.Position { return e.P }

// Call is a plain function call resolved by name (either a module-level
// function, a builtin, or a class constructor).
type Call struct {
	Callee string
	Args   []Expr
	Result types.Type
	P      token.Position
}

func (Call) exprNode()             {}
func (e Call) Pos() token.Position { return e.P }

// MethodCall pushes Receiver as the implicit first argument and
// dispatches to `ClassName::Name`.
type MethodCall struct {
	Receiver   Expr
	Name       string
	Args       []Expr
	OwnerClass string
	Result     types.Type
	P          token.Position
}

func (MethodCall) exprNode()             {}
func (e MethodCall) Pos() token.Position { return e.P }

type Attribute struct {
	Receiver   Expr
	Name       string
	OwnerClass string
	Result     types.Type
	P          token.Position
}

func (Attribute) exprNode()             {}
func (e Attribute) Pos() token.Position { return e.P }

type Index struct {
	Container Expr
	Key       Expr
	Result    types.Type
	P         token.Position
}

func (Index) exprNode()             {}
func (e Index) Pos() token.Position { return e.P }

// Slice fields are nil when the corresponding part was omitted.
type Slice struct {
	Container        Expr
	Start, Stop, Step Expr
	Result           types.Type
	P                token.Position
}

func (Slice) exprNode()             {}
func (e Slice) Pos() token.Position { return e.P }

type ListLiteral struct {
	Elements []Expr
	ElemType types.Type
	P        token.Position
}

func (ListLiteral) exprNode()             {}
func (e ListLiteral) Pos() token.Position { return e.P }

type DictLiteral struct {
	Keys     []Expr
	Values   []Expr
	KeyType  types.Type
	ValType  types.Type
	P        token.Position
}

func (DictLiteral) exprNode()             {}
func (e DictLiteral) Pos() token.Position { return e.P }

type TupleLiteral struct {
	Elements []Expr
	P        token.Position
}

func (TupleLiteral) exprNode()             {}
func (e TupleLiteral) Pos() token.Position { return e.P }

// RangeCall is `range(start, stop, step)`, fully normalized to three
// expressions regardless of how many arguments the source call had.
type RangeCall struct {
	Start, Stop, Step Expr
	P                 token.Position
}

func (RangeCall) exprNode()             {}
func (e RangeCall) Pos() token.Position { return e.P }

// FStringPart is a literal chunk (Expr == nil) or an expression chunk.
type FStringPart struct {
	Literal string
	Expr    Expr
}

type FString struct {
	Parts []FStringPart
	P     token.Position
}

func (FString) exprNode()             {}
func (e FString) Pos() token.Position { return e.P }

type FormatPercent struct {
	Format Expr
	Args   []Expr
	P      token.Position
}

func (FormatPercent) exprNode()             {}
func (e FormatPercent) Pos() token.Position { return e.P }

// Lambda carries CapturedVars; irgen records them and rejects no
// Lambda, and the compiler fails emission of every Lambda.
type Lambda struct {
	Params       []Param
	Body         []Stmt
	CapturedVars []string
	Result       types.Type
	P            token.Position
}

func (Lambda) exprNode()             {}
func (e Lambda) Pos() token.Position { return e.P }

type ListComp struct {
	Element  Expr
	IterVar  string
	Iterable Expr
	Cond     Expr // nil when the comprehension has no filter
	ElemType types.Type
	P        token.Position
}

func (ListComp) exprNode()             {}
func (e ListComp) Pos() token.Position { return e.P }

// Yield always fails emission; it is retained in the IR so the
// converter can still lower a generator's *shape* for inspection by
// tooling.
type Yield struct {
	Value Expr // nil means bare `yield`
	P     token.Position
}

func (Yield) exprNode()             {}
func (e Yield) Pos() token.Position { return e.P }

// Await is reserved and never emitted.
type Await struct {
	Value Expr
	P     token.Position
}

func (Await) exprNode()             {}
func (e Await) Pos() token.Position { return e.P }

// ---- Statements ----

type Assign struct {
	Target string
	Value  Expr
	P      token.Position
}

func (Assign) stmtNode()             {}
func (s Assign) Pos() token.Position { return s.P }

type AugAssign struct {
	Target string
	Op     string
	Value  Expr
	P      token.Position
}

func (AugAssign) stmtNode()             {}
func (s AugAssign) Pos() token.Position { return s.P }

type IndexAssign struct {
	Container Expr
	Key       Expr
	Value     Expr
	P         token.Position
}

func (IndexAssign) stmtNode()             {}
func (s IndexAssign) Pos() token.Position { return s.P }

type AttrAssign struct {
	Object     Expr
	Name       string
	OwnerClass string
	Value      Expr
	P          token.Position
}

func (AttrAssign) stmtNode()             {}
func (s AttrAssign) Pos() token.Position { return s.P }

type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil when absent
	P    token.Position
}

func (If) stmtNode()             {}
func (s If) Pos() token.Position { return s.P }

type While struct {
	Cond Expr
	Body []Stmt
	P    token.Position
}

func (While) stmtNode()             {}
func (s While) Pos() token.Position { return s.P }

// IterKind selects which of three for-loop lowering strategies
// applies; irgen resolves this once so the compiler never has to
// re-derive it.
type IterKind int

const (
	IterUnknown IterKind = iota
	IterRange
	IterSequence // list, str, or bytes
)

type For struct {
	Var      string
	Iterable Expr
	IterKind IterKind
	Body     []Stmt
	P        token.Position
}

func (For) stmtNode()             {}
func (s For) Pos() token.Position { return s.P }

type Return struct {
	Value Expr // nil means bare `return`
	P     token.Position
}

func (Return) stmtNode()             {}
func (s Return) Pos() token.Position { return s.P }

type ExprStmt struct {
	Value Expr
	P     token.Position
}

func (ExprStmt) stmtNode()             {}
func (s ExprStmt) Pos() token.Position { return s.P }

// Raise sets (exc_flag, exc_type_tag) and branches to the nearest
// handler-dispatch label, or the function epilogue if none is active.
type Raise struct {
	Expr Expr // nil means bare re-raise
	Tag  int  // resolved exception tag, 0 when Expr is nil
	P    token.Position
}

func (Raise) stmtNode()             {}
func (s Raise) Pos() token.Position { return s.P }

type Try struct {
	Body     []Stmt
	Handlers []*Handler
	Finally  []Stmt // nil when absent
	P        token.Position
}

func (Try) stmtNode()             {}
func (s Try) Pos() token.Position { return s.P }

type With struct {
	CtxExpr Expr
	AsVar   string // empty means no binding
	Body    []Stmt
	P       token.Position
}

func (With) stmtNode()             {}
func (s With) Pos() token.Position { return s.P }

type ImportModule struct {
	Name  string
	Alias string
	P     token.Position
}

func (ImportModule) stmtNode()             {}
func (s ImportModule) Pos() token.Position { return s.P }

type Break struct{ P token.Position }

func (Break) stmtNode()             {}
func (s Break) Pos() token.Position { return s.P }

type Continue struct{ P token.Position }

func (Continue) stmtNode()             {}
func (s Continue) Pos() token.Position { return s.P }

type Pass struct{ P token.Position }

func (Pass) stmtNode()             {}
func (s Pass) Pos() token.Position { return s.P }

// ---- Top level ----

type Function struct {
	Name       string
	Params     []Param
	ReturnType types.Type
	Body       []Stmt
	Decorators []Decorator
	IsMethod   bool
	OwnerClass string // empty unless IsMethod
	P          token.Position
}

type Class struct {
	Name    string
	Fields  []Param
	Methods []*Function
	Init    *Function // nil if the class defines no __init__
	P       token.Position
}

type Module struct {
	Functions  []*Function
	Classes    []*Class
	ModuleVars []*Assign
}
