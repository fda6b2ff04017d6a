// Package refinterp is a tree-walking reference interpreter over
// *ir.Module, used only by this module's tests to check that
// compile-then-run agrees with direct evaluation over the same
// subset. It is not part of the compiler's runtime path.
//
// Built as a big type switch over ir.Expr/ir.Stmt plus a flat Value
// union, the way a one-file tree-walker usually looks. Deliberately
// minimal: integers, floats, bools, the arithmetic/comparison/boolean
// operators, if/while/for-over-range, and function calls.
package refinterp

import (
	"fmt"

	"github.com/anistark/waspy/ir"
)

// Value is any of the interpreter's runtime values.
type Value interface {
	Kind() string
}

type IntVal int64

func (IntVal) Kind() string { return "int" }

type FloatVal float64

func (FloatVal) Kind() string { return "float" }

type BoolVal bool

func (BoolVal) Kind() string { return "bool" }

type StrVal string

func (StrVal) Kind() string { return "str" }

type NoneVal struct{}

func (NoneVal) Kind() string { return "none" }

// signal is a non-error control-flow marker threaded back up through
// evalStmt/evalBlock, letting a return/break/continue bubble up
// without unwrapping it early.
type signal int

const (
	signalNone signal = iota
	signalReturn
	signalBreak
	signalContinue
)

// scope is a single flat frame: this subset never needs nested block
// scoping (no closures, no class bodies), so one map per call is
// enough.
type scope struct {
	vars map[string]Value
}

func newScope() *scope { return &scope{vars: make(map[string]Value)} }

// Interp evaluates functions from one *ir.Module. It is not safe for
// concurrent use, mirroring the compiler's own single-threaded model.
type Interp struct {
	mod   *ir.Module
	funcs map[string]*ir.Function
}

// New returns an Interp ready to evaluate top-level functions of mod.
// Classes and methods are out of this interpreter's deliberately
// minimal scope (see package doc).
func New(mod *ir.Module) *Interp {
	in := &Interp{mod: mod, funcs: make(map[string]*ir.Function)}
	for _, fn := range mod.Functions {
		in.funcs[fn.Name] = fn
	}
	return in
}

// Call evaluates fn's body with args bound to its parameters in order
// and returns its result value (NoneVal for a bare `return`/fallthrough).
func (in *Interp) Call(name string, args ...Value) (Value, error) {
	fn, ok := in.funcs[name]
	if !ok {
		return nil, fmt.Errorf("refinterp: no such function %q", name)
	}
	return in.callFunc(fn, args)
}

func (in *Interp) callFunc(fn *ir.Function, args []Value) (Value, error) {
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("refinterp: %s: want %d args, got %d", fn.Name, len(fn.Params), len(args))
	}
	sc := newScope()
	for i, p := range fn.Params {
		sc.vars[p.Name] = args[i]
	}
	result, sig, err := in.evalBlock(fn.Body, sc)
	if err != nil {
		return nil, err
	}
	if sig == signalReturn {
		return result, nil
	}
	return NoneVal{}, nil
}

// evalBlock runs stmts in order, stopping early on return/break/continue
// and reporting which signal stopped it (signalNone if the block ran to
// completion).
func (in *Interp) evalBlock(stmts []ir.Stmt, sc *scope) (Value, signal, error) {
	for _, s := range stmts {
		v, sig, err := in.evalStmt(s, sc)
		if err != nil {
			return nil, signalNone, err
		}
		if sig != signalNone {
			return v, sig, nil
		}
	}
	return NoneVal{}, signalNone, nil
}

func (in *Interp) evalStmt(s ir.Stmt, sc *scope) (Value, signal, error) {
	switch s := s.(type) {
	case ir.Assign:
		v, err := in.evalExpr(s.Value, sc)
		if err != nil {
			return nil, signalNone, err
		}
		sc.vars[s.Target] = v
		return nil, signalNone, nil

	case ir.AugAssign:
		cur, ok := sc.vars[s.Target]
		if !ok {
			return nil, signalNone, fmt.Errorf("refinterp: unbound name %q", s.Target)
		}
		rhs, err := in.evalExpr(s.Value, sc)
		if err != nil {
			return nil, signalNone, err
		}
		v, err := binOp(s.Op, cur, rhs)
		if err != nil {
			return nil, signalNone, err
		}
		sc.vars[s.Target] = v
		return nil, signalNone, nil

	case ir.If:
		cond, err := in.evalExpr(s.Cond, sc)
		if err != nil {
			return nil, signalNone, err
		}
		if truthy(cond) {
			return in.evalBlock(s.Then, sc)
		}
		return in.evalBlock(s.Else, sc)

	case ir.While:
		for {
			cond, err := in.evalExpr(s.Cond, sc)
			if err != nil {
				return nil, signalNone, err
			}
			if !truthy(cond) {
				return NoneVal{}, signalNone, nil
			}
			v, sig, err := in.evalBlock(s.Body, sc)
			if err != nil {
				return nil, signalNone, err
			}
			switch sig {
			case signalReturn:
				return v, sig, nil
			case signalBreak:
				return NoneVal{}, signalNone, nil
			}
		}

	case ir.For:
		return in.evalFor(s, sc)

	case ir.Return:
		if s.Value == nil {
			return NoneVal{}, signalReturn, nil
		}
		v, err := in.evalExpr(s.Value, sc)
		if err != nil {
			return nil, signalNone, err
		}
		return v, signalReturn, nil

	case ir.ExprStmt:
		_, err := in.evalExpr(s.Value, sc)
		return nil, signalNone, err

	case ir.Break:
		return NoneVal{}, signalBreak, nil

	case ir.Continue:
		return NoneVal{}, signalContinue, nil

	case ir.Pass:
		return nil, signalNone, nil

	default:
		return nil, signalNone, fmt.Errorf("refinterp: unsupported statement %T", s)
	}
}

// evalFor only implements the Range strategy, the first of three
// for-loop lowering strategies — the deliberately minimal subset this
// package covers has no list/str iteration.
func (in *Interp) evalFor(s ir.For, sc *scope) (Value, signal, error) {
	rc, ok := s.Iterable.(ir.RangeCall)
	if !ok {
		return nil, signalNone, fmt.Errorf("refinterp: for-loop over non-range iterable not supported")
	}
	start, err := in.evalIntExpr(rc.Start, sc)
	if err != nil {
		return nil, signalNone, err
	}
	stop, err := in.evalIntExpr(rc.Stop, sc)
	if err != nil {
		return nil, signalNone, err
	}
	step, err := in.evalIntExpr(rc.Step, sc)
	if err != nil {
		return nil, signalNone, err
	}
	if step == 0 {
		return nil, signalNone, fmt.Errorf("refinterp: range step of 0")
	}
	for cur := start; (step > 0 && cur < stop) || (step < 0 && cur > stop); cur += step {
		sc.vars[s.Var] = IntVal(cur)
		v, sig, err := in.evalBlock(s.Body, sc)
		if err != nil {
			return nil, signalNone, err
		}
		switch sig {
		case signalReturn:
			return v, sig, nil
		case signalBreak:
			return NoneVal{}, signalNone, nil
		}
	}
	return NoneVal{}, signalNone, nil
}

func (in *Interp) evalIntExpr(e ir.Expr, sc *scope) (int64, error) {
	v, err := in.evalExpr(e, sc)
	if err != nil {
		return 0, err
	}
	iv, ok := v.(IntVal)
	if !ok {
		return 0, fmt.Errorf("refinterp: expected int, got %s", v.Kind())
	}
	return int64(iv), nil
}

func (in *Interp) evalExpr(e ir.Expr, sc *scope) (Value, error) {
	switch e := e.(type) {
	case ir.IntConst:
		return IntVal(e.Value), nil
	case ir.FloatConst:
		return FloatVal(e.Value), nil
	case ir.BoolConst:
		return BoolVal(e.Value), nil
	case ir.StrConst:
		return StrVal(e.Value), nil
	case ir.NoneConst:
		return NoneVal{}, nil
	case ir.Var:
		v, ok := sc.vars[e.Name]
		if !ok {
			return nil, fmt.Errorf("refinterp: unbound name %q", e.Name)
		}
		return v, nil
	case ir.BinOp:
		l, err := in.evalExpr(e.L, sc)
		if err != nil {
			return nil, err
		}
		r, err := in.evalExpr(e.R, sc)
		if err != nil {
			return nil, err
		}
		return binOp(e.Op, l, r)
	case ir.UnaryOp:
		v, err := in.evalExpr(e.V, sc)
		if err != nil {
			return nil, err
		}
		return unaryOp(e.Op, v)
	case ir.BoolOp:
		return in.evalBoolOp(e, sc)
	case ir.Compare:
		l, err := in.evalExpr(e.L, sc)
		if err != nil {
			return nil, err
		}
		r, err := in.evalExpr(e.R, sc)
		if err != nil {
			return nil, err
		}
		return compare(e.Op, l, r)
	case ir.Call:
		return in.evalCall(e, sc)
	default:
		return nil, fmt.Errorf("refinterp: unsupported expression %T", e)
	}
}

func (in *Interp) evalBoolOp(e ir.BoolOp, sc *scope) (Value, error) {
	var last Value = BoolVal(false)
	for _, operand := range e.Operands {
		v, err := in.evalExpr(operand, sc)
		if err != nil {
			return nil, err
		}
		last = v
		if e.Op == "and" && !truthy(v) {
			return v, nil
		}
		if e.Op == "or" && truthy(v) {
			return v, nil
		}
	}
	return last, nil
}

func (in *Interp) evalCall(e ir.Call, sc *scope) (Value, error) {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := in.evalExpr(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	fn, ok := in.funcs[e.Callee]
	if !ok {
		return nil, fmt.Errorf("refinterp: unknown function %q (builtins are out of scope for this interpreter)", e.Callee)
	}
	return in.callFunc(fn, args)
}

func truthy(v Value) bool {
	switch v := v.(type) {
	case BoolVal:
		return bool(v)
	case IntVal:
		return v != 0
	case FloatVal:
		return v != 0
	case StrVal:
		return len(v) > 0
	case NoneVal:
		return false
	default:
		return false
	}
}

func asFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case FloatVal:
		return float64(v), true
	case IntVal:
		return float64(v), true
	case BoolVal:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// binOp mirrors compiler/expr.go's emitBinOp promotion rule exactly
// (string "+" stays Str, "/" always promotes to Float, any float
// operand promotes the whole op to Float, otherwise Int) so results
// agree with the compiled code literal-for-literal.
func binOp(op string, l, r Value) (Value, error) {
	if ls, ok := l.(StrVal); ok && op == "+" {
		rs, ok := r.(StrVal)
		if !ok {
			return nil, fmt.Errorf("refinterp: %s + %s unsupported", l.Kind(), r.Kind())
		}
		return ls + rs, nil
	}

	if op == "/" {
		lf, ok1 := asFloat(l)
		rf, ok2 := asFloat(r)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("refinterp: %s / %s unsupported", l.Kind(), r.Kind())
		}
		return FloatVal(lf / rf), nil
	}

	_, lFloat := l.(FloatVal)
	_, rFloat := r.(FloatVal)
	if lFloat || rFloat {
		lf, ok1 := asFloat(l)
		rf, ok2 := asFloat(r)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("refinterp: %s %s %s unsupported", l.Kind(), op, r.Kind())
		}
		switch op {
		case "+":
			return FloatVal(lf + rf), nil
		case "-":
			return FloatVal(lf - rf), nil
		case "*":
			return FloatVal(lf * rf), nil
		case "**":
			return FloatVal(pow(lf, rf)), nil
		default:
			return nil, fmt.Errorf("refinterp: unsupported float op %q", op)
		}
	}

	li, ok1 := toInt(l)
	ri, ok2 := toInt(r)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("refinterp: %s %s %s unsupported", l.Kind(), op, r.Kind())
	}
	switch op {
	case "+":
		return IntVal(li + ri), nil
	case "-":
		return IntVal(li - ri), nil
	case "*":
		return IntVal(li * ri), nil
	case "//":
		if ri == 0 {
			return nil, fmt.Errorf("refinterp: integer division by zero")
		}
		return IntVal(li / ri), nil
	case "%":
		if ri == 0 {
			return nil, fmt.Errorf("refinterp: modulo by zero")
		}
		return IntVal(li % ri), nil
	case "**":
		return IntVal(int64(pow(float64(li), float64(ri)))), nil
	default:
		return nil, fmt.Errorf("refinterp: unsupported int op %q", op)
	}
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func toInt(v Value) (int64, bool) {
	switch v := v.(type) {
	case IntVal:
		return int64(v), true
	case BoolVal:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func unaryOp(op string, v Value) (Value, error) {
	switch op {
	case "-":
		if f, ok := v.(FloatVal); ok {
			return -f, nil
		}
		if i, ok := toInt(v); ok {
			return IntVal(-i), nil
		}
		return nil, fmt.Errorf("refinterp: unary - unsupported for %s", v.Kind())
	case "not":
		return BoolVal(!truthy(v)), nil
	default:
		return nil, fmt.Errorf("refinterp: unsupported unary op %q", op)
	}
}

func compare(op string, l, r Value) (Value, error) {
	if ls, ok := l.(StrVal); ok {
		rs, ok := r.(StrVal)
		if !ok {
			return nil, fmt.Errorf("refinterp: cannot compare str with %s", r.Kind())
		}
		switch op {
		case "==":
			return BoolVal(ls == rs), nil
		case "!=":
			return BoolVal(ls != rs), nil
		case "<":
			return BoolVal(ls < rs), nil
		case "<=":
			return BoolVal(ls <= rs), nil
		case ">":
			return BoolVal(ls > rs), nil
		case ">=":
			return BoolVal(ls >= rs), nil
		}
	}

	lf, ok1 := asFloat(l)
	rf, ok2 := asFloat(r)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("refinterp: cannot compare %s with %s", l.Kind(), r.Kind())
	}
	switch op {
	case "==":
		return BoolVal(lf == rf), nil
	case "!=":
		return BoolVal(lf != rf), nil
	case "<":
		return BoolVal(lf < rf), nil
	case "<=":
		return BoolVal(lf <= rf), nil
	case ">":
		return BoolVal(lf > rf), nil
	case ">=":
		return BoolVal(lf >= rf), nil
	default:
		return nil, fmt.Errorf("refinterp: unsupported comparison op %q", op)
	}
}
