package irgen

import (
	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// lctx is the lowering pass's per-function bookkeeping: local variable
// types (first-assignment-wins, mirroring funcContext.declareLocal's
// "a local's WASM type never changes across a function body"
// invariant) and the signature being lowered, for Return-type join
// inference.
type lctx struct {
	c          *Converter
	vars       map[string]types.Type
	ownerClass string
	sig        *funcSig
	returns    []types.Type
}

func newLctx(c *Converter, sig *funcSig, ownerClass string) *lctx {
	return &lctx{c: c, vars: make(map[string]types.Type), ownerClass: ownerClass, sig: sig}
}

// declare records name's type on first sight and returns the type that
// will actually back it (the original, on every later call — a WASM
// local's type is fixed at first declaration).
func (lc *lctx) declare(name string, t types.Type) types.Type {
	if existing, ok := lc.vars[name]; ok {
		return existing
	}
	lc.vars[name] = t
	return t
}

func (lc *lctx) lookup(name string) (types.Type, bool) {
	if name == "self" && lc.ownerClass != "" {
		return types.ClassType{Name: lc.ownerClass}, true
	}
	if t, ok := lc.vars[name]; ok {
		return t, true
	}
	if t, ok := lc.c.moduleVarTypes[name]; ok {
		return t, true
	}
	return nil, false
}

// classOf returns the static class name a typed expression resolves
// to, used to populate MethodCall.OwnerClass / Attribute.OwnerClass /
// AttrAssign.OwnerClass (the compiler dispatches `OwnerClass+"::"+Name`
// and never re-derives the receiver's class itself).
func classOf(t types.Type) (string, bool) {
	if ct, ok := t.(types.ClassType); ok {
		return ct.Name, true
	}
	return "", false
}

func (c *Converter) lowerExpr(lc *lctx, e ast.Expr) (ir.Expr, types.Type, error) {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return ir.IntConst{Value: e.Value, P: e.P}, types.Int, nil

	case *ast.FloatLiteral:
		return ir.FloatConst{Value: e.Value, P: e.P}, types.Float, nil

	case *ast.BoolLiteral:
		return ir.BoolConst{Value: e.Value, P: e.P}, types.Bool, nil

	case *ast.StrLiteral:
		return ir.StrConst{Value: e.Value, P: e.P}, types.Str, nil

	case *ast.BytesLiteral:
		return ir.BytesConst{Value: e.Value, P: e.P}, types.Bytes, nil

	case *ast.NoneLiteral:
		return ir.NoneConst{P: e.P}, types.None, nil

	case *ast.Identifier:
		t, ok := lc.lookup(e.Name)
		if !ok {
			return nil, nil, errs.NewUnknownVariable(e.P, e.Name)
		}
		return ir.Var{Name: e.Name, Type: t, P: e.P}, t, nil

	case *ast.BinaryExpr:
		return c.lowerBinaryExpr(lc, e)

	case *ast.UnaryExpr:
		return c.lowerUnaryExpr(lc, e)

	case *ast.BoolOpExpr:
		var ops []ir.Expr
		for _, o := range e.Operands {
			oe, _, err := c.lowerExpr(lc, o)
			if err != nil {
				return nil, nil, err
			}
			ops = append(ops, oe)
		}
		return ir.BoolOp{Op: e.Op, Operands: ops, P: e.P}, types.Bool, nil

	case *ast.CompareExpr:
		le, _, err := c.lowerExpr(lc, e.Left)
		if err != nil {
			return nil, nil, err
		}
		re, _, err := c.lowerExpr(lc, e.Right)
		if err != nil {
			return nil, nil, err
		}
		return ir.Compare{Op: e.Op, L: le, R: re, P: e.P}, types.Bool, nil

	case *ast.CallExpr:
		return c.lowerCallExpr(lc, e)

	case *ast.AttributeExpr:
		return c.lowerAttributeExpr(lc, e)

	case *ast.IndexExpr:
		return c.lowerIndexExpr(lc, e)

	case *ast.SliceExpr:
		return c.lowerSliceExpr(lc, e)

	case *ast.ListLiteral:
		return c.lowerListLiteral(lc, e)

	case *ast.DictLiteral:
		return c.lowerDictLiteral(lc, e)

	case *ast.TupleLiteral:
		var elems []ir.Expr
		for _, el := range e.Elements {
			ee, _, err := c.lowerExpr(lc, el)
			if err != nil {
				return nil, nil, err
			}
			elems = append(elems, ee)
		}
		return ir.TupleLiteral{Elements: elems, P: e.P}, types.TupleType{}, nil

	case *ast.FStringExpr:
		var parts []ir.FStringPart
		for _, p := range e.Parts {
			if p.Expr == nil {
				parts = append(parts, ir.FStringPart{Literal: p.Literal})
				continue
			}
			pe, _, err := c.lowerExpr(lc, p.Expr)
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, ir.FStringPart{Expr: pe})
		}
		return ir.FString{Parts: parts, P: e.P}, types.Str, nil

	case *ast.FormatPercentExpr:
		fe, _, err := c.lowerExpr(lc, e.Format)
		if err != nil {
			return nil, nil, err
		}
		var args []ir.Expr
		for _, a := range e.Args {
			ae, _, err := c.lowerExpr(lc, a)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, ae)
		}
		return ir.FormatPercent{Format: fe, Args: args, P: e.P}, types.Str, nil

	case *ast.ListCompExpr:
		return c.lowerListComp(lc, e)

	case *ast.LambdaExpr:
		return c.lowerLambda(lc, e)

	case *ast.YieldExpr:
		var ve ir.Expr
		if e.Value != nil {
			var err error
			ve, _, err = c.lowerExpr(lc, e.Value)
			if err != nil {
				return nil, nil, err
			}
		}
		return ir.Yield{Value: ve, P: e.P}, types.GeneratorType{Yielded: types.AnyTy}, nil

	case *ast.AwaitExpr:
		ve, _, err := c.lowerExpr(lc, e.Value)
		if err != nil {
			return nil, nil, err
		}
		return ir.Await{Value: ve, P: e.P}, types.AnyTy, nil
	}
	return nil, nil, errs.NewUnsupportedConstruct(e.Pos(), "expression")
}

// binOpResultType mirrors compiler.emitBinOp's own type derivation
// (string concat stays Str, `/` always promotes to Float, any other
// float operand promotes the whole operation to Float, otherwise Int)
// so callers that read BinOp.Result (e.g. min/max's accumulator-kind
// peek) see the same type emission will actually produce.
func binOpResultType(op string, l, r types.Type) types.Type {
	if types.Equal(l, types.Str) && types.Equal(r, types.Str) && op == "+" {
		return types.Str
	}
	if op == "/" {
		return types.Float
	}
	if types.Equal(l, types.Float) || types.Equal(r, types.Float) {
		return types.Float
	}
	return types.Int
}

func (c *Converter) lowerBinaryExpr(lc *lctx, e *ast.BinaryExpr) (ir.Expr, types.Type, error) {
	le, lt, err := c.lowerExpr(lc, e.Left)
	if err != nil {
		return nil, nil, err
	}
	re, rt, err := c.lowerExpr(lc, e.Right)
	if err != nil {
		return nil, nil, err
	}
	result := binOpResultType(e.Op, lt, rt)
	return ir.BinOp{Op: e.Op, L: le, R: re, Result: result, P: e.P}, result, nil
}

func (c *Converter) lowerUnaryExpr(lc *lctx, e *ast.UnaryExpr) (ir.Expr, types.Type, error) {
	ve, vt, err := c.lowerExpr(lc, e.Operand)
	if err != nil {
		return nil, nil, err
	}
	result := vt
	if e.Op == "not" {
		result = types.Bool
	}
	return ir.UnaryOp{Op: e.Op, V: ve, Result: result, P: e.P}, result, nil
}

// lowerCallExpr disambiguates a plain call from a method call by
// inspecting Callee's concrete AST shape (ast.CallExpr's own doc
// comment: "Callee is an Identifier" vs "an AttributeExpr").
func (c *Converter) lowerCallExpr(lc *lctx, e *ast.CallExpr) (ir.Expr, types.Type, error) {
	if attr, ok := e.Callee.(*ast.AttributeExpr); ok {
		return c.lowerMethodCallExpr(lc, e, attr)
	}
	id, ok := e.Callee.(*ast.Identifier)
	if !ok {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "indirect-call")
	}

	if id.Name == "range" {
		return c.lowerRangeCall(lc, e)
	}

	var args []ir.Expr
	for _, a := range e.Args {
		ae, _, err := c.lowerExpr(lc, a)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, ae)
	}

	if sig, ok := c.funcs[id.Name]; ok {
		return ir.Call{Callee: id.Name, Args: args, Result: c.effectiveReturnType(sig), P: e.P}, c.effectiveReturnType(sig), nil
	}
	if cls, ok := c.classes[id.Name]; ok {
		return ir.Call{Callee: id.Name, Args: args, Result: types.ClassType{Name: cls.name}, P: e.P}, types.ClassType{Name: cls.name}, nil
	}

	result := builtinResultType(id.Name, e.Args, args)
	return ir.Call{Callee: id.Name, Args: args, Result: result, P: e.P}, result, nil
}

// builtinResultType is a best-effort peek at the fixed builtin table's
// return type, used only for this converter's own static typing
// (e.g. widening, OwnerClass resolution) — the compiler computes each
// builtin's actual emitted type itself and does not read Call.Result
// for any of these names.
func builtinResultType(name string, astArgs []ast.Expr, args []ir.Expr) types.Type {
	switch name {
	case "len":
		return types.Int
	case "print":
		return types.None
	case "sum":
		return types.Int
	case "min", "max":
		if len(args) > 0 {
			return inferArgType(args[0])
		}
		return types.Int
	case "int":
		return types.Int
	case "float":
		return types.Float
	case "str":
		return types.Str
	case "bool":
		return types.Bool
	case "abs":
		if len(args) > 0 {
			return inferArgType(args[0])
		}
		return types.Int
	case "range":
		return types.RangeTy
	}
	return types.AnyTy
}

func inferArgType(e ir.Expr) types.Type {
	switch e := e.(type) {
	case ir.FloatConst:
		return types.Float
	case ir.IntConst:
		return types.Int
	case ir.BinOp:
		return e.Result
	case ir.Var:
		return e.Type
	}
	return types.Int
}

func (c *Converter) lowerRangeCall(lc *lctx, e *ast.CallExpr) (ir.Expr, types.Type, error) {
	if len(e.Args) < 1 || len(e.Args) > 3 {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "range-arg-count")
	}
	zero := ir.IntConst{Value: 0, P: e.P}
	one := ir.IntConst{Value: 1, P: e.P}

	lowerArg := func(a ast.Expr) (ir.Expr, error) {
		ae, _, err := c.lowerExpr(lc, a)
		return ae, err
	}

	switch len(e.Args) {
	case 1:
		stop, err := lowerArg(e.Args[0])
		if err != nil {
			return nil, nil, err
		}
		return ir.RangeCall{Start: zero, Stop: stop, Step: one, P: e.P}, types.RangeTy, nil
	case 2:
		start, err := lowerArg(e.Args[0])
		if err != nil {
			return nil, nil, err
		}
		stop, err := lowerArg(e.Args[1])
		if err != nil {
			return nil, nil, err
		}
		return ir.RangeCall{Start: start, Stop: stop, Step: one, P: e.P}, types.RangeTy, nil
	default:
		start, err := lowerArg(e.Args[0])
		if err != nil {
			return nil, nil, err
		}
		stop, err := lowerArg(e.Args[1])
		if err != nil {
			return nil, nil, err
		}
		step, err := lowerArg(e.Args[2])
		if err != nil {
			return nil, nil, err
		}
		return ir.RangeCall{Start: start, Stop: stop, Step: step, P: e.P}, types.RangeTy, nil
	}
}

func (c *Converter) lowerMethodCallExpr(lc *lctx, call *ast.CallExpr, attr *ast.AttributeExpr) (ir.Expr, types.Type, error) {
	re, rt, err := c.lowerExpr(lc, attr.Receiver)
	if err != nil {
		return nil, nil, err
	}
	var args []ir.Expr
	for _, a := range call.Args {
		ae, _, err := c.lowerExpr(lc, a)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, ae)
	}

	// list.append: no real method backs it.
	if _, ok := rt.(types.ListType); ok && attr.Name == "append" {
		return ir.MethodCall{Receiver: re, Name: attr.Name, Args: args, Result: types.None, P: call.P}, types.None, nil
	}

	className, ok := classOf(rt)
	if !ok {
		return nil, nil, errs.NewUnsupportedConstruct(call.P, "method-call-on-unresolved-receiver-type")
	}
	cls, ok := c.classes[className]
	if !ok {
		return nil, nil, errs.NewUnknownMethod(call.P, className, attr.Name)
	}
	msig, ok := cls.methods[attr.Name]
	if !ok {
		return nil, nil, errs.NewUnknownMethod(call.P, className, attr.Name)
	}
	result := c.effectiveReturnType(msig)
	return ir.MethodCall{Receiver: re, Name: attr.Name, Args: args, OwnerClass: className, Result: result, P: call.P}, result, nil
}

func (c *Converter) lowerAttributeExpr(lc *lctx, e *ast.AttributeExpr) (ir.Expr, types.Type, error) {
	re, rt, err := c.lowerExpr(lc, e.Receiver)
	if err != nil {
		return nil, nil, err
	}
	className, ok := classOf(rt)
	if !ok {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "attribute-access-on-unresolved-receiver-type")
	}
	cls, ok := c.classes[className]
	if !ok {
		return nil, nil, errs.NewUnknownAttribute(e.P, className, e.Name)
	}
	ft, ok := cls.fieldTypes[e.Name]
	if !ok {
		return nil, nil, errs.NewUnknownAttribute(e.P, className, e.Name)
	}
	return ir.Attribute{Receiver: re, Name: e.Name, OwnerClass: className, Result: ft, P: e.P}, ft, nil
}

func (c *Converter) lowerIndexExpr(lc *lctx, e *ast.IndexExpr) (ir.Expr, types.Type, error) {
	ce, ct, err := c.lowerExpr(lc, e.Container)
	if err != nil {
		return nil, nil, err
	}
	ke, _, err := c.lowerExpr(lc, e.Index)
	if err != nil {
		return nil, nil, err
	}
	result := elementTypeOf(ct)
	return ir.Index{Container: ce, Key: ke, Result: result, P: e.P}, result, nil
}

// elementTypeOf resolves the static element type an Index/Slice/for-in
// iteration over t produces. Containers whose element type
// can't be known (bare str/bytes indexing yields Int codepoints, range
// yields Int) fall back to the documented default.
func elementTypeOf(t types.Type) types.Type {
	switch t := t.(type) {
	case types.ListType:
		return t.Elem
	case types.TupleType:
		if len(t.Elements) > 0 {
			return t.Elements[0]
		}
		return types.AnyTy
	case types.DictType:
		return t.Value
	}
	if types.Equal(t, types.Str) || types.Equal(t, types.Bytes) || types.Equal(t, types.RangeTy) {
		return types.Int
	}
	return types.AnyTy
}

func (c *Converter) lowerSliceExpr(lc *lctx, e *ast.SliceExpr) (ir.Expr, types.Type, error) {
	ce, ct, err := c.lowerExpr(lc, e.Container)
	if err != nil {
		return nil, nil, err
	}
	lowerOpt := func(a ast.Expr) (ir.Expr, error) {
		if a == nil {
			return nil, nil
		}
		ae, _, err := c.lowerExpr(lc, a)
		return ae, err
	}
	start, err := lowerOpt(e.Start)
	if err != nil {
		return nil, nil, err
	}
	stop, err := lowerOpt(e.Stop)
	if err != nil {
		return nil, nil, err
	}
	step, err := lowerOpt(e.Step)
	if err != nil {
		return nil, nil, err
	}
	return ir.Slice{Container: ce, Start: start, Stop: stop, Step: step, Result: ct, P: e.P}, ct, nil
}

func (c *Converter) lowerListLiteral(lc *lctx, e *ast.ListLiteral) (ir.Expr, types.Type, error) {
	var elems []ir.Expr
	var elemTypes []types.Type
	for _, el := range e.Elements {
		ee, et, err := c.lowerExpr(lc, el)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, ee)
		elemTypes = append(elemTypes, et)
	}
	elemType := types.Join(elemTypes)
	if len(elemTypes) == 0 {
		elemType = types.Int
	}
	lt := types.ListType{Elem: elemType}
	return ir.ListLiteral{Elements: elems, ElemType: elemType, P: e.P}, lt, nil
}

func (c *Converter) lowerDictLiteral(lc *lctx, e *ast.DictLiteral) (ir.Expr, types.Type, error) {
	var keys, vals []ir.Expr
	var keyTypes, valTypes []types.Type
	for i := range e.Keys {
		ke, kt, err := c.lowerExpr(lc, e.Keys[i])
		if err != nil {
			return nil, nil, err
		}
		ve, vt, err := c.lowerExpr(lc, e.Values[i])
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, ke)
		vals = append(vals, ve)
		keyTypes = append(keyTypes, kt)
		valTypes = append(valTypes, vt)
	}
	kt := types.Join(keyTypes)
	vt := types.Join(valTypes)
	if len(keyTypes) == 0 {
		kt, vt = types.Int, types.Int
	}
	dt := types.DictType{Key: kt, Value: vt}
	return ir.DictLiteral{Keys: keys, Values: vals, KeyType: kt, ValType: vt, P: e.P}, dt, nil
}

func (c *Converter) lowerListComp(lc *lctx, e *ast.ListCompExpr) (ir.Expr, types.Type, error) {
	iterE, iterT, err := c.lowerExpr(lc, e.Iterable)
	if err != nil {
		return nil, nil, err
	}
	elemT := elementTypeOf(iterT)
	lc.declare(e.VarName, elemT)
	elemE, et, err := c.lowerExpr(lc, e.Element)
	if err != nil {
		return nil, nil, err
	}
	var condE ir.Expr
	if e.Cond != nil {
		condE, _, err = c.lowerExpr(lc, e.Cond)
		if err != nil {
			return nil, nil, err
		}
	}
	return ir.ListComp{
		Element:  elemE,
		IterVar:  e.VarName,
		Iterable: iterE,
		Cond:     condE,
		ElemType: et,
		P:        e.P,
	}, types.ListType{Elem: et}, nil
}

// lowerLambda lowers a Lambda and always computes CapturedVars (names
// from the enclosing scope its body references); it rejects nothing
// itself. A lambda called at its own definition site never reaches
// here: lowerCallExpr rejects any non-identifier callee as
// "indirect-call". The compiler fails every Lambda at emission, with
// or without captures (see compiler/expr.go).
func (c *Converter) lowerLambda(lc *lctx, e *ast.LambdaExpr) (ir.Expr, types.Type, error) {
	inner := newLctx(lc.c, lc.sig, lc.ownerClass)
	var params []ir.Param
	for _, p := range e.Params {
		var t types.Type = types.Int
		if p.Annotation != nil {
			var err error
			t, err = resolveAnnotation(p.Annotation, c.classes)
			if err != nil {
				return nil, nil, err
			}
		}
		inner.declare(p.Name, t)
		params = append(params, ir.Param{Name: p.Name, Type: t})
	}
	bodyE, bodyT, err := c.lowerExpr(inner, e.Body)
	if err != nil {
		return nil, nil, err
	}
	captured := capturedVars(e, paramNameSet(e.Params), lc)
	return ir.Lambda{
		Params:       params,
		Body:         []ir.Stmt{ir.Return{Value: bodyE, P: e.P}},
		CapturedVars: captured,
		Result:       bodyT,
		P:            e.P,
	}, types.CallableType{Ret: bodyT}, nil
}

func paramNameSet(params []ast.Param) map[string]bool {
	s := make(map[string]bool, len(params))
	for _, p := range params {
		s[p.Name] = true
	}
	return s
}

// capturedVars collects identifiers inside a lambda body that are not
// one of its own parameters but do resolve in the enclosing lctx —
// exactly the set ir.Lambda's CapturedVars field documents.
func capturedVars(e *ast.LambdaExpr, params map[string]bool, lc *lctx) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(ex ast.Expr)
	walk = func(ex ast.Expr) {
		walkExprsInExpr(ex, func(x ast.Expr) {
			id, ok := x.(*ast.Identifier)
			if !ok || params[id.Name] || seen[id.Name] {
				return
			}
			if _, ok := lc.lookup(id.Name); ok {
				seen[id.Name] = true
				out = append(out, id.Name)
			}
		})
	}
	walk(e.Body)
	return out
}

// effectiveReturnType returns sig's resolved return type. By the time
// any call site is lowered, inferReturnTypes has already finalized
// every unannotated function's return type by joining its Return
// statements' static types.
func (c *Converter) effectiveReturnType(sig *funcSig) types.Type {
	return sig.returnType
}
