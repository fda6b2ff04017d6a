package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/token"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// emitExpr is the expression emitter: emit_expr(e) -> IRType of
// the produced stack value(s). Strings leave two i32 values (offset,
// length); everything else leaves exactly one.
func (c *Compiler) emitExpr(fc *funcContext, e ir.Expr) ([]byte, types.Type, error) {
	switch e := e.(type) {
	case ir.IntConst:
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(int32(e.Value))...), types.Int, nil

	case ir.FloatConst:
		return append([]byte{wasmmod.OpF64Const}, wasmmod.EncodeF64(e.Value)...), types.Float, nil

	case ir.BoolConst:
		v := int32(0)
		if e.Value {
			v = 1
		}
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(v)...), types.Bool, nil

	case ir.StrConst:
		off, err := c.builder.Layout().InternString(e.Value)
		if err != nil {
			return nil, nil, err
		}
		var b []byte
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(off))...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(len(e.Value)))...)
		return b, types.Str, nil

	case ir.BytesConst:
		off, err := c.builder.Layout().InternBytes(e.Value)
		if err != nil {
			return nil, nil, err
		}
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(int32(off))...), types.Bytes, nil

	case ir.NoneConst:
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(0)...), types.None, nil

	case ir.Var:
		if slot, ok := fc.resolve(e.Name); ok {
			var b []byte
			kinds := slot.typ.WasmKinds()
			if len(kinds) > 0 {
				b = append(b, wasmmod.OpLocalGet)
				b = append(b, wasmmod.EncodeU32(slot.idx)...)
			}
			if len(kinds) > 1 {
				b = append(b, wasmmod.OpLocalGet)
				b = append(b, wasmmod.EncodeU32(slot.idx2)...)
			}
			return b, slot.typ, nil
		}
		// Not a local or parameter — fall back to a module global
		// (ir.Var's own doc comment covers "a module global" alongside
		// locals/parameters as valid origins).
		if gslot, ok := c.globals[e.Name]; ok {
			var b []byte
			kinds := gslot.typ.WasmKinds()
			if len(kinds) > 0 {
				b = append(b, wasmmod.OpGlobalGet)
				b = append(b, wasmmod.EncodeU32(gslot.idx)...)
			}
			if len(kinds) > 1 {
				b = append(b, wasmmod.OpGlobalGet)
				b = append(b, wasmmod.EncodeU32(gslot.idx2)...)
			}
			return b, gslot.typ, nil
		}
		return nil, nil, errs.NewUnknownVariable(e.P, e.Name)

	case ir.BinOp:
		return c.emitBinOp(fc, e)

	case ir.UnaryOp:
		return c.emitUnaryOp(fc, e)

	case ir.BoolOp:
		return c.emitBoolOp(fc, e)

	case ir.Compare:
		return c.emitCompare(fc, e)

	case ir.Call:
		return c.emitCall(fc, e)

	case ir.MethodCall:
		return c.emitMethodCall(fc, e)

	case ir.Attribute:
		return c.emitAttribute(fc, e)

	case ir.Index:
		return c.emitIndex(fc, e)

	case ir.Slice:
		return c.emitSlice(fc, e)

	case ir.ListLiteral:
		return c.emitListLiteral(fc, e)

	case ir.DictLiteral:
		return c.emitDictLiteral(fc, e)

	case ir.TupleLiteral:
		return c.emitTupleLiteral(fc, e)

	case ir.RangeCall:
		return c.emitRangeCall(fc, e)

	case ir.FString:
		return c.emitFString(fc, e)

	case ir.FormatPercent:
		return c.emitFormatPercent(fc, e)

	case ir.ListComp:
		return c.emitListComp(fc, e)

	case ir.Lambda:
		// No closure materialization: every Lambda fails here, whether
		// or not its CapturedVars is empty. irgen inlines nothing; a
		// lambda called at its definition site is already rejected
		// there as an indirect call.
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "lambda-with-capture")

	case ir.Yield:
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "yield")

	case ir.Await:
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "await")
	}
	return nil, nil, errs.NewUnsupportedConstruct(e.Pos(), "expression")
}

func (c *Compiler) emitBinOp(fc *funcContext, e ir.BinOp) ([]byte, types.Type, error) {
	lb, lt, err := c.emitExpr(fc, e.L)
	if err != nil {
		return nil, nil, err
	}
	rb, rt, err := c.emitExpr(fc, e.R)
	if err != nil {
		return nil, nil, err
	}

	isFloat := func(t types.Type) bool { return types.Equal(t, types.Float) }

	// String concatenation.
	if types.Equal(lt, types.Str) && types.Equal(rt, types.Str) && e.Op == "+" {
		var b []byte
		b = append(b, lb...)
		b = append(b, rb...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.strConcat())...)
		return b, types.Str, nil
	}

	// `/` always promotes to f64.div regardless of operand types.
	if e.Op == "/" {
		var b []byte
		b = append(b, lb...)
		if !isFloat(lt) {
			b = append(b, wasmmod.OpF64ConvertI32S)
		}
		b = append(b, rb...)
		if !isFloat(rt) {
			b = append(b, wasmmod.OpF64ConvertI32S)
		}
		b = append(b, wasmmod.OpF64Div)
		return b, types.Float, nil
	}

	// Integer `//`/`%` need a software zero-check: i32.div_s/rem_s trap
	// natively on a zero divisor, which would abort the whole module
	// instead of setting exc_flag for `except ZeroDivisionError` to
	// catch.
	if !isFloat(lt) && !isFloat(rt) && (e.Op == "//" || e.Op == "%") {
		return c.emitIntDivOrMod(fc, e.Op, lb, rb)
	}

	useFloat := isFloat(lt) || isFloat(rt)
	var b []byte
	b = append(b, lb...)
	if useFloat && !isFloat(lt) {
		b = append(b, wasmmod.OpF64ConvertI32S)
	}
	b = append(b, rb...)
	if useFloat && !isFloat(rt) {
		b = append(b, wasmmod.OpF64ConvertI32S)
	}

	if useFloat {
		switch e.Op {
		case "+":
			b = append(b, wasmmod.OpF64Add)
		case "-":
			b = append(b, wasmmod.OpF64Sub)
		case "*":
			b = append(b, wasmmod.OpF64Mul)
		default:
			return nil, nil, errs.NewUnsupportedOperation(e.P, e.Op, lt.Signature(), rt.Signature())
		}
		return b, types.Float, nil
	}

	switch e.Op {
	case "+":
		b = append(b, wasmmod.OpI32Add)
	case "-":
		b = append(b, wasmmod.OpI32Sub)
	case "*":
		b = append(b, wasmmod.OpI32Mul)
	case "**":
		return c.emitIntPow(fc, e, lb, rb)
	default:
		return nil, nil, errs.NewUnsupportedOperation(e.P, e.Op, lt.Signature(), rt.Signature())
	}
	return b, types.Int, nil
}

// emitIntDivOrMod guards `//`/`%` against a zero divisor: the divisor
// is evaluated once into a scratch local, tested, and on zero raises
// ZeroDivisionError and yields 0 as the
// expression's zero-typed result instead of letting the WASM
// instruction trap. The enclosing statement's own emitExcCheck (already
// emitted after every statement) is what actually routes control to a
// handler; this only makes sure exc_flag gets set in the first place.
func (c *Compiler) emitIntDivOrMod(fc *funcContext, op string, lb, rb []byte) ([]byte, types.Type, error) {
	rIdx := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, rb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(rIdx)...)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(rIdx)...)
	b = append(b, wasmmod.OpI32Eqz)
	b = append(b, wasmmod.OpIf, byte(wasmmod.ValI32))
	b = append(b, c.emitRaiseTag(fc, 1)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpElse)
	b = append(b, lb...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(rIdx)...)
	if op == "//" {
		b = append(b, wasmmod.OpI32DivS)
	} else {
		b = append(b, wasmmod.OpI32RemS)
	}
	b = append(b, wasmmod.OpEnd)
	return b, types.Int, nil
}

// emitIntPow folds `**` to a constant when both base and exponent are
// integer literals (exponent >= 0), and otherwise expands it into a
// multiplication loop.
func (c *Compiler) emitIntPow(fc *funcContext, e ir.BinOp, base, exp []byte) ([]byte, types.Type, error) {
	if lit, ok := e.R.(ir.IntConst); ok && lit.Value >= 0 {
		result := int64(1)
		for i := int64(0); i < lit.Value; i++ {
			result *= mustIntConst(e.L)
		}
		if _, baseIsConst := e.L.(ir.IntConst); baseIsConst {
			return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(int32(result))...), types.Int, nil
		}
	}
	accIdx := fc.newScratchLocal(types.KindI32)
	iIdx := fc.newScratchLocal(types.KindI32)
	var b []byte
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(iIdx)...)

	blockDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(iIdx)...)
	b = append(b, exp...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(blockDepth))...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accIdx)...)
	b = append(b, base...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(accIdx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(iIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(iIdx)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(accIdx)...)
	return b, types.Int, nil
}

func mustIntConst(e ir.Expr) int64 {
	if c, ok := e.(ir.IntConst); ok {
		return c.Value
	}
	return 0
}

func (c *Compiler) emitUnaryOp(fc *funcContext, e ir.UnaryOp) ([]byte, types.Type, error) {
	vb, vt, err := c.emitExpr(fc, e.V)
	if err != nil {
		return nil, nil, err
	}
	var b []byte
	b = append(b, vb...)
	switch e.Op {
	case "-":
		if types.Equal(vt, types.Float) {
			b = append(b, wasmmod.OpF64Neg)
			return b, types.Float, nil
		}
		var out []byte
		out = append(out, wasmmod.OpI32Const)
		out = append(out, wasmmod.EncodeS32(0)...)
		out = append(out, b...)
		out = append(out, wasmmod.OpI32Sub)
		return out, types.Int, nil
	case "not":
		b = append(b, wasmmod.OpI32Eqz)
		return b, types.Bool, nil
	default:
		return nil, nil, errs.NewUnsupportedOperation(e.P, e.Op, vt.Signature(), "")
	}
}

// emitBoolOp emits a short-circuiting `and`/`or` chain: each
// step coerces its left-hand value to bool and an `if/else` either
// returns it unevaluated-further or evaluates the next operand.
func (c *Compiler) emitBoolOp(fc *funcContext, e ir.BoolOp) ([]byte, types.Type, error) {
	if len(e.Operands) == 0 {
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(0)...), types.Bool, nil
	}
	resultIdx := fc.newScratchLocal(types.KindI32)
	b, _, err := c.emitExpr(fc, e.Operands[0])
	if err != nil {
		return nil, nil, err
	}
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(resultIdx)...)

	for _, operand := range e.Operands[1:] {
		cond, err := c.emitTruthy(fc, resultIdx, nil)
		if err != nil {
			return nil, nil, err
		}
		if e.Op == "or" {
			cond = append(cond, wasmmod.OpI32Eqz)
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(resultIdx)...)
		b = append(b, wasmmod.OpDrop)
		b = append(b, cond...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		ob, _, err := c.emitExpr(fc, operand)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, ob...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(resultIdx)...)
		b = append(b, wasmmod.OpEnd)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(resultIdx)...)
	return b, types.Bool, nil
}

// emitTruthy produces the i32 truth value of local idx, which must
// already hold an i32-representable value: it tests idx != 0. The third
// argument is ignored; a list/dict/tuple pointer is tested as nonzero,
// not by its length cell, and str values are not handled here.
func (c *Compiler) emitTruthy(fc *funcContext, idx uint32, _ []byte) ([]byte, error) {
	var b []byte
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32Ne)
	return b, nil
}

func (c *Compiler) emitCompare(fc *funcContext, e ir.Compare) ([]byte, types.Type, error) {
	lb, lt, err := c.emitExpr(fc, e.L)
	if err != nil {
		return nil, nil, err
	}
	rb, rt, err := c.emitExpr(fc, e.R)
	if err != nil {
		return nil, nil, err
	}

	if types.Equal(lt, types.Str) && types.Equal(rt, types.Str) {
		var b []byte
		b = append(b, lb...)
		b = append(b, rb...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.strEq())...)
		if e.Op == "!=" {
			b = append(b, wasmmod.OpI32Eqz)
		} else if e.Op != "==" {
			return nil, nil, errs.NewUnsupportedOperation(e.P, e.Op, "str", "str")
		}
		return b, types.Bool, nil
	}

	useFloat := types.Equal(lt, types.Float) || types.Equal(rt, types.Float)
	var b []byte
	b = append(b, lb...)
	if useFloat && !types.Equal(lt, types.Float) {
		b = append(b, wasmmod.OpF64ConvertI32S)
	}
	b = append(b, rb...)
	if useFloat && !types.Equal(rt, types.Float) {
		b = append(b, wasmmod.OpF64ConvertI32S)
	}

	if useFloat {
		switch e.Op {
		case "==":
			b = append(b, wasmmod.OpF64Eq)
		case "!=":
			b = append(b, wasmmod.OpF64Ne)
		case "<":
			b = append(b, wasmmod.OpF64Lt)
		case "<=":
			b = append(b, wasmmod.OpF64Le)
		case ">":
			b = append(b, wasmmod.OpF64Gt)
		case ">=":
			b = append(b, wasmmod.OpF64Ge)
		}
		return b, types.Bool, nil
	}

	switch e.Op {
	case "==":
		b = append(b, wasmmod.OpI32Eq)
	case "!=":
		b = append(b, wasmmod.OpI32Ne)
	case "<":
		b = append(b, wasmmod.OpI32LtS)
	case "<=":
		b = append(b, wasmmod.OpI32LeS)
	case ">":
		b = append(b, wasmmod.OpI32GtS)
	case ">=":
		b = append(b, wasmmod.OpI32GeS)
	default:
		return nil, nil, errs.NewUnsupportedOperation(e.P, e.Op, lt.Signature(), rt.Signature())
	}
	return b, types.Bool, nil
}

func (c *Compiler) emitAttribute(fc *funcContext, e ir.Attribute) ([]byte, types.Type, error) {
	rb, _, err := c.emitExpr(fc, e.Receiver)
	if err != nil {
		return nil, nil, err
	}
	info, ok := c.classes[e.OwnerClass]
	if !ok {
		return nil, nil, errs.NewUnknownAttribute(e.P, e.OwnerClass, e.Name)
	}
	off, ok := info.fieldOffset(e.Name)
	if !ok {
		return nil, nil, errs.NewUnknownAttribute(e.P, e.OwnerClass, e.Name)
	}
	var b []byte
	b = append(b, rb...)
	if off != 0 {
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(off)...)
		b = append(b, wasmmod.OpI32Add)
	}
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	return b, e.Result, nil
}

func (c *Compiler) emitIndex(fc *funcContext, e ir.Index) ([]byte, types.Type, error) {
	cb, ct, err := c.emitExpr(fc, e.Container)
	if err != nil {
		return nil, nil, err
	}
	kb, _, err := c.emitExpr(fc, e.Key)
	if err != nil {
		return nil, nil, err
	}

	if dict, ok := ct.(types.DictType); ok {
		return c.emitDictLookup(fc, cb, kb, dict)
	}

	// List/Tuple cells are single i32 words; Float (f64) and Str
	// ((offset,length) pairs) cannot be represented in one cell.
	if kinds := e.Result.WasmKinds(); len(kinds) != 1 || kinds[0] != types.KindI32 {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
	}

	// List/Tuple: cell = base + 4 + 4*key.
	var b []byte
	b = append(b, cb...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, kb...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	return b, e.Result, nil
}

// emitDictLookup is a linear scan over key/value pairs, raising KeyError
// (tag 4) when the key is absent.
func (c *Compiler) emitDictLookup(fc *funcContext, containerBytes, keyBytes []byte, dict types.DictType) ([]byte, types.Type, error) {
	length := fc.newScratchLocal(types.KindI32)
	base := fc.newScratchLocal(types.KindI32)
	key := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)
	found := fc.newScratchLocal(types.KindI32)
	result := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, containerBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(length)...)
	b = append(b, keyBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(key)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(found)...)

	outerDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(length)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)
	// entry offset = base + 4 + 8*i ; key cell at +0, value cell at +4
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(8)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(key)...)
	b = append(b, wasmmod.OpI32Eq)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(8)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(8)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(result)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(found)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	// found == 0 -> KeyError (tag 4): set exc_flag/exc_type_tag and
	// branch to the nearest handler, consistent with raise
	// lowering.
	raiseBytes := c.emitRaiseTag(fc, 4)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(found)...)
	b = append(b, wasmmod.OpI32Eqz)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, raiseBytes...)
	b = append(b, wasmmod.OpEnd)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(result)...)
	return b, dict.Value, nil
}

func (c *Compiler) emitSlice(fc *funcContext, e ir.Slice) ([]byte, types.Type, error) {
	cb, ct, err := c.emitExpr(fc, e.Container)
	if err != nil {
		return nil, nil, err
	}
	step, err := resolveLiteralStep(e.Step, e.P)
	if err != nil {
		return nil, nil, err
	}

	if types.Equal(ct, types.Str) {
		return c.emitStrSlice(fc, cb, e, step)
	}
	return c.emitListSlice(fc, cb, e, step)
}

// resolveLiteralStep requires Step, when present, to be a compile-time
// integer constant: the copy loops below bake the stride straight into
// an i32.mul operand and pick the start/stop defaults by its sign before
// any code is emitted, so a dynamic step would need those decisions
// pushed to runtime for no benefit a source-level loop doesn't already
// give the caller. A zero step is rejected outright at compile time
// (Python itself raises ValueError on it); no runtime ValueError is
// emitted for it.
func resolveLiteralStep(step ir.Expr, pos token.Position) (int64, error) {
	if step == nil {
		return 1, nil
	}
	lit, ok := step.(ir.IntConst)
	if !ok {
		return 0, errs.NewUnsupportedConstruct(pos, "slice-with-dynamic-step")
	}
	if lit.Value == 0 {
		return 0, errs.NewUnsupportedConstruct(pos, "slice-step-zero")
	}
	return lit.Value, nil
}

// sliceDefaultStart and sliceDefaultStop push the bound Python applies
// when Start/Stop is omitted: 0/length walking forward, length-1/-1
// walking backward (-1 meaning "one past index 0 on the low side", so a
// loop comparing against it with a negative stride still includes index
// 0).
func sliceDefaultStart(step int64, lengthIdx uint32) []byte {
	if step > 0 {
		return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(0)...)
	}
	var b []byte
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(lengthIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Sub)
	return b
}

func sliceDefaultStop(step int64, lengthIdx uint32) []byte {
	if step > 0 {
		return append([]byte{wasmmod.OpLocalGet}, wasmmod.EncodeU32(lengthIdx)...)
	}
	return append([]byte{wasmmod.OpI32Const}, wasmmod.EncodeS32(-1)...)
}

// emitSliceCount computes how many elements a normalized (start, stop,
// step) walk visits — Python's ceil((stop-start)/step) rule, clamped to
// zero once start is already past stop in the step's own direction.
// step's sign and magnitude are both compile-time constants, so the
// division below is always a nonnegative-by-positive i32.div_s, which
// truncates the same as floor.
func (c *Compiler) emitSliceCount(fc *funcContext, step int64, startIdx, stopIdx uint32) []byte {
	absStep := step
	if absStep < 0 {
		absStep = -absStep
	}
	raw := fc.newScratchLocal(types.KindI32)

	var b []byte
	if step > 0 {
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(stopIdx)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(startIdx)...)
	} else {
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(startIdx)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(stopIdx)...)
	}
	b = append(b, wasmmod.OpI32Sub)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(raw)...)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(raw)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32LtS)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(raw)...)
	b = append(b, wasmmod.OpEnd)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(raw)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(absStep-1))...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(absStep))...)
	b = append(b, wasmmod.OpI32DivS)
	return b
}

func (c *Compiler) emitStrSlice(fc *funcContext, containerBytes []byte, e ir.Slice, step int64) ([]byte, types.Type, error) {
	off := fc.newScratchLocal(types.KindI32)
	length := fc.newScratchLocal(types.KindI32)
	start := fc.newScratchLocal(types.KindI32)
	stop := fc.newScratchLocal(types.KindI32)
	count := fc.newScratchLocal(types.KindI32)
	dst := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, containerBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(length)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(off)...)

	sb, err := c.emitSliceBound(fc, e.Start, length, sliceDefaultStart(step, length))
	if err != nil {
		return nil, nil, err
	}
	b = append(b, sb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(start)...)

	eb, err := c.emitSliceBound(fc, e.Stop, length, sliceDefaultStop(step, length))
	if err != nil {
		return nil, nil, err
	}
	b = append(b, eb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(stop)...)

	b = append(b, c.emitSliceCount(fc, step, start, stop)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(count)...)

	// dst = heap_alloc(count); a string has no length header, only the
	// (offset,length) pair this function itself returns.
	b = append(b, wasmmod.OpGlobalGet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpGlobalGet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpGlobalSet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(dst)...)

	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	outerDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)
	// dst[i] = src[off + start + i*step]
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(off)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(start)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(step))...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load8U)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpI32Store8)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	return b, types.Str, nil
}

func (c *Compiler) emitListSlice(fc *funcContext, containerBytes []byte, e ir.Slice, step int64) ([]byte, types.Type, error) {
	elemType := types.AnyTy
	base := fc.newScratchLocal(types.KindI32)
	length := fc.newScratchLocal(types.KindI32)
	start := fc.newScratchLocal(types.KindI32)
	stop := fc.newScratchLocal(types.KindI32)
	count := fc.newScratchLocal(types.KindI32)
	dst := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, containerBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(length)...)

	sb, err := c.emitSliceBound(fc, e.Start, length, sliceDefaultStart(step, length))
	if err != nil {
		return nil, nil, err
	}
	b = append(b, sb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(start)...)
	eb, err := c.emitSliceBound(fc, e.Stop, length, sliceDefaultStop(step, length))
	if err != nil {
		return nil, nil, err
	}
	b = append(b, eb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(stop)...)

	b = append(b, c.emitSliceCount(fc, step, start, stop)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(count)...)

	// dst = heap_alloc(4 + 4*count)
	b = append(b, wasmmod.OpGlobalGet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpGlobalGet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpGlobalSet)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(dst)...)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	outerDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)
	// dst[4+4*i] = src[4+4*(start+i*step)]
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(start)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(step))...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	return b, types.ListType{Elem: elemType}, nil
}

// emitSliceBound normalizes a possibly-negative slice bound against
// length (idx < 0 becomes idx+length, Python's own rule), or pushes
// defaultBytes verbatim when bound is nil.
func (c *Compiler) emitSliceBound(fc *funcContext, bound ir.Expr, lengthIdx uint32, defaultBytes []byte) ([]byte, error) {
	if bound == nil {
		return defaultBytes, nil
	}
	bb, _, err := c.emitExpr(fc, bound)
	if err != nil {
		return nil, err
	}
	idx := fc.newScratchLocal(types.KindI32)
	var b []byte
	b = append(b, bb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32LtS)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(lengthIdx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	return b, nil
}
