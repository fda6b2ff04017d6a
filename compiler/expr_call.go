package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/token"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// emitCall resolves a plain call against, in order: module-level
// functions, class constructors, and the fixed builtin table.
func (c *Compiler) emitCall(fc *funcContext, e ir.Call) ([]byte, types.Type, error) {
	if idx, ok := c.funcIndex[e.Callee]; ok {
		return c.emitDirectCall(fc, idx, e)
	}
	if info, ok := c.classes[e.Callee]; ok {
		return c.emitClassConstruct(fc, info, e)
	}
	switch e.Callee {
	case "len":
		return c.emitLen(fc, e.Args, e.P)
	case "print":
		return c.emitPrint(fc, e.Args)
	case "min":
		return c.emitMinMax(fc, e.Args, true, e.P)
	case "max":
		return c.emitMinMax(fc, e.Args, false, e.P)
	case "sum":
		return c.emitSum(fc, e.Args, e.P)
	case "range":
		return c.emitRangeBuiltin(fc, e)
	case "int":
		return c.emitIntCast(fc, e.Args, e.P)
	case "float":
		return c.emitFloatCast(fc, e.Args, e.P)
	case "str":
		return c.emitStrCast(fc, e.Args, e.P)
	case "bool":
		return c.emitBoolCast(fc, e.Args, e.P)
	case "abs":
		return c.emitAbs(fc, e.Args, e.P)
	}
	return nil, nil, errs.NewUnknownFunction(e.P, e.Callee)
}

func (c *Compiler) emitDirectCall(fc *funcContext, idx uint32, e ir.Call) ([]byte, types.Type, error) {
	var b []byte
	for _, a := range e.Args {
		ab, _, err := c.emitExpr(fc, a)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, ab...)
	}
	b = append(b, wasmmod.OpCall)
	b = append(b, wasmmod.EncodeU32(idx)...)
	return b, e.Result, nil
}

// emitClassConstruct bump-allocates an instance (`[field_0][field_1]…`,
// no header) and, if the class defines one, calls its __init__
// with the fresh instance as the implicit self argument.
func (c *Compiler) emitClassConstruct(fc *funcContext, info *classInfo, e ir.Call) ([]byte, types.Type, error) {
	size := uint32(4 * len(info.fieldTypes))
	if size == 0 {
		size = 4
	}
	selfIdx := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, c.builder.Layout().HeapAllocInstructions(0, size)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(selfIdx)...)

	if info.hasInit {
		idx, ok := c.funcIndex[info.name+"::__init__"]
		if !ok {
			return nil, nil, errs.NewUnknownFunction(e.P, info.name+"::__init__")
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(selfIdx)...)
		for _, a := range e.Args {
			ab, _, err := c.emitExpr(fc, a)
			if err != nil {
				return nil, nil, err
			}
			b = append(b, ab...)
		}
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(idx)...)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(selfIdx)...)
	return b, types.ClassType{Name: info.name}, nil
}

// emitMethodCall special-cases list.append (no real function
// backs it) and otherwise dispatches to `OwnerClass::Name`.
func (c *Compiler) emitMethodCall(fc *funcContext, e ir.MethodCall) ([]byte, types.Type, error) {
	rb, rt, err := c.emitExpr(fc, e.Receiver)
	if err != nil {
		return nil, nil, err
	}
	if lst, ok := rt.(types.ListType); ok && e.Name == "append" {
		return c.emitListAppend(fc, rb, lst, e)
	}

	idx, ok := c.funcIndex[e.OwnerClass+"::"+e.Name]
	if !ok {
		return nil, nil, errs.NewUnknownMethod(e.P, e.OwnerClass, e.Name)
	}
	var b []byte
	b = append(b, rb...)
	for _, a := range e.Args {
		ab, _, err := c.emitExpr(fc, a)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, ab...)
	}
	b = append(b, wasmmod.OpCall)
	b = append(b, wasmmod.EncodeU32(idx)...)
	return b, e.Result, nil
}

// emitListAppend increments the list's length cell and writes the new
// value at the tail offset. This assumes the list's backing
// allocation has room past its current length — true only while
// nothing has bump-allocated in between, a known simplification of the
// append-only heap (see DESIGN.md).
func (c *Compiler) emitListAppend(fc *funcContext, receiverBytes []byte, lst types.ListType, e ir.MethodCall) ([]byte, types.Type, error) {
	if len(e.Args) != 1 {
		return nil, nil, errs.NewUnknownMethod(e.P, "list", "append")
	}
	if !containerElemOK(lst.Elem) {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
	}

	base := fc.newScratchLocal(types.KindI32)
	oldLen := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, receiverBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(oldLen)...)

	vb, vt, err := c.emitExpr(fc, e.Args[0])
	if err != nil {
		return nil, nil, err
	}
	if !containerElemOK(vt) {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(oldLen)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, vb...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(oldLen)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	return b, types.None, nil
}

// emitLen reads the length half of a str's (offset,length) pair or the
// length cell at base+0 of a list/dict/tuple; bytes have no length
// header in this layout, so len(bytes) is unsupported — interned
// bytes constants carry no runtime length.
func (c *Compiler) emitLen(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "len")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	if types.Equal(at, types.Str) {
		off := fc.newScratchLocal(types.KindI32)
		length := fc.newScratchLocal(types.KindI32)
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(length)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(off)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(length)...)
		return b, types.Int, nil
	}
	switch at.(type) {
	case types.ListType, types.DictType, types.TupleType:
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpI32Load)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		return b, types.Int, nil
	}
	return nil, nil, errs.NewUnsupportedConstruct(pos, "len-of-"+at.Signature())
}

// emitPrint pops its arguments type-aware (two cells for str, one
// otherwise) and performs no host call: this compiler has no import
// section, so `print` is an effectless consumer that always
// returns None.
func (c *Compiler) emitPrint(fc *funcContext, args []ir.Expr) ([]byte, types.Type, error) {
	var b []byte
	for _, a := range args {
		ab, at, err := c.emitExpr(fc, a)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, ab...)
		for range at.WasmKinds() {
			b = append(b, wasmmod.OpDrop)
		}
	}
	return b, types.None, nil
}

// emitMinMax folds over args with a running accumulator, comparing
// with the matching int/float comparison per pair.
func (c *Compiler) emitMinMax(fc *funcContext, args []ir.Expr, wantMin bool, pos token.Position) ([]byte, types.Type, error) {
	if len(args) == 0 {
		return nil, nil, errs.NewUnknownFunction(pos, "min/max")
	}
	first, ft, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	useFloat := types.Equal(ft, types.Float)
	for _, a := range args[1:] {
		if t := inferArgType(a); types.Equal(t, types.Float) {
			useFloat = true
		}
	}
	kind := types.KindI32
	resultType := types.Type(types.Int)
	if useFloat {
		kind = types.KindF64
		resultType = types.Float
	}
	acc := fc.newScratchLocal(kind)

	var b []byte
	b = append(b, first...)
	if useFloat && !types.Equal(ft, types.Float) {
		b = append(b, wasmmod.OpF64ConvertI32S)
	}
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(acc)...)

	for _, a := range args[1:] {
		ab, at, err := c.emitExpr(fc, a)
		if err != nil {
			return nil, nil, err
		}
		cand := fc.newScratchLocal(kind)
		b = append(b, ab...)
		if useFloat && !types.Equal(at, types.Float) {
			b = append(b, wasmmod.OpF64ConvertI32S)
		}
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(cand)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(cand)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(acc)...)
		if useFloat {
			if wantMin {
				b = append(b, wasmmod.OpF64Lt)
			} else {
				b = append(b, wasmmod.OpF64Gt)
			}
		} else {
			if wantMin {
				b = append(b, wasmmod.OpI32LtS)
			} else {
				b = append(b, wasmmod.OpI32GtS)
			}
		}
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(cand)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(acc)...)
		b = append(b, wasmmod.OpEnd)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(acc)...)
	return b, resultType, nil
}

// inferArgType is a best-effort static peek used only to decide
// min/max's int-vs-float accumulator kind before any code is emitted
// for an argument; it never drives actual emission.
func inferArgType(e ir.Expr) types.Type {
	switch e := e.(type) {
	case ir.FloatConst:
		return types.Float
	case ir.BinOp:
		return e.Result
	case ir.Var:
		return e.Type
	}
	return types.Unknown
}

// emitSum loops over an iterable's length, adding each element onto an
// accumulator seeded from start.
func (c *Compiler) emitSum(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, nil, errs.NewUnknownFunction(pos, "sum")
	}
	ib, it, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	lst, ok := it.(types.ListType)
	if !ok {
		return nil, nil, errs.NewUnsupportedIteration(pos, it.Signature())
	}
	useFloat := types.Equal(lst.Elem, types.Float)
	kind := types.KindI32
	resultType := types.Type(types.Int)
	if useFloat {
		kind = types.KindF64
		resultType = types.Float
	}

	base := fc.newScratchLocal(types.KindI32)
	length := fc.newScratchLocal(types.KindI32)
	acc := fc.newScratchLocal(kind)
	i := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, ib...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(length)...)

	if len(args) == 2 {
		sb, st, err := c.emitExpr(fc, args[1])
		if err != nil {
			return nil, nil, err
		}
		b = append(b, sb...)
		if useFloat && !types.Equal(st, types.Float) {
			b = append(b, wasmmod.OpF64ConvertI32S)
		}
	} else if useFloat {
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(0)...)
	} else {
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
	}
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(acc)...)

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
	b = append(b, wasmmod.EncodeU32(length)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(acc)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	if useFloat {
		b = append(b, wasmmod.OpF64ConvertI32S)
		b = append(b, wasmmod.OpF64Add)
	} else {
		b = append(b, wasmmod.OpI32Add)
	}
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(acc)...)

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
	b = append(b, wasmmod.EncodeU32(acc)...)
	return b, resultType, nil
}

// emitRangeBuiltin normalizes a plain `range(...)` Call to the same
// three-argument shape RangeCall already carries, so a converter that
// emits range via Call still reaches emitRangeCall.
func (c *Compiler) emitRangeBuiltin(fc *funcContext, e ir.Call) ([]byte, types.Type, error) {
	one := ir.IntConst{Value: 1, P: e.P}
	zero := ir.IntConst{Value: 0, P: e.P}
	var rc ir.RangeCall
	switch len(e.Args) {
	case 1:
		rc = ir.RangeCall{Start: zero, Stop: e.Args[0], Step: one, P: e.P}
	case 2:
		rc = ir.RangeCall{Start: e.Args[0], Stop: e.Args[1], Step: one, P: e.P}
	case 3:
		rc = ir.RangeCall{Start: e.Args[0], Stop: e.Args[1], Step: e.Args[2], P: e.P}
	default:
		return nil, nil, errs.NewUnknownFunction(e.P, "range")
	}
	return c.emitRangeCall(fc, rc)
}

func (c *Compiler) emitIntCast(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "int")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	var b []byte
	b = append(b, ab...)
	switch {
	case types.Equal(at, types.Float):
		b = append(b, wasmmod.OpI32TruncF64S)
	case types.Equal(at, types.Int), types.Equal(at, types.Bool):
		// Already an i32 in the int-compatible range.
	default:
		return nil, nil, errs.NewUnsupportedConstruct(pos, "int-from-"+at.Signature())
	}
	return b, types.Int, nil
}

func (c *Compiler) emitFloatCast(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "float")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	var b []byte
	b = append(b, ab...)
	switch {
	case types.Equal(at, types.Float):
	case types.Equal(at, types.Int), types.Equal(at, types.Bool):
		b = append(b, wasmmod.OpF64ConvertI32S)
	default:
		return nil, nil, errs.NewUnsupportedConstruct(pos, "float-from-"+at.Signature())
	}
	return b, types.Float, nil
}

// hasLengthHeader reports whether t's heap layout begins with a
// length cell at offset 0 (list/dict/tuple do; range and class do
// not).
func hasLengthHeader(t types.Type) bool {
	switch t.(type) {
	case types.ListType, types.DictType, types.TupleType:
		return true
	}
	return false
}

// emitBoolCast implements the truthiness table: numeric zero/empty
// string/empty collection are falsy, everything else truthy.
func (c *Compiler) emitBoolCast(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "bool")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}

	if types.Equal(at, types.Str) {
		off := fc.newScratchLocal(types.KindI32)
		length := fc.newScratchLocal(types.KindI32)
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(length)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(off)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(length)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpI32Ne)
		return b, types.Bool, nil
	}

	if types.Equal(at, types.Float) {
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(0)...)
		b = append(b, wasmmod.OpF64Ne)
		return b, types.Bool, nil
	}

	if hasLengthHeader(at) {
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpI32Load)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(0)...)
		b = append(b, wasmmod.OpI32Ne)
		return b, types.Bool, nil
	}

	// Int, Bool, and any remaining heap-pointer type: nonzero test.
	var b []byte
	b = append(b, ab...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32Ne)
	return b, types.Bool, nil
}

func (c *Compiler) emitAbs(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "abs")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}

	if types.Equal(at, types.Float) {
		idx := fc.newScratchLocal(types.KindF64)
		var b []byte
		b = append(b, ab...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(idx)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(idx)...)
		b = append(b, wasmmod.OpF64Const)
		b = append(b, wasmmod.EncodeF64(0)...)
		b = append(b, wasmmod.OpF64Lt)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(idx)...)
		b = append(b, wasmmod.OpF64Neg)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(idx)...)
		b = append(b, wasmmod.OpEnd)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(idx)...)
		return b, types.Float, nil
	}

	idx := fc.newScratchLocal(types.KindI32)
	var b []byte
	b = append(b, ab...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32LtS)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpI32Sub)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(idx)...)
	return b, types.Int, nil
}

// emitBoolToStr selects between interned "True"/"False" constants
// at runtime.
func (c *Compiler) emitBoolToStr(fc *funcContext, boolBytes []byte) ([]byte, types.Type, error) {
	trueOff, err := c.builder.Layout().InternString("True")
	if err != nil {
		return nil, nil, err
	}
	falseOff, err := c.builder.Layout().InternString("False")
	if err != nil {
		return nil, nil, err
	}
	offIdx := fc.newScratchLocal(types.KindI32)
	lenIdx := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, boolBytes...)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(trueOff))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(offIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(lenIdx)...)
	b = append(b, wasmmod.OpElse)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(falseOff))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(offIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(5)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(lenIdx)...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(offIdx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(lenIdx)...)
	return b, types.Str, nil
}

// asStrBytes converts an already-emitted value of type t to its str
// encoding (offset,length), shared by str(), f-strings, and %-format.
func (c *Compiler) asStrBytes(fc *funcContext, valueBytes []byte, t types.Type, pos token.Position) ([]byte, error) {
	switch {
	case types.Equal(t, types.Str):
		return valueBytes, nil
	case types.Equal(t, types.Int):
		var b []byte
		b = append(b, valueBytes...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.intToStr())...)
		return b, nil
	case types.Equal(t, types.Float):
		var b []byte
		b = append(b, valueBytes...)
		b = append(b, wasmmod.OpCall)
		b = append(b, wasmmod.EncodeU32(c.rt.floatToStr())...)
		return b, nil
	case types.Equal(t, types.Bool):
		b, _, err := c.emitBoolToStr(fc, valueBytes)
		return b, err
	}
	return nil, errs.NewUnsupportedConstruct(pos, "str-from-"+t.Signature())
}

func (c *Compiler) emitStrCast(fc *funcContext, args []ir.Expr, pos token.Position) ([]byte, types.Type, error) {
	if len(args) != 1 {
		return nil, nil, errs.NewUnknownFunction(pos, "str")
	}
	ab, at, err := c.emitExpr(fc, args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := c.asStrBytes(fc, ab, at, pos)
	if err != nil {
		return nil, nil, err
	}
	return b, types.Str, nil
}
