package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// emitRaiseTag sets the exception-state locals without altering
// control flow; the statement that contains the raising expression is
// responsible for checking exc_flag immediately afterward. This lets
// an exception originate from deep inside an expression (e.g. a dict
// lookup) while keeping every intermediate instruction's stack typing
// intact — the raising site still pushes a type-appropriate value (the
// expression's own zero value, already true of every local's default)
// before its enclosing statement's check runs.
func (c *Compiler) emitRaiseTag(fc *funcContext, tag int) []byte {
	var b []byte
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(tag))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(fc.excTagIdx)...)
	return b
}

// emitExcCheck is the check-after-every-may-raise-statement pattern:
// `if exc_flag { <branch to the nearest handler dispatch> }`.
// With no active try, a WASM `br` has no safe target that also
// supplies the function's result type on the stack, so the escape is
// an explicit zero-valued `return` instead of a branch to some
// notional outermost depth.
func (c *Compiler) emitExcCheck(fc *funcContext) []byte {
	if len(fc.handlerStack) == 0 {
		var b []byte
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		b = append(b, c.emitZeroValue(fc.retType)...)
		b = append(b, wasmmod.OpReturn)
		b = append(b, wasmmod.OpEnd)
		return b
	}
	target := fc.handlerStack[len(fc.handlerStack)-1]
	var b []byte
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(target))...)
	return b
}

func (c *Compiler) emitStmt(fc *funcContext, s ir.Stmt) ([]byte, error) {
	switch s := s.(type) {
	case ir.Assign:
		return c.emitAssign(fc, s)
	case ir.AugAssign:
		return c.emitAugAssign(fc, s)
	case ir.IndexAssign:
		return c.emitIndexAssign(fc, s)
	case ir.AttrAssign:
		return c.emitAttrAssign(fc, s)
	case ir.If:
		return c.emitIf(fc, s)
	case ir.While:
		return c.emitWhile(fc, s)
	case ir.For:
		return c.emitFor(fc, s)
	case ir.Return:
		return c.emitReturn(fc, s)
	case ir.ExprStmt:
		b, vt, err := c.emitExpr(fc, s.Value)
		if err != nil {
			return nil, err
		}
		for range vt.WasmKinds() {
			b = append(b, wasmmod.OpDrop)
		}
		b = append(b, c.emitExcCheck(fc)...)
		return b, nil
	case ir.Raise:
		return c.emitRaise(fc, s)
	case ir.Try:
		return c.emitTry(fc, s)
	case ir.With:
		return c.emitWith(fc, s)
	case ir.ImportModule:
		// No codegen effect: module-level imports resolve to nothing at
		// runtime in a single self-contained WASM module.
		return nil, nil
	case ir.Break:
		if len(fc.loopStack) == 0 {
			return nil, errs.NewUnsupportedConstruct(s.P, "break-outside-loop")
		}
		top := fc.loopStack[len(fc.loopStack)-1]
		b := []byte{wasmmod.OpBr}
		b = append(b, wasmmod.EncodeU32(fc.relDepth(top.breakDepth))...)
		return b, nil
	case ir.Continue:
		if len(fc.loopStack) == 0 {
			return nil, errs.NewUnsupportedConstruct(s.P, "continue-outside-loop")
		}
		top := fc.loopStack[len(fc.loopStack)-1]
		b := []byte{wasmmod.OpBr}
		b = append(b, wasmmod.EncodeU32(fc.relDepth(top.continueDepth))...)
		return b, nil
	case ir.Pass:
		return nil, nil
	}
	return nil, errs.NewUnsupportedConstruct(s.Pos(), "statement")
}

func (c *Compiler) emitAssign(fc *funcContext, s ir.Assign) ([]byte, error) {
	vb, vt, err := c.emitExpr(fc, s.Value)
	if err != nil {
		return nil, err
	}
	slot := fc.declareLocal(s.Target, vt)
	var b []byte
	b = append(b, vb...)
	kinds := vt.WasmKinds()
	if len(kinds) > 1 {
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(slot.idx2)...)
	}
	if len(kinds) > 0 {
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(slot.idx)...)
	}
	b = append(b, c.emitExcCheck(fc)...)
	return b, nil
}

func (c *Compiler) emitAugAssign(fc *funcContext, s ir.AugAssign) ([]byte, error) {
	slot, ok := fc.resolve(s.Target)
	if !ok {
		return nil, errs.NewUnknownVariable(s.P, s.Target)
	}
	synthetic := ir.BinOp{
		Op: s.Op,
		L:  ir.Var{Name: s.Target, Type: slot.typ, P: s.P},
		R:  s.Value,
		P:  s.P,
	}
	vb, vt, err := c.emitBinOp(fc, synthetic)
	if err != nil {
		return nil, err
	}
	newSlot := fc.declareLocal(s.Target, vt)
	var b []byte
	b = append(b, vb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(newSlot.idx)...)
	b = append(b, c.emitExcCheck(fc)...)
	return b, nil
}

func (c *Compiler) emitIndexAssign(fc *funcContext, s ir.IndexAssign) ([]byte, error) {
	cb, ct, err := c.emitExpr(fc, s.Container)
	if err != nil {
		return nil, err
	}
	kb, _, err := c.emitExpr(fc, s.Key)
	if err != nil {
		return nil, err
	}
	vb, _, err := c.emitExpr(fc, s.Value)
	if err != nil {
		return nil, err
	}

	if _, ok := ct.(types.DictType); ok {
		return c.emitDictInsert(fc, cb, kb, vb)
	}

	var b []byte
	// addr = container + 4 + 4*key
	b = append(b, cb...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, kb...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Mul)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, vb...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	return b, nil
}

// emitDictInsert scans for an existing key to overwrite; when absent
// it appends a new (key, value) pair and bumps the header's length
// cell. Growth beyond the bytes InternString/AllocStatic reserved
// ahead of this dict's own bump allocation works only because dicts,
// like lists, are themselves heap-resident and the heap only ever
// grows forward — an existing dict's trailing cells are always free
// until the next unrelated allocation claims them, so this compiler
// requires dict literals to be allocated with their final capacity
// already reserved (dict literal lowering pre-sizes storage).
func (c *Compiler) emitDictInsert(fc *funcContext, containerBytes, keyBytes, valueBytes []byte) ([]byte, error) {
	base := fc.newScratchLocal(types.KindI32)
	length := fc.newScratchLocal(types.KindI32)
	key := fc.newScratchLocal(types.KindI32)
	val := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)
	found := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, containerBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, keyBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(key)...)
	b = append(b, valueBytes...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(val)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(length)...)
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
	entryAddr := func() []byte {
		var e []byte
		e = append(e, wasmmod.OpLocalGet)
		e = append(e, wasmmod.EncodeU32(base)...)
		e = append(e, wasmmod.OpI32Const)
		e = append(e, wasmmod.EncodeS32(4)...)
		e = append(e, wasmmod.OpI32Add)
		e = append(e, wasmmod.OpLocalGet)
		e = append(e, wasmmod.EncodeU32(i)...)
		e = append(e, wasmmod.OpI32Const)
		e = append(e, wasmmod.EncodeS32(8)...)
		e = append(e, wasmmod.OpI32Mul)
		e = append(e, wasmmod.OpI32Add)
		return e
	}
	b = append(b, entryAddr()...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(key)...)
	b = append(b, wasmmod.OpI32Eq)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, entryAddr()...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(val)...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
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

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(found)...)
	b = append(b, wasmmod.OpI32Eqz)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, entryAddr()...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(key)...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, entryAddr()...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(4)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(val)...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(length)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpEnd)
	return b, nil
}

func (c *Compiler) emitAttrAssign(fc *funcContext, s ir.AttrAssign) ([]byte, error) {
	ob, _, err := c.emitExpr(fc, s.Object)
	if err != nil {
		return nil, err
	}
	vb, _, err := c.emitExpr(fc, s.Value)
	if err != nil {
		return nil, err
	}
	info, ok := c.classes[s.OwnerClass]
	if !ok {
		return nil, errs.NewUnknownAttribute(s.P, s.OwnerClass, s.Name)
	}
	off, ok := info.fieldOffset(s.Name)
	if !ok {
		return nil, errs.NewUnknownAttribute(s.P, s.OwnerClass, s.Name)
	}
	var b []byte
	b = append(b, ob...)
	if off != 0 {
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(off)...)
		b = append(b, wasmmod.OpI32Add)
	}
	b = append(b, vb...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	return b, nil
}

func (c *Compiler) emitIf(fc *funcContext, s ir.If) ([]byte, error) {
	cb, _, err := c.emitExpr(fc, s.Cond)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = append(b, cb...)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	fc.enter()
	for _, stmt := range s.Then {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	fc.leave()
	if len(s.Else) > 0 {
		b = append(b, wasmmod.OpElse)
		fc.enter()
		for _, stmt := range s.Else {
			sb, err := c.emitStmt(fc, stmt)
			if err != nil {
				return nil, err
			}
			b = append(b, sb...)
		}
		fc.leave()
	}
	b = append(b, wasmmod.OpEnd)
	return b, nil
}

func (c *Compiler) emitWhile(fc *funcContext, s ir.While) ([]byte, error) {
	var b []byte
	outerDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)

	cb, _, err := c.emitExpr(fc, s.Cond)
	if err != nil {
		return nil, err
	}
	b = append(b, cb...)
	b = append(b, wasmmod.OpI32Eqz)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)

	fc.loopStack = append(fc.loopStack, loopLabels{breakDepth: outerDepth, continueDepth: loopDepth})
	for _, stmt := range s.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	fc.loopStack = fc.loopStack[:len(fc.loopStack)-1]

	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	return b, nil
}

// emitFor lowers one of three for-loop strategies. IterRange walks a
// Range object's (start, stop, step) triple with a counter local.
// IterSequence walks a list/str/bytes by index against its length
// cell, loading each element through the same addressing emitIndex
// uses. Anything else was already rejected during lowering (IterUnknown
// never reaches here).
func (c *Compiler) emitFor(fc *funcContext, s ir.For) ([]byte, error) {
	switch s.IterKind {
	case ir.IterRange:
		return c.emitForRange(fc, s)
	case ir.IterSequence:
		return c.emitForSequence(fc, s)
	default:
		return nil, errs.NewUnsupportedIteration(s.P, "unknown")
	}
}

func (c *Compiler) emitForRange(fc *funcContext, s ir.For) ([]byte, error) {
	rb, _, err := c.emitExpr(fc, s.Iterable)
	if err != nil {
		return nil, err
	}
	rangePtr := fc.newScratchLocal(types.KindI32)
	start := fc.newScratchLocal(types.KindI32)
	stop := fc.newScratchLocal(types.KindI32)
	step := fc.newScratchLocal(types.KindI32)
	cont := fc.newScratchLocal(types.KindI32)
	slot := fc.declareLocal(s.Var, types.Int)

	var b []byte
	b = append(b, rb...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(rangePtr)...)
	loadCell := func(offset int32, idx uint32) []byte {
		var e []byte
		e = append(e, wasmmod.OpLocalGet)
		e = append(e, wasmmod.EncodeU32(rangePtr)...)
		e = append(e, wasmmod.OpI32Load)
		e = append(e, wasmmod.EncodeU32(0)...)
		e = append(e, wasmmod.EncodeU32(uint32(offset))...)
		e = append(e, wasmmod.OpLocalSet)
		e = append(e, wasmmod.EncodeU32(idx)...)
		return e
	}
	b = append(b, loadCell(0, start)...)
	b = append(b, loadCell(4, stop)...)
	b = append(b, loadCell(8, step)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(start)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(slot.idx)...)

	outerDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	// cont = step > 0 ? (cur < stop) : (cur > stop); exit the loop once
	// the range has been exhausted in whichever direction step walks.
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(step)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpI32GtS)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(slot.idx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(stop)...)
	b = append(b, wasmmod.OpI32LtS)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(cont)...)
	b = append(b, wasmmod.OpElse)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(slot.idx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(stop)...)
	b = append(b, wasmmod.OpI32GtS)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(cont)...)
	b = append(b, wasmmod.OpEnd)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(cont)...)
	b = append(b, wasmmod.OpI32Eqz)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth))...)

	fc.loopStack = append(fc.loopStack, loopLabels{breakDepth: outerDepth, continueDepth: loopDepth})
	for _, stmt := range s.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	fc.loopStack = fc.loopStack[:len(fc.loopStack)-1]

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(slot.idx)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(step)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(slot.idx)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	return b, nil
}

func (c *Compiler) emitForSequence(fc *funcContext, s ir.For) ([]byte, error) {
	cb, ct, err := c.emitExpr(fc, s.Iterable)
	if err != nil {
		return nil, err
	}
	isStr := types.Equal(ct, types.Str)

	base := fc.newScratchLocal(types.KindI32)
	strLen := fc.newScratchLocal(types.KindI32)
	length := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)

	elemType := types.Type(types.Int)
	if lt, ok := ct.(types.ListType); ok {
		elemType = lt.Elem
	} else if isStr {
		elemType = types.Str
	}
	varSlot := fc.declareLocal(s.Var, elemType)

	var b []byte
	if isStr {
		b = append(b, cb...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(strLen)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(strLen)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(length)...)
	} else {
		b = append(b, cb...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpI32Load)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(length)...)
	}

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

	if isStr {
		// A str's elements are themselves one-character strings
		// (offset i, length 1) sliced directly from the source bytes.
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(i)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(varSlot.idx)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(varSlot.idx2)...)
	} else {
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
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(varSlot.idx)...)
	}

	fc.loopStack = append(fc.loopStack, loopLabels{breakDepth: outerDepth, continueDepth: loopDepth})
	for _, stmt := range s.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	fc.loopStack = fc.loopStack[:len(fc.loopStack)-1]

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
	return b, nil
}

func (c *Compiler) emitReturn(fc *funcContext, s ir.Return) ([]byte, error) {
	var b []byte
	if s.Value != nil {
		vb, _, err := c.emitExpr(fc, s.Value)
		if err != nil {
			return nil, err
		}
		b = append(b, vb...)
		// The value is already on the stack; emitExcCheck's `if` only
		// wraps the exc_flag test itself (block type void) so it leaves
		// those operands untouched. Without this, a raise deep inside
		// s.Value (e.g. a call or a //-by-zero) would fall through to
		// OpReturn with the expression's zero-typed placeholder instead
		// of routing to the enclosing try's handler.
		b = append(b, c.emitExcCheck(fc)...)
	} else {
		b = append(b, c.emitZeroValue(fc.retType)...)
	}
	b = append(b, wasmmod.OpReturn)
	return b, nil
}

// emitRaise lowers both `raise Exc(...)` (s.Tag resolved during lowering)
// and bare `raise` re-raise (s.Tag == 0, meaning "leave exc_type_tag as
// whatever the active handler already bound").
func (c *Compiler) emitRaise(fc *funcContext, s ir.Raise) ([]byte, error) {
	var b []byte
	if s.Expr != nil {
		vb, vt, err := c.emitExpr(fc, s.Expr)
		if err != nil {
			return nil, err
		}
		b = append(b, vb...)
		for range vt.WasmKinds() {
			b = append(b, wasmmod.OpDrop)
		}
	}
	if s.Tag == 0 {
		// Bare re-raise: set exc_flag again, keep exc_type_tag.
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)
	} else {
		b = append(b, c.emitRaiseTag(fc, s.Tag)...)
	}
	if len(fc.handlerStack) == 0 {
		b = append(b, c.emitZeroValue(fc.retType)...)
		b = append(b, wasmmod.OpReturn)
		return b, nil
	}
	target := fc.handlerStack[len(fc.handlerStack)-1]
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(target))...)
	return b, nil
}

// emitTry lowers the handler-dispatch model: the body runs inside a
// wrapping block whose exit point is the dispatch chain. Each check-
// after-raise point inside the body already targets this wrapper
// (fc.handlerStack's top), so reaching the dispatch code means
// exc_flag is set. Handlers are tried in order via sequential
// exc_type_tag comparisons; a handler clears exc_flag on entry. No
// handler matching re-propagates by leaving exc_flag set, which the
// *enclosing* construct's own check (already emitted around every
// statement) carries further outward. Finally always runs, whether or
// not an exception was pending, by wrapping the whole thing in a
// second block that both the normal and dispatch paths fall into.
func (c *Compiler) emitTry(fc *funcContext, s ir.Try) ([]byte, error) {
	var b []byte

	fc.enter() // finally-wrapper block: both paths simply fall out its bottom
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)

	bodyDepth := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	fc.handlerStack = append(fc.handlerStack, bodyDepth)
	for _, stmt := range s.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	fc.handlerStack = fc.handlerStack[:len(fc.handlerStack)-1]
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	// Dispatch: reached either by falling through the body block
	// normally (exc_flag still 0) or by a br out of it (exc_flag set).
	// handled guards every arm so a handler's own body raising a fresh
	// exception can never be re-caught by a later sibling arm checking
	// the new tag — at most one arm of this try ever runs.
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
	handled := fc.newScratchLocal(types.KindI32)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(handled)...)
	for _, h := range s.Handlers {
		matched, err := c.emitHandlerArm(fc, h, handled)
		if err != nil {
			return nil, err
		}
		b = append(b, matched...)
	}
	b = append(b, wasmmod.OpEnd)

	b = append(b, wasmmod.OpEnd) // end finally-wrapper block
	fc.leave()

	for _, stmt := range s.Finally {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	// If no handler matched, exc_flag is still set; propagate to the
	// next enclosing construct exactly like any other may-raise check.
	b = append(b, c.emitExcCheck(fc)...)
	return b, nil
}

// emitHandlerArm emits one `if !handled && (bare-except || exc_type_tag
// == h.Tag) { ... }` test. handledIdx is shared across every arm of
// the enclosing try, so once one arm matches and sets it, no later
// sibling arm — including one checking a fresh tag raised by this
// arm's own body — can match again. A bare `except:` (h.Tag == 0)
// always matches and is expected to be the last handler (it is
// lowering's responsibility to order them that way).
func (c *Compiler) emitHandlerArm(fc *funcContext, h *ir.Handler, handledIdx uint32) ([]byte, error) {
	var b []byte
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(handledIdx)...)
	b = append(b, wasmmod.OpI32Eqz)
	if h.Tag != 0 {
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(fc.excTagIdx)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(h.Tag))...)
		b = append(b, wasmmod.OpI32Eq)
		b = append(b, wasmmod.OpI32And)
	}
	b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)

	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(handledIdx)...)

	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(fc.excFlagIdx)...)

	if h.VarName != "" {
		slot := fc.declareLocal(h.VarName, types.Int)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(fc.excTagIdx)...)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(slot.idx)...)
	}

	for _, stmt := range h.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}

	b = append(b, wasmmod.OpEnd)
	return b, nil
}

// emitWith has no resource-management runtime to hook into (no host
// dependency), so it lowers to exactly its body — the bound name,
// if any, simply aliases the context expression's value.
func (c *Compiler) emitWith(fc *funcContext, s ir.With) ([]byte, error) {
	cb, ct, err := c.emitExpr(fc, s.CtxExpr)
	if err != nil {
		return nil, err
	}
	var b []byte
	if s.AsVar != "" {
		slot := fc.declareLocal(s.AsVar, ct)
		b = append(b, cb...)
		kinds := ct.WasmKinds()
		if len(kinds) > 1 {
			b = append(b, wasmmod.OpLocalSet)
			b = append(b, wasmmod.EncodeU32(slot.idx2)...)
		}
		if len(kinds) > 0 {
			b = append(b, wasmmod.OpLocalSet)
			b = append(b, wasmmod.EncodeU32(slot.idx)...)
		}
	} else {
		b = append(b, cb...)
		for range ct.WasmKinds() {
			b = append(b, wasmmod.OpDrop)
		}
	}
	for _, stmt := range s.Body {
		sb, err := c.emitStmt(fc, stmt)
		if err != nil {
			return nil, err
		}
		b = append(b, sb...)
	}
	return b, nil
}
