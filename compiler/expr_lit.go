package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// containerElemOK rejects element types that cannot fit the single-i32-
// word cell every list/tuple/dict slot is given: Float needs
// eight bytes and Str needs an (offset,length) pair, neither of which
// this layout has room for.
func containerElemOK(t types.Type) bool {
	kinds := t.WasmKinds()
	return len(kinds) == 1 && kinds[0] == types.KindI32
}

// emitListLiteral bump-allocates `[length][elem0][elem1]...` at
// a size known at compile time, since a literal's element count is
// fixed by its syntax.
func (c *Compiler) emitListLiteral(fc *funcContext, e ir.ListLiteral) ([]byte, types.Type, error) {
	n := len(e.Elements)
	base := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, c.builder.Layout().HeapAllocInstructions(0, uint32(4+4*n))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(n))...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	for i, el := range e.Elements {
		eb, et, err := c.emitExpr(fc, el)
		if err != nil {
			return nil, nil, err
		}
		if !containerElemOK(et) {
			return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(4+4*i))...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, eb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	return b, types.ListType{Elem: e.ElemType}, nil
}

// emitTupleLiteral is identical in layout to emitListLiteral
// (`[length][elem0][elem1]…`) but its IRType tracks each
// element's own type rather than a single widened Elem.
func (c *Compiler) emitTupleLiteral(fc *funcContext, e ir.TupleLiteral) ([]byte, types.Type, error) {
	n := len(e.Elements)
	base := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, c.builder.Layout().HeapAllocInstructions(0, uint32(4+4*n))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(n))...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	elemTypes := make([]types.Type, n)
	for i, el := range e.Elements {
		eb, et, err := c.emitExpr(fc, el)
		if err != nil {
			return nil, nil, err
		}
		if !containerElemOK(et) {
			return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
		}
		elemTypes[i] = et
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(int32(4+4*i))...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, eb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	return b, types.TupleType{Elements: elemTypes}, nil
}

// emitDictLiteral lays out `[length][key0][val0][key1][val1]...`,
// the same linear-scan shape emitDictLookup reads.
func (c *Compiler) emitDictLiteral(fc *funcContext, e ir.DictLiteral) ([]byte, types.Type, error) {
	n := len(e.Keys)
	base := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, c.builder.Layout().HeapAllocInstructions(0, uint32(4+8*n))...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(int32(n))...)
	b = append(b, wasmmod.OpI32Store)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)

	for i := range e.Keys {
		kb, kt, err := c.emitExpr(fc, e.Keys[i])
		if err != nil {
			return nil, nil, err
		}
		if !containerElemOK(kt) {
			return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-dict-key")
		}
		vb, vt, err := c.emitExpr(fc, e.Values[i])
		if err != nil {
			return nil, nil, err
		}
		if !containerElemOK(vt) {
			return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-dict-value")
		}
		entryOff := int32(4 + 8*i)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(entryOff)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, kb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)

		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(entryOff+4)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, vb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	return b, types.DictType{Key: e.KeyType, Value: e.ValType}, nil
}

// emitRangeCall bump-allocates the fixed three-cell `[start][stop]
// [step]` object emitForRange already reads at offsets 0/4/8 — no
// length header, unlike list/tuple/dict.
func (c *Compiler) emitRangeCall(fc *funcContext, e ir.RangeCall) ([]byte, types.Type, error) {
	base := fc.newScratchLocal(types.KindI32)

	var b []byte
	b = append(b, c.builder.Layout().HeapAllocInstructions(0, 12)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(base)...)

	store := func(off int32, val ir.Expr) error {
		vb, _, err := c.emitExpr(fc, val)
		if err != nil {
			return err
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(base)...)
		if off != 0 {
			b = append(b, wasmmod.OpI32Const)
			b = append(b, wasmmod.EncodeS32(off)...)
			b = append(b, wasmmod.OpI32Add)
		}
		b = append(b, vb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		return nil
	}
	if err := store(0, e.Start); err != nil {
		return nil, nil, err
	}
	if err := store(4, e.Stop); err != nil {
		return nil, nil, err
	}
	if err := store(8, e.Step); err != nil {
		return nil, nil, err
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(base)...)
	return b, types.RangeTy, nil
}

// emitListComp lowers a list comprehension in two passes over an
// already-materialized source list, since the bump allocator can only
// grow forward and the result's length isn't known until the filter
// has run: pass one counts surviving elements, pass two allocates the
// exact-size result and fills it. The source iterable is evaluated
// exactly once (into srcBase/srcLen); only the re-derived Cond/Element
// bytecode is duplicated across the two passes.
func (c *Compiler) emitListComp(fc *funcContext, e ir.ListComp) ([]byte, types.Type, error) {
	ib, it, err := c.emitExpr(fc, e.Iterable)
	if err != nil {
		return nil, nil, err
	}
	lst, ok := it.(types.ListType)
	if !ok {
		return nil, nil, errs.NewUnsupportedIteration(e.P, it.Signature())
	}
	if !containerElemOK(lst.Elem) {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
	}
	if !containerElemOK(e.ElemType) {
		return nil, nil, errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
	}

	srcBase := fc.newScratchLocal(types.KindI32)
	srcLen := fc.newScratchLocal(types.KindI32)
	count := fc.newScratchLocal(types.KindI32)
	i := fc.newScratchLocal(types.KindI32)
	iterSlot := fc.declareLocal(e.IterVar, lst.Elem)

	var b []byte
	b = append(b, ib...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(srcBase)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(srcBase)...)
	b = append(b, wasmmod.OpI32Load)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.EncodeU32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(srcLen)...)

	loadElem := func(idxLocal uint32) []byte {
		var lb []byte
		lb = append(lb, wasmmod.OpLocalGet)
		lb = append(lb, wasmmod.EncodeU32(srcBase)...)
		lb = append(lb, wasmmod.OpI32Const)
		lb = append(lb, wasmmod.EncodeS32(4)...)
		lb = append(lb, wasmmod.OpI32Add)
		lb = append(lb, wasmmod.OpLocalGet)
		lb = append(lb, wasmmod.EncodeU32(idxLocal)...)
		lb = append(lb, wasmmod.OpI32Const)
		lb = append(lb, wasmmod.EncodeS32(4)...)
		lb = append(lb, wasmmod.OpI32Mul)
		lb = append(lb, wasmmod.OpI32Add)
		lb = append(lb, wasmmod.OpI32Load)
		lb = append(lb, wasmmod.EncodeU32(0)...)
		lb = append(lb, wasmmod.EncodeU32(0)...)
		return lb
	}

	// Pass 1: count.
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(count)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)

	outerDepth1 := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth1 := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(srcLen)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth1))...)
	b = append(b, loadElem(i)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(iterSlot.idx)...)

	incrCount := func() error {
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(count)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(count)...)
		return nil
	}
	if e.Cond != nil {
		cb, _, err := c.emitExpr(fc, e.Cond)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, cb...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		_ = incrCount()
		b = append(b, wasmmod.OpEnd)
	} else {
		_ = incrCount()
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth1))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	// dst = heap_alloc(4 + 4*count), a runtime-sized allocation.
	dst := fc.newScratchLocal(types.KindI32)
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

	// Pass 2: fill.
	j := fc.newScratchLocal(types.KindI32)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(j)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(0)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)

	outerDepth2 := fc.enter()
	b = append(b, wasmmod.OpBlock, wasmmod.BlockTypeVoid)
	loopDepth2 := fc.enter()
	b = append(b, wasmmod.OpLoop, wasmmod.BlockTypeVoid)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(srcLen)...)
	b = append(b, wasmmod.OpI32GeS)
	b = append(b, wasmmod.OpBrIf)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(outerDepth2))...)
	b = append(b, loadElem(i)...)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(iterSlot.idx)...)

	writeAndAdvance := func() error {
		elb, elt, err := c.emitExpr(fc, e.Element)
		if err != nil {
			return err
		}
		if !containerElemOK(elt) {
			return errs.NewUnsupportedConstruct(e.P, "non-i32-container-element")
		}
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(dst)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(4)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(j)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(4)...)
		b = append(b, wasmmod.OpI32Mul)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, elb...)
		b = append(b, wasmmod.OpI32Store)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.EncodeU32(0)...)
		b = append(b, wasmmod.OpLocalGet)
		b = append(b, wasmmod.EncodeU32(j)...)
		b = append(b, wasmmod.OpI32Const)
		b = append(b, wasmmod.EncodeS32(1)...)
		b = append(b, wasmmod.OpI32Add)
		b = append(b, wasmmod.OpLocalSet)
		b = append(b, wasmmod.EncodeU32(j)...)
		return nil
	}

	if e.Cond != nil {
		cb, _, err := c.emitExpr(fc, e.Cond)
		if err != nil {
			return nil, nil, err
		}
		b = append(b, cb...)
		b = append(b, wasmmod.OpIf, wasmmod.BlockTypeVoid)
		if err := writeAndAdvance(); err != nil {
			return nil, nil, err
		}
		b = append(b, wasmmod.OpEnd)
	} else {
		if err := writeAndAdvance(); err != nil {
			return nil, nil, err
		}
	}

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpI32Const)
	b = append(b, wasmmod.EncodeS32(1)...)
	b = append(b, wasmmod.OpI32Add)
	b = append(b, wasmmod.OpLocalSet)
	b = append(b, wasmmod.EncodeU32(i)...)
	b = append(b, wasmmod.OpBr)
	b = append(b, wasmmod.EncodeU32(fc.relDepth(loopDepth2))...)
	b = append(b, wasmmod.OpEnd)
	fc.leave()
	b = append(b, wasmmod.OpEnd)
	fc.leave()

	b = append(b, wasmmod.OpLocalGet)
	b = append(b, wasmmod.EncodeU32(dst)...)
	return b, types.ListType{Elem: e.ElemType}, nil
}
