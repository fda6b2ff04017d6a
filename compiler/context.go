package compiler

import (
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// localSlot is one entry of the locals table: a source name mapped to
// its WASM local index (or pair of indices, for Str) and its IRType.
// Insertion-ordered, following the usual resolve-falls-back-through-
// enclosing-scopes symbol table pattern (here there is only one scope
// per function — this compiler does not implement closures).
type localSlot struct {
	name string
	idx  uint32
	idx2 uint32 // second local index, used only when typ is Str
	typ  types.Type
}

// loopLabels records the branch depths a break/continue inside the
// loop body must target.
type loopLabels struct {
	breakDepth    uint32
	continueDepth uint32
}

// funcContext is the compilation context: everything scoped to
// the emission of a single function body. It is discarded once that
// function's instructions are fully emitted.
type funcContext struct {
	builder *wasmmod.Builder

	locals    []localSlot
	byName    map[string]int
	nextLocal uint32

	excFlagIdx uint32
	excTagIdx  uint32

	// depth is the current WASM structured-control nesting depth:
	// incremented immediately after writing a block/loop/if opcode,
	// decremented immediately before writing its matching end. A
	// branch's relative depth operand is (depth at branch site) minus
	// (depth recorded when the target construct was entered).
	depth uint32

	loopStack    []loopLabels
	handlerStack []uint32 // depth of each active try's wrapping block

	ownerClass string
	retType    types.Type

	scratchCount int
}

func newFuncContext(b *wasmmod.Builder, ownerClass string, retType types.Type) *funcContext {
	return &funcContext{
		builder:    b,
		byName:     make(map[string]int),
		ownerClass: ownerClass,
		retType:    retType,
	}
}

// declareLocal registers name with typ if not already present and
// returns its slot. Re-declaring an existing name (e.g. a loop
// variable reused across iterations) returns the existing slot rather
// than allocating a second one.
func (fc *funcContext) declareLocal(name string, typ types.Type) localSlot {
	if i, ok := fc.byName[name]; ok {
		return fc.locals[i]
	}
	kinds := typ.WasmKinds()
	slot := localSlot{name: name, typ: typ}
	if len(kinds) > 0 {
		slot.idx = fc.nextLocal
		fc.nextLocal++
	}
	if len(kinds) > 1 {
		slot.idx2 = fc.nextLocal
		fc.nextLocal++
	}
	fc.byName[name] = len(fc.locals)
	fc.locals = append(fc.locals, slot)
	return slot
}

func (fc *funcContext) resolve(name string) (localSlot, bool) {
	if i, ok := fc.byName[name]; ok {
		return fc.locals[i], true
	}
	return localSlot{}, false
}

// localWasmTypes returns the WASM local types this function needs
// to declare, beyond its parameters (which the caller already counted
// into nextLocal before any non-parameter local is declared).
func (fc *funcContext) localWasmTypes(paramCount uint32) []wasmmod.ValType {
	var out []wasmmod.ValType
	for idx := paramCount; idx < fc.nextLocal; idx++ {
		out = append(out, fc.wasmTypeForIndex(idx))
	}
	return out
}

func (fc *funcContext) wasmTypeForIndex(idx uint32) wasmmod.ValType {
	for _, l := range fc.locals {
		kinds := l.typ.WasmKinds()
		if len(kinds) > 0 && l.idx == idx {
			return wasmKindToValType(kinds[0])
		}
		if len(kinds) > 1 && l.idx2 == idx {
			return wasmKindToValType(kinds[1])
		}
	}
	// exc_flag / exc_type_tag and scratch temporaries are always i32.
	return wasmmod.ValI32
}

func wasmKindToValType(k types.WasmKind) wasmmod.ValType {
	if k == types.KindF64 {
		return wasmmod.ValF64
	}
	return wasmmod.ValI32
}

// newScratchLocal allocates an unnamed i32 or f64 local (used by min/
// max accumulators, string-compare loop counters, etc).
func (fc *funcContext) newScratchLocal(kind types.WasmKind) uint32 {
	fc.scratchCount++
	idx := fc.nextLocal
	fc.nextLocal++
	fc.locals = append(fc.locals, localSlot{
		name: scratchName(fc.scratchCount),
		idx:  idx,
		typ:  scratchType(kind),
	})
	fc.byName[scratchName(fc.scratchCount)] = len(fc.locals) - 1
	return idx
}

func scratchName(n int) string { return "$scratch" + itoa(n) }

func scratchType(k types.WasmKind) types.Type {
	if k == types.KindF64 {
		return types.Float
	}
	return types.Int
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// enter increments the nesting depth and returns the depth value of
// the construct just entered, to be stashed as a branch target.
func (fc *funcContext) enter() uint32 {
	fc.depth++
	return fc.depth
}

func (fc *funcContext) leave() {
	fc.depth--
}

// relDepth computes the `br`/`br_if` operand needed to reach a
// construct that was entered at targetDepth, from the current depth.
func (fc *funcContext) relDepth(targetDepth uint32) uint32 {
	return fc.depth - targetDepth
}
