package wasmmod

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/token"
)

// Layout is the memory layout manager: it owns the literal interning
// tables, the running data-segment length D, and the fixed heap base
// H0, following the usual addStringData approach (content → offset,
// appended to a running data buffer starting at a fixed offset).
type Layout struct {
	data       []byte
	strOffsets map[string]uint32
	bytesOffsets map[string]uint32
	heapBase   uint32
}

// NewLayout returns a Layout with an empty data segment and the
// standard heap base (H0 = 65536, one page).
func NewLayout() *Layout {
	return &Layout{
		strOffsets:   make(map[string]uint32),
		bytesOffsets: make(map[string]uint32),
		heapBase:     HeapBase,
	}
}

// InternString returns a stable data-segment offset for s's UTF-8
// bytes, reusing an existing offset when the bytes already appear.
func (l *Layout) InternString(s string) (uint32, error) {
	if off, ok := l.strOffsets[s]; ok {
		return off, nil
	}
	off, err := l.append([]byte(s))
	if err != nil {
		return 0, err
	}
	l.strOffsets[s] = off
	return off, nil
}

// InternBytes is InternString's counterpart for byte-literal bodies,
// kept in a separate table.
func (l *Layout) InternBytes(b []byte) (uint32, error) {
	key := string(b)
	if off, ok := l.bytesOffsets[key]; ok {
		return off, nil
	}
	off, err := l.append(b)
	if err != nil {
		return 0, err
	}
	l.bytesOffsets[key] = off
	return off, nil
}

// AllocStatic reserves n bytes in the data segment for content the
// caller fills in separately (e.g. a memoize decorator's cache
// sentinel region) and returns the base offset.
func (l *Layout) AllocStatic(n uint32) (uint32, error) {
	return l.append(make([]byte, n))
}

func (l *Layout) append(b []byte) (uint32, error) {
	off := uint32(len(l.data))
	newLen := off + uint32(len(b))
	if newLen > l.heapBase {
		return 0, errs.NewStaticDataOverflow(token.NoPos)
	}
	l.data = append(l.data, b...)
	return off, nil
}

// HeapAllocInstructions emits a bump-allocation sequence against the
// heap_next global (index globalIdx): it leaves the pre-bump base
// address on the stack and advances heap_next by n bytes, then grows
// linear memory by the missing page count when the new heap_next lies
// past its end.
//
//	global.get heap_next
//	global.get heap_next
//	i32.const n
//	i32.add
//	global.set heap_next
//	need = (heap_next + 65535) >> 16
//	if need > memory.size { drop(memory.grow(need - memory.size)) }
func (l *Layout) HeapAllocInstructions(globalIdx uint32, n uint32) []byte {
	var out []byte
	out = append(out, OpGlobalGet)
	out = append(out, EncodeU32(globalIdx)...)
	out = append(out, OpGlobalGet)
	out = append(out, EncodeU32(globalIdx)...)
	out = append(out, OpI32Const)
	out = append(out, EncodeS32(int32(n))...)
	out = append(out, OpI32Add)
	out = append(out, OpGlobalSet)
	out = append(out, EncodeU32(globalIdx)...)
	// Pushes (pages needed, current pages): raw bytes are i32.shr_u and
	// memory.size 0, which the opcode table does not list.
	need := append([]byte{OpGlobalGet}, EncodeU32(globalIdx)...)
	need = append(need, OpI32Const)
	need = append(need, EncodeS32(PageSize-1)...)
	need = append(need, OpI32Add, OpI32Const)
	need = append(need, EncodeS32(16)...)
	need = append(need, 0x76, 0x3F, 0x00)
	out = append(out, need...)
	out = append(out, 0x4B, OpIf, BlockTypeVoid) // i32.gt_u
	out = append(out, need...)
	out = append(out, OpI32Sub, 0x40, 0x00, OpDrop, OpEnd) // memory.grow 0
	return out
}

// Finish returns the finished data-segment bytes. Called once by
// Builder.Build; no further interning is valid after.
func (l *Layout) Finish() ([]byte, error) {
	return l.data, nil
}
