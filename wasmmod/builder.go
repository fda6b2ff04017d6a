// Package wasmmod is the module assembler and linear-memory layout
// manager. It assembles a complete WASM 1.0 binary module section by
// section from already-encoded function bodies, following the usual
// addModule/addFunction/emit generator split and its per-section emit
// helpers, with section-id and value-type constants matching the spec.
package wasmmod


const (
	magic   = uint32(0x6D736100) // "\0asm"
	version = uint32(1)
	// PageSize is the WASM linear-memory page size.
	PageSize = 65536
	// HeapBase (H0) is the initial heap_next value: one page.
	HeapBase = 65536
)

// FuncSig is a function type signature, deduplicated by the Builder.
type FuncSig struct {
	Params  []ValType
	Results []ValType
}

func (s FuncSig) key() string {
	b := make([]byte, 0, len(s.Params)+len(s.Results)+1)
	for _, p := range s.Params {
		b = append(b, byte(p))
	}
	b = append(b, '>')
	for _, r := range s.Results {
		b = append(b, byte(r))
	}
	return string(b)
}

type funcEntry struct {
	name    string
	typeIdx uint32
	locals  []ValType // declared locals beyond the parameters
	body    []byte    // fully encoded instruction stream, sans locals header
}

type exportEntry struct {
	name string
	kind ExternalKind
	idx  uint32
}

// globalEntry is one module-level mutable global. heap_next is always
// global index 0; every other global holds module-level state a
// converter rewrite needs to persist across calls (e.g. a memoize
// cache's dict/list pointer) — always zero-initialized at
// instantiation time and, when non-zero, filled in by the start
// function (see SetStart).
type globalEntry struct {
	valType ValType
	init    int32
}

// Builder accumulates sections for one module under construction. It
// is not safe for concurrent use; callers emit one function at a time,
// matching this compiler's single-threaded, non-suspending execution
// model.
type Builder struct {
	sigKeys map[string]uint32
	sigs    []FuncSig

	funcs   []funcEntry
	exports []exportEntry
	globals []globalEntry

	startIdx    uint32
	hasStartIdx bool

	minPages uint32

	layout *Layout
}

// NewBuilder returns a Builder with an empty type table, a fresh memory
// layout manager, and global index 0 already reserved for heap_next.
func NewBuilder() *Builder {
	b := &Builder{
		sigKeys:  make(map[string]uint32),
		layout:   NewLayout(),
		minPages: 1,
	}
	b.globals = append(b.globals, globalEntry{valType: ValI32, init: HeapBase})
	return b
}

// SetMinPages raises the module's declared minimum linear-memory size
// (in 64KiB pages) above the default of one, for a caller that already
// knows a compilation will need more heap than H0's first page — a
// sizing hint, not a hard cap; the allocator (Layout) never enforces it,
// and the bump-allocation sequence from Layout.HeapAllocInstructions
// runs `memory.grow` itself whenever heap_next passes the end of memory.
func (b *Builder) SetMinPages(n uint32) {
	if n > b.minPages {
		b.minPages = n
	}
}

// AddGlobal reserves a new zero-initialized mutable global of valType
// and returns its global index. Used for module-level state
// (`module_vars`) that a start function populates once at
// instantiation.
func (b *Builder) AddGlobal(valType ValType) uint32 {
	idx := uint32(len(b.globals))
	b.globals = append(b.globals, globalEntry{valType: valType, init: 0})
	return idx
}

// SetStart records idx as the module's start function, run once at
// instantiation before any export is reachable — this is where
// module-level variable initializers and memoize cache setup run.
func (b *Builder) SetStart(idx uint32) {
	b.startIdx = idx
	b.hasStartIdx = true
}

// Layout exposes the module's memory layout manager so the compiler
// can intern literals and allocate heap space while emitting function
// bodies.
func (b *Builder) Layout() *Layout { return b.layout }

// InternSig returns the type-section index for sig, reusing an
// existing entry when the signature already appears, the same
// structural-type dedup applied here to function signatures.
func (b *Builder) InternSig(sig FuncSig) uint32 {
	k := sig.key()
	if idx, ok := b.sigKeys[k]; ok {
		return idx
	}
	idx := uint32(len(b.sigs))
	b.sigs = append(b.sigs, sig)
	b.sigKeys[k] = idx
	return idx
}

// AddFunction registers a function body and returns its function
// index. Indices are assigned in call order, which the compiler is
// responsible for making match the IR module's declaration order, so
// two compiles of the same module produce byte-identical output.
func (b *Builder) AddFunction(name string, typeIdx uint32, locals []ValType, body []byte) uint32 {
	idx := uint32(len(b.funcs))
	b.funcs = append(b.funcs, funcEntry{name: name, typeIdx: typeIdx, locals: locals, body: body})
	return idx
}

// ReplaceFunction fills in the body of a function index previously
// returned by AddFunction. The compiler reserves indices for every
// function up front (so forward calls resolve) and fills in bodies
// afterward, once each function's own emission completes.
func (b *Builder) ReplaceFunction(idx uint32, name string, typeIdx uint32, locals []ValType, body []byte) {
	b.funcs[idx] = funcEntry{name: name, typeIdx: typeIdx, locals: locals, body: body}
}

// ExportFunction exports function index idx under name (a bare
// function name, or "ClassName::method" for a method).
func (b *Builder) ExportFunction(name string, idx uint32) {
	b.exports = append(b.exports, exportEntry{name: name, kind: KindFunc, idx: idx})
}

// exportMemory exports the module's sole linear memory as "memory".
func (b *Builder) exportMemory() {
	b.exports = append(b.exports, exportEntry{name: "memory", kind: KindMemory, idx: 0})
}

// Build assembles the complete module: type, import (always empty —
// host imports are out of scope), function, table (empty), memory,
// global (heap_next), export, code, data, in that order.
func (b *Builder) Build() ([]byte, error) {
	data, err := b.layout.Finish()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4096)
	out = appendU32LE(out, magic)
	out = appendU32LE(out, version)

	out = append(out, EncodeSection(SecType, b.buildTypeSection())...)
	out = append(out, EncodeSection(SecFunction, b.buildFunctionSection())...)
	out = append(out, EncodeSection(SecMemory, b.buildMemorySection())...)
	out = append(out, EncodeSection(SecGlobal, b.buildGlobalSection())...)

	b.exportMemory()
	out = append(out, EncodeSection(SecExport, b.buildExportSection())...)
	if b.hasStartIdx {
		out = append(out, EncodeSection(SecStart, EncodeU32(b.startIdx))...)
	}
	out = append(out, EncodeSection(SecCode, b.buildCodeSection())...)

	if len(data) > 0 {
		out = append(out, EncodeSection(SecData, b.buildDataSection(data))...)
	}

	return out, nil
}

func appendU32LE(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *Builder) buildTypeSection() []byte {
	var items []byte
	for _, sig := range b.sigs {
		entry := []byte{FuncTypeHeader}
		entry = append(entry, EncodeVector(len(sig.Params), valTypesToBytes(sig.Params))...)
		entry = append(entry, EncodeVector(len(sig.Results), valTypesToBytes(sig.Results))...)
		items = append(items, entry...)
	}
	return EncodeVector(len(b.sigs), items)
}

func valTypesToBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

func (b *Builder) buildFunctionSection() []byte {
	var items []byte
	for _, f := range b.funcs {
		items = append(items, EncodeU32(f.typeIdx)...)
	}
	return EncodeVector(len(b.funcs), items)
}

func (b *Builder) buildMemorySection() []byte {
	// One memory, no max (limits flag 0x00).
	limits := append([]byte{0x00}, EncodeU32(b.minPages)...)
	return EncodeVector(1, limits)
}

func (b *Builder) buildGlobalSection() []byte {
	var items []byte
	for _, g := range b.globals {
		items = append(items, byte(g.valType), 0x01) // mutable=1
		switch g.valType {
		case ValF64:
			items = append(items, OpF64Const)
			items = append(items, EncodeF64(0)...)
		default:
			items = append(items, OpI32Const)
			items = append(items, EncodeS32(g.init)...)
		}
		items = append(items, OpEnd)
	}
	return EncodeVector(len(b.globals), items)
}

func (b *Builder) buildExportSection() []byte {
	var items []byte
	for _, e := range b.exports {
		items = append(items, EncodeName(e.name)...)
		items = append(items, byte(e.kind))
		items = append(items, EncodeU32(e.idx)...)
	}
	return EncodeVector(len(b.exports), items)
}

func (b *Builder) buildCodeSection() []byte {
	var items []byte
	for _, f := range b.funcs {
		body := encodeLocalsHeader(f.locals)
		body = append(body, f.body...)
		body = append(body, OpEnd)
		entry := EncodeU32(uint32(len(body)))
		entry = append(entry, body...)
		items = append(items, entry...)
	}
	return EncodeVector(len(b.funcs), items)
}

// encodeLocalsHeader groups consecutive identical local types into
// runs, the compressed form the WASM local declarations section uses.
func encodeLocalsHeader(locals []ValType) []byte {
	type run struct {
		count uint32
		typ   ValType
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].typ == l {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: l})
	}
	var items []byte
	for _, r := range runs {
		items = append(items, EncodeU32(r.count)...)
		items = append(items, byte(r.typ))
	}
	return EncodeVector(len(runs), items)
}

func (b *Builder) buildDataSection(data []byte) []byte {
	var items []byte
	items = append(items, 0x00) // active segment, memory index implicit 0
	items = append(items, OpI32Const)
	items = append(items, EncodeS32(0)...)
	items = append(items, OpEnd)
	items = append(items, EncodeVector(len(data), data)...)
	return EncodeVector(1, items)
}
