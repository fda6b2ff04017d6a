// Package compiler is the compilation context, expression emitter, and
// statement/function emitter. It walks an *ir.Module and produces a
// complete WASM binary module via wasmmod.Builder.
//
// Built as a Compile-type-switch-plus-scope-stack targeting WASM's
// structured block/loop/if control flow, which needs no backpatching —
// branch targets are relative nesting depths, tracked by
// funcContext.depth — following the compileStmt/compileExpr split and
// allocLocal idiom common to stack-machine backends.
package compiler

import (
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
	"github.com/anistark/waspy/wasmmod"
)

// classInfo resolves field names to their cell index within an
// instance layout ("[field_0][field_1]… in declared order; no
// header"), and method names to their exported function key.
type classInfo struct {
	name       string
	fieldIndex map[string]int
	fieldTypes []types.Type
	hasInit    bool
}

func (c *classInfo) fieldOffset(name string) (int32, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return 0, false
	}
	return int32(i) * 4, true
}

// moduleGlobalSlot resolves a module-level variable name (`module_vars`)
// to its WASM global index(es), mirroring localSlot's
// idx/idx2 pairing for two-cell types. Populated once, before any
// function is emitted, so every function body's `ir.Var` fallback
// lookup (see expr.go) can resolve a global the moment it's referenced.
type moduleGlobalSlot struct {
	idx  uint32
	idx2 uint32
	typ  types.Type
}

// Compiler is the top-level compilation driver. One Compiler compiles
// one ir.Module into one WASM binary module; no state crosses module
// boundaries.
type Compiler struct {
	builder   *wasmmod.Builder
	funcIndex map[string]uint32 // "name" or "Class::method" -> function index
	classes   map[string]*classInfo
	globals   map[string]moduleGlobalSlot
	rt        *runtimeHelpers
}

// New returns a Compiler ready to compile a single module.
func New() *Compiler {
	c := &Compiler{
		builder:   wasmmod.NewBuilder(),
		funcIndex: make(map[string]uint32),
		classes:   make(map[string]*classInfo),
		globals:   make(map[string]moduleGlobalSlot),
	}
	c.rt = newRuntimeHelpers(c)
	return c
}

// Compile lowers mod to a complete WASM binary module.
// opts is logging/sizing configuration only — it never changes what
// gets emitted beyond the memory page-count hint.
func Compile(mod *ir.Module, opts Options) ([]byte, error) {
	c := New()
	return c.compile(mod, opts)
}

func (c *Compiler) compile(mod *ir.Module, opts Options) ([]byte, error) {
	log := opts.logger()
	attrs := opts.logAttrs()
	log.Debug("compile start", append(attrs, "functions", len(mod.Functions), "classes", len(mod.Classes))...)

	if opts.TargetPages > 0 {
		c.builder.SetMinPages(opts.TargetPages)
	}
	if opts.RunOptimizer {
		log.Debug("optimizer requested but skipped: bytecode peepholing is out of scope", attrs...)
	}

	for _, cls := range mod.Classes {
		c.classes[cls.Name] = buildClassInfo(cls)
	}

	// Pass 1: reserve function indices in IR declaration order so every
	// `call` site can resolve a callee before that callee's own body is
	// emitted — this keeps forward calls deterministic too.
	for _, fn := range mod.Functions {
		c.reserveFunction(fn.Name, fn)
	}
	for _, cls := range mod.Classes {
		if cls.Init != nil {
			c.reserveFunction(cls.Name+"::__init__", cls.Init)
		}
		for _, m := range cls.Methods {
			c.reserveFunction(cls.Name+"::"+m.Name, m)
		}
	}

	fail := func(err error) ([]byte, error) {
		log.Error("compile failed", append(attrs, "error", err)...)
		return nil, errs.WithTraceID(err, opts.TraceID)
	}

	if err := c.emitModuleInit(mod.ModuleVars); err != nil {
		return fail(err)
	}

	for _, fn := range mod.Functions {
		if err := c.emitFunction(fn.Name, fn, ""); err != nil {
			return fail(err)
		}
	}
	for _, cls := range mod.Classes {
		if cls.Init != nil {
			if err := c.emitFunction(cls.Name+"::__init__", cls.Init, cls.Name); err != nil {
				return fail(err)
			}
		}
		for _, m := range cls.Methods {
			if err := c.emitFunction(cls.Name+"::"+m.Name, m, cls.Name); err != nil {
				return fail(err)
			}
		}
	}

	out, err := c.builder.Build()
	if err != nil {
		return fail(err)
	}
	log.Debug("compile finished", append(attrs, "bytes", len(out))...)
	return out, nil
}

// emitModuleInit lowers `module_vars` into module globals plus a WASM
// start function that initializes them, run once at instantiation
// before any export is reachable (wasmmod.Builder.SetStart). Ordinary
// function bodies may only read a module global (ir.Var's fallback, see
// expr.go); only this synthesized init function ever writes one —
// emitAssign always targets a local, so a module-level write has no
// other legal origin.
func (c *Compiler) emitModuleInit(vars []*ir.Assign) error {
	if len(vars) == 0 {
		return nil
	}

	fc := newFuncContext(c.builder, "", types.None)
	fc.excFlagIdx = fc.nextLocal
	fc.nextLocal++
	fc.excTagIdx = fc.nextLocal
	fc.nextLocal++
	paramLocalCount := fc.nextLocal

	var body []byte
	for _, mv := range vars {
		vb, vt, err := c.emitExpr(fc, mv.Value)
		if err != nil {
			return err
		}

		kinds := vt.WasmKinds()
		slot := moduleGlobalSlot{typ: vt}
		if len(kinds) > 0 {
			slot.idx = c.builder.AddGlobal(wasmKindToValType(kinds[0]))
		}
		if len(kinds) > 1 {
			slot.idx2 = c.builder.AddGlobal(wasmKindToValType(kinds[1]))
		}
		c.globals[mv.Target] = slot

		body = append(body, vb...)
		if len(kinds) > 1 {
			body = append(body, wasmmod.OpGlobalSet)
			body = append(body, wasmmod.EncodeU32(slot.idx2)...)
		}
		if len(kinds) > 0 {
			body = append(body, wasmmod.OpGlobalSet)
			body = append(body, wasmmod.EncodeU32(slot.idx)...)
		}
		body = append(body, c.emitExcCheck(fc)...)
	}

	sig := wasmmod.FuncSig{}
	typeIdx := c.builder.InternSig(sig)
	locals := fc.localWasmTypes(paramLocalCount)
	idx := c.builder.AddFunction("$module_init", typeIdx, locals, body)
	c.builder.SetStart(idx)
	return nil
}

func buildClassInfo(cls *ir.Class) *classInfo {
	info := &classInfo{
		name:       cls.Name,
		fieldIndex: make(map[string]int),
		hasInit:    cls.Init != nil,
	}
	for i, f := range cls.Fields {
		info.fieldIndex[f.Name] = i
		info.fieldTypes = append(info.fieldTypes, f.Type)
	}
	return info
}

// reserveFunction assigns a signature and (empty, to be filled later)
// body slot so forward references resolve during emission.
func (c *Compiler) reserveFunction(exportName string, fn *ir.Function) {
	sig := c.signatureFor(fn)
	typeIdx := c.builder.InternSig(sig)
	idx := c.builder.AddFunction(exportName, typeIdx, nil, nil)
	c.funcIndex[exportName] = idx
	c.builder.ExportFunction(exportName, idx)
}

func (c *Compiler) signatureFor(fn *ir.Function) wasmmod.FuncSig {
	var params []wasmmod.ValType
	if fn.IsMethod {
		params = append(params, wasmmod.ValI32) // self
	}
	for _, p := range fn.Params {
		for _, k := range p.Type.WasmKinds() {
			params = append(params, wasmKindToValType(k))
		}
	}
	var results []wasmmod.ValType
	for _, k := range fn.ReturnType.WasmKinds() {
		results = append(results, wasmKindToValType(k))
	}
	return wasmmod.FuncSig{Params: params, Results: results}
}

// emitFunction is the function prologue/epilogue driver: it declares
// locals from the context's table, zero-initializes the
// exception state, emits the body, and re-registers the finished
// function body (replacing the placeholder reserveFunction created).
func (c *Compiler) emitFunction(exportName string, fn *ir.Function, ownerClass string) error {
	fc := newFuncContext(c.builder, ownerClass, fn.ReturnType)

	if fn.IsMethod {
		fc.declareLocal("self", types.ClassType{Name: ownerClass})
	}
	for _, p := range fn.Params {
		fc.declareLocal(p.Name, p.Type)
	}
	paramLocalCount := fc.nextLocal

	fc.excFlagIdx = fc.nextLocal
	fc.nextLocal++
	fc.excTagIdx = fc.nextLocal
	fc.nextLocal++

	var body []byte
	for _, s := range fn.Body {
		b, err := c.emitStmt(fc, s)
		if err != nil {
			return err
		}
		body = append(body, b...)
	}

	// Functions declared to return a value fall through to an implicit
	// zero-valued return if control reaches the end without an explicit
	// `return` (mirrors Return(None) handling).
	if len(fn.ReturnType.WasmKinds()) > 0 {
		body = append(body, c.emitZeroValue(fn.ReturnType)...)
	}

	locals := fc.localWasmTypes(paramLocalCount)
	idx := c.funcIndex[exportName]
	sig := c.signatureFor(fn)
	typeIdx := c.builder.InternSig(sig)
	c.builder.ReplaceFunction(idx, exportName, typeIdx, locals, body)
	return nil
}

// emitZeroValue produces the type-appropriate zero encoding of typ,
// used for epilogue fallthrough and for raise-with-no-active-try.
func (c *Compiler) emitZeroValue(t types.Type) []byte {
	kinds := t.WasmKinds()
	var out []byte
	for _, k := range kinds {
		switch k {
		case types.KindF64:
			out = append(out, wasmmod.OpF64Const)
			out = append(out, wasmmod.EncodeF64(0)...)
		default:
			out = append(out, wasmmod.OpI32Const)
			out = append(out, wasmmod.EncodeS32(0)...)
		}
	}
	return out
}
