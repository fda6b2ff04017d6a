// Package wasmrun is a thin verification harness over a real WASM
// engine (github.com/tetratelabs/wazero). It interprets nothing
// itself — it hands the real WASM bytes this compiler emits to a real
// engine, which both validates the module and executes it.
package wasmrun

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Module wraps one instantiated WASM module. The core emits no host
// imports, so instantiation never needs a host module registered
// against the runtime.
type Module struct {
	runtime  wazero.Runtime
	instance api.Module
}

// Load compiles and instantiates wasmBytes. ctx controls both steps;
// callers that don't need cancellation can pass context.Background().
func Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	rt := wazero.NewRuntime(ctx)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmrun: module failed to validate: %w", err)
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmrun: module failed to instantiate: %w", err)
	}

	return &Module{runtime: rt, instance: instance}, nil
}

// Close releases the underlying engine resources. Callers should defer
// this immediately after a successful Load.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// Memory exposes the module's sole linear memory, for tests that need
// to read a returned string or list pointer's bytes back out.
func (m *Module) Memory() api.Memory {
	return m.instance.Memory()
}

// CallI32 calls a no-argument-shape-agnostic exported function whose
// every argument and single result is i32 (the WASM mapping of Int,
// Bool, Class, List, Dict, Tuple, Range).
func (m *Module) CallI32(ctx context.Context, name string, args ...int32) (int32, error) {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("wasmrun: no exported function %q", name)
	}
	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = api.EncodeI32(a)
	}
	results, err := fn.Call(ctx, raw...)
	if err != nil {
		return 0, fmt.Errorf("wasmrun: call %q: %w", name, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("wasmrun: call %q: want 1 result, got %d", name, len(results))
	}
	return api.DecodeI32(results[0]), nil
}

// CallF64 calls an exported function whose arguments and single result
// are f64 (the WASM mapping of Float).
func (m *Module) CallF64(ctx context.Context, name string, args ...float64) (float64, error) {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("wasmrun: no exported function %q", name)
	}
	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = api.EncodeF64(a)
	}
	results, err := fn.Call(ctx, raw...)
	if err != nil {
		return 0, fmt.Errorf("wasmrun: call %q: %w", name, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("wasmrun: call %q: want 1 result, got %d", name, len(results))
	}
	return api.DecodeF64(results[0]), nil
}

// CallRaw calls an exported function with pre-encoded uint64 operands
// and returns the raw results, for signatures CallI32/CallF64 don't
// cover (mixed-type params, or a multi-value Str result — an
// (offset, length) i32 pair).
func (m *Module) CallRaw(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("wasmrun: no exported function %q", name)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("wasmrun: call %q: %w", name, err)
	}
	return results, nil
}

// ReadString reads length bytes at offset out of the module's linear
// memory and decodes them as UTF-8, the convention dynamic and
// literal string values alike get.
func (m *Module) ReadString(offset, length uint32) (string, error) {
	buf, ok := m.instance.Memory().Read(offset, length)
	if !ok {
		return "", fmt.Errorf("wasmrun: string read out of bounds at [%d:%d]", offset, offset+length)
	}
	return string(buf), nil
}
