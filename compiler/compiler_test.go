package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// These are unit-level tests of the compiler package's own behavior
// (error propagation, option handling), distinct from wasmrun_test.go's
// end-to-end scenarios which drive compiled modules through a real
// engine.

func simpleModule(body ...ir.Stmt) *ir.Module {
	return &ir.Module{
		Functions: []*ir.Function{
			{Name: "f", ReturnType: types.Int, Body: body},
		},
	}
}

func TestCompileUnknownFunctionCall(t *testing.T) {
	mod := simpleModule(
		ir.Return{Value: ir.Call{Callee: "does_not_exist", Result: types.Int}},
	)
	_, err := Compile(mod, Options{})
	require.Error(t, err)

	var ce *errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.UnknownFunction, ce.Kind)
}

func TestCompileUnknownVariable(t *testing.T) {
	mod := simpleModule(
		ir.Return{Value: ir.Var{Name: "nope", Type: types.Int}},
	)
	_, err := Compile(mod, Options{})
	require.Error(t, err)

	var ce *errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.UnknownVariable, ce.Kind)
}

func TestCompileProducesValidWasmHeader(t *testing.T) {
	mod := simpleModule(ir.Return{Value: ir.IntConst{Value: 1}})
	out, err := Compile(mod, Options{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 8)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, out[:4]) // "\0asm"
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, out[4:8]) // version 1
}

func TestCompileWithTraceIDAttachesToErrors(t *testing.T) {
	mod := simpleModule(
		ir.Return{Value: ir.Var{Name: "nope", Type: types.Int}},
	)
	_, err := Compile(mod, Options{TraceID: "run-42"})
	require.Error(t, err)

	var ce *errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "run-42", ce.TraceID)
}

func TestCompileEmptyModuleSucceeds(t *testing.T) {
	out, err := Compile(&ir.Module{}, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
