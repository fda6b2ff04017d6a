package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anistark/waspy/ast"
)

// addProgram builds the ast.Program for:
//
//	def add(a: int, b: int) -> int:
//	    return a + b
func addProgram() *ast.Program {
	fn := &ast.FunctionDef{
		Name: "add",
		Params: []ast.Param{
			{Name: "a", Annotation: &ast.TypeAnnotation{Text: "int"}},
			{Name: "b", Annotation: &ast.TypeAnnotation{Text: "int"}},
		},
		ReturnType: &ast.TypeAnnotation{Text: "int"},
		Body: &ast.BlockStmt{Stmts: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{
				Op:    "+",
				Left:  &ast.Identifier{Name: "a"},
				Right: &ast.Identifier{Name: "b"},
			}},
		}},
	}
	return &ast.Program{Stmts: []ast.Stmt{fn}}
}

func writeProgramFile(t *testing.T, prog *ast.Program) string {
	t.Helper()
	data, err := json.Marshal(prog)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "program.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestCompileCommandWritesWasm(t *testing.T) {
	path := writeProgramFile(t, addProgram())
	outPath := filepath.Join(t.TempDir(), "out.wasm")

	buf := &bytes.Buffer{}
	cmd := newCompileCommand(&rootOptions{})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "-o", outPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "compiled 1 function(s)")

	wasmBytes, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotEmpty(t, wasmBytes)
	// Every WASM module starts with the magic number \0asm.
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, wasmBytes[:4])
}

func TestCompileCommandRejectsMissingFile(t *testing.T) {
	cmd := newCompileCommand(&rootOptions{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, cmd.Execute())
}

func TestLoadProgramRoundTrip(t *testing.T) {
	path := writeProgramFile(t, addProgram())
	prog, err := loadProgram(path)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 1)

	fn, ok := prog.Stmts[0].(*ast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Len(t, fn.Params, 2)
	assert.Equal(t, "int", fn.ReturnType.Text)

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}
