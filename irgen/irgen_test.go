package irgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// These drive Convert directly from an *ast.Program, distinct from the
// compiler package's tests which start from an already-lowered *ir.Module.

func TestConvertSimpleFunction(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
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
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)

	fn := mod.Functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, types.Int, fn.ReturnType)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, types.Int, fn.Params[0].Type)
	require.Len(t, fn.Body, 1)

	ret, ok := fn.Body[0].(ir.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(ir.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestConvertUnannotatedParamDefaultsToInt(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
				Name:   "identity",
				Params: []ast.Param{{Name: "x"}},
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.Identifier{Name: "x"}},
				}},
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, types.Int, mod.Functions[0].Params[0].Type)
}

func TestConvertReturnTypeInferredFromJoinedReturns(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
				Name:   "pick",
				Params: []ast.Param{{Name: "flag", Annotation: &ast.TypeAnnotation{Text: "bool"}}},
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.IfStmt{
						Cond: &ast.Identifier{Name: "flag"},
						Then: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ReturnStmt{Value: &ast.IntLiteral{Value: 1}},
						}},
						Else: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ReturnStmt{Value: &ast.FloatLiteral{Value: 2.5}},
						}},
					},
				}},
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, types.Float, mod.Functions[0].ReturnType, "int/float join widens to float")
}

func TestConvertClassFieldOrderFromInit(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.ClassDef{
				Name: "Point",
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.FunctionDef{
						Name:   "__init__",
						Params: []ast.Param{{Name: "self"}, {Name: "x", Annotation: &ast.TypeAnnotation{Text: "int"}}, {Name: "y", Annotation: &ast.TypeAnnotation{Text: "int"}}},
						Body: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.AssignStmt{
								Target: &ast.AttributeExpr{Receiver: &ast.Identifier{Name: "self"}, Name: "x"},
								Value:  &ast.Identifier{Name: "x"},
							},
							&ast.AssignStmt{
								Target: &ast.AttributeExpr{Receiver: &ast.Identifier{Name: "self"}, Name: "y"},
								Value:  &ast.Identifier{Name: "y"},
							},
						}},
					},
				}},
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)

	cls := mod.Classes[0]
	assert.Equal(t, "Point", cls.Name)
	require.Len(t, cls.Fields, 2)
	assert.Equal(t, "x", cls.Fields[0].Name)
	assert.Equal(t, "y", cls.Fields[1].Name)
	require.NotNil(t, cls.Init)
}

func TestConvertUnknownDecoratorFails(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
				Name:       "f",
				Decorators: []*ast.Decorator{{Name: "not_a_real_decorator"}},
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IntLiteral{Value: 0}},
				}},
			},
		},
	}

	_, err := Convert(prog, nil)
	require.Error(t, err)

	var ce *errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.UnsupportedDecorator, ce.Kind)
}

func TestConvertInvalidAnnotationFails(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
				Name:   "f",
				Params: []ast.Param{{Name: "x", Annotation: &ast.TypeAnnotation{Text: "not[a[valid]]annotation"}}},
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IntLiteral{Value: 0}},
				}},
			},
		},
	}

	_, err := Convert(prog, nil)
	require.Error(t, err)

	var ce *errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.TypeAnnotationInvalid, ce.Kind)
}

func TestConvertMemoizeDecoratorSynthesizesImplFunction(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.FunctionDef{
				Name:       "fib",
				Decorators: []*ast.Decorator{{Name: "memoize"}},
				Params:     []ast.Param{{Name: "n", Annotation: &ast.TypeAnnotation{Text: "int"}}},
				ReturnType: &ast.TypeAnnotation{Text: "int"},
				Body: &ast.BlockStmt{Stmts: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.Identifier{Name: "n"}},
				}},
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)

	var names []string
	for _, fn := range mod.Functions {
		names = append(names, fn.Name)
	}
	assert.Contains(t, names, "fib")
	assert.Greater(t, len(mod.Functions), 1, "memoize rewrite synthesizes an extra $impl function")
}

func TestConvertModuleLevelVariable(t *testing.T) {
	prog := &ast.Program{
		Stmts: []ast.Stmt{
			&ast.AssignStmt{
				Target: &ast.Identifier{Name: "LIMIT"},
				Value:  &ast.IntLiteral{Value: 100},
			},
		},
	}

	mod, err := Convert(prog, nil)
	require.NoError(t, err)
	require.Len(t, mod.ModuleVars, 1)
	assert.Equal(t, "LIMIT", mod.ModuleVars[0].Target)
}
