package wasmrun

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anistark/waspy/compiler"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// These tests exercise end-to-end compiled programs: a hand-built
// *ir.Module (standing in for what irgen would produce from a parsed
// source file) goes through compiler.Compile, and the resulting bytes
// are loaded into a real engine via this package — this is what
// actually checks module validity, since a module that failed to
// validate would fail at Load, not later.

func mustCompile(t *testing.T, mod *ir.Module) *Module {
	t.Helper()
	out, err := compiler.Compile(mod, compiler.Options{})
	require.NoError(t, err)
	m, err := Load(context.Background(), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

// TestAddition covers a two-argument integer function.
func TestAddition(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "add",
				Params:     []ir.Param{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Return{Value: ir.BinOp{Op: "+", L: ir.Var{Name: "a", Type: types.Int}, R: ir.Var{Name: "b", Type: types.Int}, Result: types.Int}},
				},
			},
		},
	}
	m := mustCompile(t, mod)
	got, err := m.CallI32(context.Background(), "add", 40, 2)
	require.NoError(t, err)
	require.EqualValues(t, 42, got)
}

// TestFactorial covers a while-loop accumulator.
func TestFactorial(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "factorial",
				Params:     []ir.Param{{Name: "n", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Assign{Target: "result", Value: ir.IntConst{Value: 1}},
					ir.Assign{Target: "i", Value: ir.IntConst{Value: 1}},
					ir.While{
						Cond: ir.Compare{Op: "<=", L: ir.Var{Name: "i", Type: types.Int}, R: ir.Var{Name: "n", Type: types.Int}},
						Body: []ir.Stmt{
							ir.AugAssign{Target: "result", Op: "*", Value: ir.Var{Name: "i", Type: types.Int}},
							ir.AugAssign{Target: "i", Op: "+", Value: ir.IntConst{Value: 1}},
						},
					},
					ir.Return{Value: ir.Var{Name: "result", Type: types.Int}},
				},
			},
		},
	}
	m := mustCompile(t, mod)

	got, err := m.CallI32(context.Background(), "factorial", 5)
	require.NoError(t, err)
	require.EqualValues(t, 120, got)

	got, err = m.CallI32(context.Background(), "factorial", 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, got)
}

// TestBranching covers a ternary lowered as an If/Return pair; ir has
// no dedicated ternary Expr case, so the equivalent statement form is
// built directly.
func TestBranching(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "max_num",
				Params:     []ir.Param{{Name: "a", Type: types.Float}, {Name: "b", Type: types.Float}},
				ReturnType: types.Float,
				Body: []ir.Stmt{
					ir.If{
						Cond: ir.Compare{Op: ">", L: ir.Var{Name: "a", Type: types.Float}, R: ir.Var{Name: "b", Type: types.Float}},
						Then: []ir.Stmt{ir.Return{Value: ir.Var{Name: "a", Type: types.Float}}},
						Else: []ir.Stmt{ir.Return{Value: ir.Var{Name: "b", Type: types.Float}}},
					},
				},
			},
		},
	}
	m := mustCompile(t, mod)

	got, err := m.CallF64(context.Background(), "max_num", 42.0, 17.0)
	require.NoError(t, err)
	require.Equal(t, 42.0, got)

	got, err = m.CallF64(context.Background(), "max_num", -1.0, -1.0)
	require.NoError(t, err)
	require.Equal(t, -1.0, got)
}

// TestFibonacci covers a range-based for loop.
func TestFibonacci(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "fib",
				Params:     []ir.Param{{Name: "n", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Assign{Target: "a", Value: ir.IntConst{Value: 0}},
					ir.Assign{Target: "b", Value: ir.IntConst{Value: 1}},
					ir.For{
						Var:      "_",
						IterKind: ir.IterRange,
						Iterable: ir.RangeCall{Start: ir.IntConst{Value: 0}, Stop: ir.Var{Name: "n", Type: types.Int}, Step: ir.IntConst{Value: 1}},
						Body: []ir.Stmt{
							ir.Assign{Target: "tmp", Value: ir.Var{Name: "a", Type: types.Int}},
							ir.Assign{Target: "a", Value: ir.Var{Name: "b", Type: types.Int}},
							ir.Assign{Target: "b", Value: ir.BinOp{Op: "+", L: ir.Var{Name: "tmp", Type: types.Int}, R: ir.Var{Name: "b", Type: types.Int}, Result: types.Int}},
						},
					},
					ir.Return{Value: ir.Var{Name: "a", Type: types.Int}},
				},
			},
		},
	}
	m := mustCompile(t, mod)

	for n, want := range map[int32]int32{0: 0, 1: 1, 10: 55} {
		got, err := m.CallI32(context.Background(), "fib", n)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// TestSafeDiv covers `try: return a//b; except ZeroDivisionError:
// return -1`.
func TestSafeDiv(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "safe_div",
				Params:     []ir.Param{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Try{
						Body: []ir.Stmt{
							ir.Return{Value: ir.BinOp{Op: "//", L: ir.Var{Name: "a", Type: types.Int}, R: ir.Var{Name: "b", Type: types.Int}, Result: types.Int}},
						},
						Handlers: []*ir.Handler{
							{TypeName: "ZeroDivisionError", Tag: 1, Body: []ir.Stmt{
								ir.Return{Value: ir.IntConst{Value: -1}},
							}},
						},
					},
				},
			},
		},
	}
	m := mustCompile(t, mod)

	got, err := m.CallI32(context.Background(), "safe_div", 10, 3)
	require.NoError(t, err)
	require.EqualValues(t, 3, got)

	got, err = m.CallI32(context.Background(), "safe_div", 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, -1, got)
}

// TestClassInstances covers a Point class whose two instances occupy
// distinct memory regions.
func TestClassInstances(t *testing.T) {
	pointType := types.ClassType{Name: "Point"}
	selfVar := ir.Var{Name: "self", Type: pointType}

	initFn := &ir.Function{
		Name:       "__init__",
		IsMethod:   true,
		OwnerClass: "Point",
		Params:     []ir.Param{{Name: "x", Type: types.Int}, {Name: "y", Type: types.Int}},
		ReturnType: types.None,
		Body: []ir.Stmt{
			ir.AttrAssign{Object: selfVar, Name: "x", OwnerClass: "Point", Value: ir.Var{Name: "x", Type: types.Int}},
			ir.AttrAssign{Object: selfVar, Name: "y", OwnerClass: "Point", Value: ir.Var{Name: "y", Type: types.Int}},
		},
	}
	sumxyFn := &ir.Function{
		Name:       "sumxy",
		IsMethod:   true,
		OwnerClass: "Point",
		ReturnType: types.Int,
		Body: []ir.Stmt{
			ir.Return{Value: ir.BinOp{
				Op:     "+",
				L:      ir.Attribute{Receiver: selfVar, Name: "x", OwnerClass: "Point", Result: types.Int},
				R:      ir.Attribute{Receiver: selfVar, Name: "y", OwnerClass: "Point", Result: types.Int},
				Result: types.Int,
			}},
		},
	}

	mod := &ir.Module{
		Classes: []*ir.Class{
			{
				Name:    "Point",
				Fields:  []ir.Param{{Name: "x", Type: types.Int}, {Name: "y", Type: types.Int}},
				Init:    initFn,
				Methods: []*ir.Function{sumxyFn},
			},
		},
		Functions: []*ir.Function{
			{
				Name:       "point_sum",
				Params:     []ir.Param{{Name: "x", Type: types.Int}, {Name: "y", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Assign{Target: "p", Value: ir.Call{Callee: "Point", Args: []ir.Expr{
						ir.Var{Name: "x", Type: types.Int}, ir.Var{Name: "y", Type: types.Int},
					}, Result: pointType}},
					ir.Return{Value: ir.MethodCall{
						Receiver:   ir.Var{Name: "p", Type: pointType},
						Name:       "sumxy",
						OwnerClass: "Point",
						Result:     types.Int,
					}},
				},
			},
		},
	}
	m := mustCompile(t, mod)

	got, err := m.CallI32(context.Background(), "point_sum", 3, 4)
	require.NoError(t, err)
	require.EqualValues(t, 7, got)

	// A second, independent construction must not see the first
	// instance's fields (distinct memory regions).
	got, err = m.CallI32(context.Background(), "point_sum", 10, -3)
	require.NoError(t, err)
	require.EqualValues(t, 7, got)
}
