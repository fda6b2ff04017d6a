package refinterp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// buildAddModule builds a two-argument integer addition function.
func buildAddModule() *ir.Module {
	return &ir.Module{
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
}

// buildFactorialModule builds a factorial function using a while loop.
func buildFactorialModule() *ir.Module {
	return &ir.Module{
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
}

// buildFibModule builds an iterative Fibonacci function.
func buildFibModule() *ir.Module {
	return &ir.Module{
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
}

func TestRefinterpAdd(t *testing.T) {
	in := New(buildAddModule())
	v, err := in.Call("add", IntVal(40), IntVal(2))
	require.NoError(t, err)
	require.Equal(t, IntVal(42), v)
}

func TestRefinterpFactorial(t *testing.T) {
	in := New(buildFactorialModule())

	v, err := in.Call("factorial", IntVal(5))
	require.NoError(t, err)
	require.Equal(t, IntVal(120), v)

	v, err = in.Call("factorial", IntVal(0))
	require.NoError(t, err)
	require.Equal(t, IntVal(1), v)
}

func TestRefinterpFib(t *testing.T) {
	in := New(buildFibModule())

	cases := map[int64]int64{0: 0, 1: 1, 10: 55}
	for n, want := range cases {
		v, err := in.Call("fib", IntVal(n))
		require.NoError(t, err)
		require.Equal(t, IntVal(want), v)
	}
}

func TestRefinterpBoolOpShortCircuit(t *testing.T) {
	mod := &ir.Module{
		Functions: []*ir.Function{
			{
				Name:       "pick",
				Params:     []ir.Param{{Name: "a", Type: types.Bool}, {Name: "b", Type: types.Int}},
				ReturnType: types.Int,
				Body: []ir.Stmt{
					ir.Return{Value: ir.BoolOp{Op: "or", Operands: []ir.Expr{
						ir.Var{Name: "a", Type: types.Bool},
						ir.Var{Name: "b", Type: types.Int},
					}}},
				},
			},
		},
	}
	in := New(mod)
	v, err := in.Call("pick", BoolVal(false), IntVal(7))
	require.NoError(t, err)
	require.Equal(t, IntVal(7), v)
}
