package ir

import (
	"testing"

	"github.com/anistark/waspy/types"
)

func TestExprMarkerInterfaces(t *testing.T) {
	var exprs = []Expr{
		IntConst{Value: 1},
		FloatConst{Value: 1.5},
		BoolConst{Value: true},
		StrConst{Value: "hi"},
		NoneConst{},
		Var{Name: "x", Type: types.Int},
		BinOp{Op: "+", L: IntConst{Value: 1}, R: IntConst{Value: 2}, Result: types.Int},
		Call{Callee: "len", Args: []Expr{StrConst{Value: "hi"}}, Result: types.Int},
	}
	for _, e := range exprs {
		_ = e.Pos()
	}
}

func TestStmtMarkerInterfaces(t *testing.T) {
	var stmts = []Stmt{
		Assign{Target: "x", Value: IntConst{Value: 1}},
		If{Cond: BoolConst{Value: true}, Then: []Stmt{Pass{}}},
		Return{Value: nil},
		Break{},
		Continue{},
	}
	for _, s := range stmts {
		_ = s.Pos()
	}
}

func TestModuleShape(t *testing.T) {
	mod := &Module{
		Functions: []*Function{
			{
				Name:       "add",
				Params:     []Param{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}},
				ReturnType: types.Int,
				Body: []Stmt{
					Return{Value: BinOp{Op: "+", L: Var{Name: "a", Type: types.Int}, R: Var{Name: "b", Type: types.Int}, Result: types.Int}},
				},
			},
		},
	}
	if len(mod.Functions) != 1 || mod.Functions[0].Name != "add" {
		t.Fatalf("unexpected module shape")
	}
}
