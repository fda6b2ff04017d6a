package ast

import (
	"testing"

	"github.com/anistark/waspy/token"
)

func TestProgramString(t *testing.T) {
	prog := &Program{
		Stmts: []Stmt{
			&AssignStmt{
				Target: &Identifier{Name: "x", P: token.Position{Line: 1}},
				Value:  &IntLiteral{Value: 5, P: token.Position{Line: 1}},
				P:      token.Position{Line: 1},
			},
		},
	}

	if prog.String() != "x = 5\n" {
		t.Fatalf("unexpected program string: %q", prog.String())
	}
}

func TestFunctionDefString(t *testing.T) {
	fn := &FunctionDef{
		Name: "add",
		Params: []Param{
			{Name: "a", Annotation: &TypeAnnotation{Text: "int"}},
			{Name: "b", Annotation: &TypeAnnotation{Text: "int"}},
		},
		Body: &BlockStmt{},
	}

	if fn.String() != "def add(a, b)" {
		t.Fatalf("unexpected function string: %q", fn.String())
	}
}
