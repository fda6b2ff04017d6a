package irgen

import (
	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/types"
)

// inferReturnTypes resolves every unannotated function/method's return
// type by joining its Return statements' static types, run once after
// collectProgram so every funcSig.returnType
// is final before any call site is lowered — a forward call's
// ir.Call.Result must already be correct, since the compiler trusts it
// verbatim (see compiler/expr_call.go's emitDirectCall).
func (c *Converter) inferReturnTypes() {
	for _, name := range c.funcOrder {
		c.inferOneReturnType(c.funcs[name])
	}
	for _, cname := range c.classOrder {
		cls := c.classes[cname]
		if cls.init != nil {
			c.inferOneReturnType(cls.init)
		}
		for _, mname := range cls.methodOrder {
			c.inferOneReturnType(cls.methods[mname])
		}
	}
}

func (c *Converter) inferOneReturnType(sig *funcSig) {
	if sig.returnAnnotated {
		return
	}
	paramTypes := make(map[string]types.Type, len(sig.paramNames))
	for i, n := range sig.paramNames {
		paramTypes[n] = sig.paramTypes[i]
	}

	var found []types.Type
	var walk func(body *ast.BlockStmt)
	var walkStmt func(ast.Stmt)
	walk = func(body *ast.BlockStmt) {
		if body == nil {
			return
		}
		for _, s := range body.Stmts {
			walkStmt(s)
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.ReturnStmt:
			if s.Value == nil {
				found = append(found, types.None)
				return
			}
			t, ok := inferStaticExprType(s.Value, paramTypes, c.classes)
			if !ok {
				t = types.Int
			}
			found = append(found, t)
		case *ast.IfStmt:
			walk(s.Then)
			walk(s.Else)
		case *ast.WhileStmt:
			walk(s.Body)
		case *ast.ForStmt:
			walk(s.Body)
		case *ast.TryStmt:
			walk(s.Body)
			for _, h := range s.Handlers {
				walk(h.Body)
			}
			walk(s.Finally)
		case *ast.WithStmt:
			walk(s.Body)
		}
	}
	walk(sig.astNode.Body)

	if len(found) == 0 {
		sig.returnType = types.None
		return
	}
	sig.returnType = types.Join(found)
}

// inferStaticExprType extends inferLiteralType with parameter lookups
// and simple binary/compare/bool-op composition, for return-type join
// inference only — it never drives actual code emission.
func inferStaticExprType(e ast.Expr, paramTypes map[string]types.Type, classes map[string]*classSig) (types.Type, bool) {
	switch e := e.(type) {
	case *ast.Identifier:
		if t, ok := paramTypes[e.Name]; ok {
			return t, true
		}
		return nil, false
	case *ast.BinaryExpr:
		lt, lok := inferStaticExprType(e.Left, paramTypes, classes)
		rt, rok := inferStaticExprType(e.Right, paramTypes, classes)
		if !lok || !rok {
			return nil, false
		}
		return binOpResultType(e.Op, lt, rt), true
	case *ast.UnaryExpr:
		if e.Op == "not" {
			return types.Bool, true
		}
		return inferStaticExprType(e.Operand, paramTypes, classes)
	case *ast.CompareExpr:
		return types.Bool, true
	case *ast.BoolOpExpr:
		return types.Bool, true
	case *ast.CallExpr:
		if id, ok := e.Callee.(*ast.Identifier); ok {
			if t, ok := annotatedBuiltinReturn(id.Name); ok {
				return t, true
			}
		}
	}
	return inferLiteralType(e)
}

func annotatedBuiltinReturn(name string) (types.Type, bool) {
	switch name {
	case "len", "sum":
		return types.Int, true
	case "int":
		return types.Int, true
	case "float":
		return types.Float, true
	case "str":
		return types.Str, true
	case "bool":
		return types.Bool, true
	}
	return nil, false
}
