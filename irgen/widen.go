package irgen

import (
	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/types"
)

// scanWidening implements the widening rule: missing annotations
// default to Int unless any call site supplies a non-integer, in which
// case the parameter is widened to Any; widening is local to the
// converter and recorded per name. It walks every collected function
// and method body once, before lowering, looking for calls to a known
// plain function where a literal argument makes the supplied type
// visible without a full lowering pass.
func (c *Converter) scanWidening(prog *ast.Program) error {
	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *ast.FunctionDef:
			walkExprsInBlock(s.Body, c.widenFromCall)
		case *ast.ClassDef:
			for _, bs := range s.Body.Stmts {
				if fd, ok := bs.(*ast.FunctionDef); ok {
					walkExprsInBlock(fd.Body, c.widenFromCall)
				}
			}
		}
	}
	return nil
}

func (c *Converter) widenFromCall(e ast.Expr) {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return
	}
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return
	}
	sig, ok := c.funcs[id.Name]
	if !ok {
		return
	}
	for i, arg := range call.Args {
		if i >= len(sig.paramAnnotated) || sig.paramAnnotated[i] {
			continue
		}
		t, ok := inferLiteralType(arg)
		if !ok {
			continue
		}
		if types.Equal(t, types.Int) {
			continue
		}
		sig.paramTypes[i] = types.AnyTy
		sig.widened[sig.paramNames[i]] = true
	}
}

// inferLiteralType gives a best-effort static type for expressions
// whose type is visible without lowering: literals, f-strings, and a
// leading-minus unary applied to a numeric literal. Anything else
// returns ok=false, which the widening scan treats as "can't tell,
// don't widen" rather than a false-positive widen.
func inferLiteralType(e ast.Expr) (types.Type, bool) {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return types.Int, true
	case *ast.FloatLiteral:
		return types.Float, true
	case *ast.BoolLiteral:
		return types.Bool, true
	case *ast.StrLiteral:
		return types.Str, true
	case *ast.BytesLiteral:
		return types.Bytes, true
	case *ast.NoneLiteral:
		return types.None, true
	case *ast.FStringExpr:
		return types.Str, true
	case *ast.ListLiteral:
		return types.ListType{Elem: types.AnyTy}, true
	case *ast.DictLiteral:
		return types.DictType{Key: types.AnyTy, Value: types.AnyTy}, true
	case *ast.TupleLiteral:
		return types.TupleType{}, true
	case *ast.UnaryExpr:
		if e.Op == "-" {
			return inferLiteralType(e.Operand)
		}
	}
	return nil, false
}

// walkExprsInBlock calls visit on every expression reachable from
// body, recursing through every statement and expression shape this
// subset defines.
func walkExprsInBlock(body *ast.BlockStmt, visit func(ast.Expr)) {
	if body == nil {
		return
	}
	for _, s := range body.Stmts {
		walkExprsInStmt(s, visit)
	}
}

func walkExprsInStmt(s ast.Stmt, visit func(ast.Expr)) {
	switch s := s.(type) {
	case *ast.IfStmt:
		walkExprsInExpr(s.Cond, visit)
		walkExprsInBlock(s.Then, visit)
		walkExprsInBlock(s.Else, visit)
	case *ast.WhileStmt:
		walkExprsInExpr(s.Cond, visit)
		walkExprsInBlock(s.Body, visit)
	case *ast.ForStmt:
		walkExprsInExpr(s.Iterable, visit)
		walkExprsInBlock(s.Body, visit)
	case *ast.TryStmt:
		walkExprsInBlock(s.Body, visit)
		for _, h := range s.Handlers {
			walkExprsInBlock(h.Body, visit)
		}
		walkExprsInBlock(s.Finally, visit)
	case *ast.WithStmt:
		walkExprsInExpr(s.ContextExpr, visit)
		walkExprsInBlock(s.Body, visit)
	case *ast.RaiseStmt:
		walkExprsInExpr(s.Exc, visit)
	case *ast.ReturnStmt:
		walkExprsInExpr(s.Value, visit)
	case *ast.AssignStmt:
		walkExprsInExpr(s.Target, visit)
		walkExprsInExpr(s.Value, visit)
	case *ast.AugAssignStmt:
		walkExprsInExpr(s.Target, visit)
		walkExprsInExpr(s.Value, visit)
	case *ast.ExprStmt:
		walkExprsInExpr(s.Value, visit)
	}
}

func walkExprsInExpr(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *ast.BinaryExpr:
		walkExprsInExpr(e.Left, visit)
		walkExprsInExpr(e.Right, visit)
	case *ast.UnaryExpr:
		walkExprsInExpr(e.Operand, visit)
	case *ast.BoolOpExpr:
		for _, o := range e.Operands {
			walkExprsInExpr(o, visit)
		}
	case *ast.CompareExpr:
		walkExprsInExpr(e.Left, visit)
		walkExprsInExpr(e.Right, visit)
	case *ast.CallExpr:
		walkExprsInExpr(e.Callee, visit)
		for _, a := range e.Args {
			walkExprsInExpr(a, visit)
		}
	case *ast.AttributeExpr:
		walkExprsInExpr(e.Receiver, visit)
	case *ast.IndexExpr:
		walkExprsInExpr(e.Container, visit)
		walkExprsInExpr(e.Index, visit)
	case *ast.SliceExpr:
		walkExprsInExpr(e.Container, visit)
		walkExprsInExpr(e.Start, visit)
		walkExprsInExpr(e.Stop, visit)
		walkExprsInExpr(e.Step, visit)
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			walkExprsInExpr(el, visit)
		}
	case *ast.DictLiteral:
		for _, k := range e.Keys {
			walkExprsInExpr(k, visit)
		}
		for _, v := range e.Values {
			walkExprsInExpr(v, visit)
		}
	case *ast.TupleLiteral:
		for _, el := range e.Elements {
			walkExprsInExpr(el, visit)
		}
	case *ast.FStringExpr:
		for _, p := range e.Parts {
			walkExprsInExpr(p.Expr, visit)
		}
	case *ast.FormatPercentExpr:
		walkExprsInExpr(e.Format, visit)
		for _, a := range e.Args {
			walkExprsInExpr(a, visit)
		}
	case *ast.ListCompExpr:
		walkExprsInExpr(e.Element, visit)
		walkExprsInExpr(e.Iterable, visit)
		walkExprsInExpr(e.Cond, visit)
	case *ast.YieldExpr:
		walkExprsInExpr(e.Value, visit)
	case *ast.AwaitExpr:
		walkExprsInExpr(e.Value, visit)
	case *ast.LambdaExpr:
		walkExprsInExpr(e.Body, visit)
	}
}
