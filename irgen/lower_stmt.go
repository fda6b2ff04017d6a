package irgen

import (
	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

func (c *Converter) lowerBlock(lc *lctx, body *ast.BlockStmt) ([]ir.Stmt, error) {
	if body == nil {
		return nil, nil
	}
	var out []ir.Stmt
	for _, s := range body.Stmts {
		st, err := c.lowerStmt(lc, s)
		if err != nil {
			return nil, err
		}
		if st == nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Converter) lowerStmt(lc *lctx, s ast.Stmt) (ir.Stmt, error) {
	switch s := s.(type) {
	case *ast.FunctionDef, *ast.ClassDef:
		// A nested def/class inside a function body has no analogue in
		// this IR's flat Module.Functions/Classes shape; the subset this
		// compiler targets declares both only at module or
		// class-body scope.
		return nil, errs.NewUnsupportedConstruct(s.Pos(), "nested-definition")

	case *ast.IfStmt:
		cond, _, err := c.lowerExpr(lc, s.Cond)
		if err != nil {
			return nil, err
		}
		then, err := c.lowerBlock(lc, s.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.lowerBlock(lc, s.Else)
		if err != nil {
			return nil, err
		}
		return ir.If{Cond: cond, Then: then, Else: els, P: s.P}, nil

	case *ast.WhileStmt:
		cond, _, err := c.lowerExpr(lc, s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := c.lowerBlock(lc, s.Body)
		if err != nil {
			return nil, err
		}
		return ir.While{Cond: cond, Body: body, P: s.P}, nil

	case *ast.ForStmt:
		return c.lowerForStmt(lc, s)

	case *ast.TryStmt:
		return c.lowerTryStmt(lc, s)

	case *ast.WithStmt:
		ctx, ctxT, err := c.lowerExpr(lc, s.ContextExpr)
		if err != nil {
			return nil, err
		}
		if s.AsVar != "" {
			lc.declare(s.AsVar, ctxT)
		}
		body, err := c.lowerBlock(lc, s.Body)
		if err != nil {
			return nil, err
		}
		return ir.With{CtxExpr: ctx, AsVar: s.AsVar, Body: body, P: s.P}, nil

	case *ast.RaiseStmt:
		return c.lowerRaiseStmt(s)

	case *ast.ReturnStmt:
		var ve ir.Expr
		if s.Value != nil {
			var err error
			ve, _, err = c.lowerExpr(lc, s.Value)
			if err != nil {
				return nil, err
			}
		}
		return ir.Return{Value: ve, P: s.P}, nil

	case *ast.AssignStmt:
		return c.lowerAssignStmt(lc, s)

	case *ast.AugAssignStmt:
		return c.lowerAugAssignStmt(lc, s)

	case *ast.ExprStmt:
		ve, _, err := c.lowerExpr(lc, s.Value)
		if err != nil {
			return nil, err
		}
		return ir.ExprStmt{Value: ve, P: s.P}, nil

	case *ast.ImportStmt:
		return ir.ImportModule{Name: s.Name, Alias: s.Alias, P: s.P}, nil

	case *ast.BreakStmt:
		return ir.Break{P: s.P}, nil

	case *ast.ContinueStmt:
		return ir.Continue{P: s.P}, nil

	case *ast.PassStmt:
		return ir.Pass{P: s.P}, nil
	}
	return nil, errs.NewUnsupportedConstruct(s.Pos(), "statement")
}

// isSequenceType reports whether t is one of the two non-range
// for-loop sources ("list, str, or bytes", per ir.For.IterKind's doc
// comment; a tuple iterates the same way a list does).
func isSequenceType(t types.Type) bool {
	switch t.(type) {
	case types.ListType, types.TupleType:
		return true
	}
	return types.Equal(t, types.Str) || types.Equal(t, types.Bytes)
}

func (c *Converter) lowerForStmt(lc *lctx, s *ast.ForStmt) (ir.Stmt, error) {
	iterE, iterT, err := c.lowerExpr(lc, s.Iterable)
	if err != nil {
		return nil, err
	}
	var kind ir.IterKind
	switch {
	case types.Equal(iterT, types.RangeTy):
		kind = ir.IterRange
	case isSequenceType(iterT):
		kind = ir.IterSequence
	default:
		return nil, errs.NewUnsupportedIteration(s.P, iterT.Signature())
	}
	lc.declare(s.Var, elementTypeOf(iterT))
	body, err := c.lowerBlock(lc, s.Body)
	if err != nil {
		return nil, err
	}
	return ir.For{Var: s.Var, Iterable: iterE, IterKind: kind, Body: body, P: s.P}, nil
}

func (c *Converter) lowerRaiseStmt(s *ast.RaiseStmt) (ir.Stmt, error) {
	if s.Exc == nil {
		return ir.Raise{P: s.P}, nil
	}
	call, ok := s.Exc.(*ast.CallExpr)
	if !ok {
		return nil, errs.NewUnsupportedConstruct(s.P, "raise-non-call-exception")
	}
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return nil, errs.NewUnsupportedConstruct(s.P, "raise-non-call-exception")
	}
	tag, ok := resolveExceptionTag(id.Name)
	if !ok || tag == 0 {
		return nil, errs.NewUnsupportedConstruct(s.P, "raise-unknown-exception-type-"+id.Name)
	}
	// The exception-state model is tag-only: a raised exception's
	// constructor arguments carry no further runtime representation, so
	// they are not lowered or evaluated.
	return ir.Raise{Tag: tag, P: s.P}, nil
}

func (c *Converter) lowerTryStmt(lc *lctx, s *ast.TryStmt) (ir.Stmt, error) {
	body, err := c.lowerBlock(lc, s.Body)
	if err != nil {
		return nil, err
	}
	var handlers []*ir.Handler
	for _, h := range s.Handlers {
		tag := 0
		if h.TypeName != "" {
			t, ok := resolveExceptionTag(h.TypeName)
			if !ok {
				return nil, errs.NewUnsupportedConstruct(h.P, "except-unknown-exception-type-"+h.TypeName)
			}
			tag = t
		}
		if h.VarName != "" {
			lc.declare(h.VarName, types.AnyTy)
		}
		hbody, err := c.lowerBlock(lc, h.Body)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, &ir.Handler{TypeName: h.TypeName, VarName: h.VarName, Tag: tag, Body: hbody})
	}
	var finally []ir.Stmt
	if s.Finally != nil {
		finally, err = c.lowerBlock(lc, s.Finally)
		if err != nil {
			return nil, err
		}
	}
	return ir.Try{Body: body, Handlers: handlers, Finally: finally, P: s.P}, nil
}

func (c *Converter) lowerAssignStmt(lc *lctx, s *ast.AssignStmt) (ir.Stmt, error) {
	switch target := s.Target.(type) {
	case *ast.Identifier:
		ve, vt, err := c.lowerExpr(lc, s.Value)
		if err != nil {
			return nil, err
		}
		lc.declare(target.Name, vt)
		return ir.Assign{Target: target.Name, Value: ve, P: s.P}, nil

	case *ast.IndexExpr:
		ce, _, err := c.lowerExpr(lc, target.Container)
		if err != nil {
			return nil, err
		}
		ke, _, err := c.lowerExpr(lc, target.Index)
		if err != nil {
			return nil, err
		}
		ve, _, err := c.lowerExpr(lc, s.Value)
		if err != nil {
			return nil, err
		}
		return ir.IndexAssign{Container: ce, Key: ke, Value: ve, P: s.P}, nil

	case *ast.AttributeExpr:
		re, rt, err := c.lowerExpr(lc, target.Receiver)
		if err != nil {
			return nil, err
		}
		className, ok := classOf(rt)
		if !ok {
			return nil, errs.NewUnsupportedConstruct(s.P, "attribute-assign-on-unresolved-receiver-type")
		}
		ve, vt, err := c.lowerExpr(lc, s.Value)
		if err != nil {
			return nil, err
		}
		// emitAttribute always loads/stores exactly one i32 cell ("no
		// header" instance layout, one cell per field) — a field
		// whose value needs two cells (Str) or a different WASM kind
		// (Float) can't be represented, the same container-element
		// restriction compiler/expr.go's emitIndex already enforces.
		if kinds := vt.WasmKinds(); len(kinds) != 1 || kinds[0] != types.KindI32 {
			return nil, errs.NewUnsupportedConstruct(s.P, "non-i32-class-field")
		}
		if cls, ok := c.classes[className]; ok {
			if existing, known := cls.fieldTypes[target.Name]; !known || types.Equal(existing, types.Unknown) {
				cls.fieldTypes[target.Name] = vt
			}
		}
		return ir.AttrAssign{Object: re, Name: target.Name, OwnerClass: className, Value: ve, P: s.P}, nil
	}
	return nil, errs.NewUnsupportedConstruct(s.P, "assignment-target")
}

func (c *Converter) lowerAugAssignStmt(lc *lctx, s *ast.AugAssignStmt) (ir.Stmt, error) {
	id, ok := s.Target.(*ast.Identifier)
	if !ok {
		return nil, errs.NewUnsupportedConstruct(s.P, "aug-assign-target")
	}
	if _, ok := lc.lookup(id.Name); !ok {
		return nil, errs.NewUnknownVariable(s.P, id.Name)
	}
	ve, _, err := c.lowerExpr(lc, s.Value)
	if err != nil {
		return nil, err
	}
	return ir.AugAssign{Target: id.Name, Op: s.Op, Value: ve, P: s.P}, nil
}

// lowerModuleVars lowers every top-level plain assignment into an
// ir.Module.ModuleVars entry, in source order, so later
// initializers can read earlier ones exactly as the emitted start
// function will run them. Top-level def/class statements are handled
// separately; a top-level import is inert and carries no IR
// representation (ir.Module has no generic top-level statement list to
// put it in); any other top-level statement shape is rejected, since
// this subset's module scope is declarations and constant-style setup
// only.
func (c *Converter) lowerModuleVars(prog *ast.Program) error {
	mlc := newLctx(c, nil, "")
	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *ast.FunctionDef, *ast.ClassDef, *ast.ImportStmt, *ast.PassStmt:
			continue
		case *ast.AssignStmt:
			id, ok := s.Target.(*ast.Identifier)
			if !ok {
				return errs.NewUnsupportedConstruct(s.P, "module-level-assign-target")
			}
			ve, vt, err := c.lowerExpr(mlc, s.Value)
			if err != nil {
				return err
			}
			c.moduleVarTypes[id.Name] = vt
			c.moduleVars = append(c.moduleVars, &ir.Assign{Target: id.Name, Value: ve, P: s.P})
		default:
			return errs.NewUnsupportedConstruct(s.Pos(), "module-level-statement")
		}
	}
	return nil
}

func (c *Converter) lowerTopLevelFunction(sig *funcSig) (*ir.Function, error) {
	fn, err := c.lowerFunctionBody(sig)
	if err != nil {
		return nil, err
	}
	if sig.memoize {
		return c.applyMemoize(sig, fn)
	}
	return fn, nil
}

func (c *Converter) lowerFunctionBody(sig *funcSig) (*ir.Function, error) {
	lc := newLctx(c, sig, sig.ownerClass)
	var params []ir.Param
	for i, name := range sig.paramNames {
		lc.declare(name, sig.paramTypes[i])
		params = append(params, ir.Param{Name: name, Type: sig.paramTypes[i]})
	}
	body, err := c.lowerBlock(lc, sig.astNode.Body)
	if err != nil {
		return nil, err
	}
	var decs []ir.Decorator
	for _, d := range sig.decorators {
		decs = append(decs, ir.Decorator{Name: d.Name})
	}
	return &ir.Function{
		Name:       sig.name,
		Params:     params,
		ReturnType: sig.returnType,
		Body:       body,
		Decorators: decs,
		IsMethod:   sig.isMethod,
		OwnerClass: sig.ownerClass,
		P:          sig.astNode.P,
	}, nil
}

func (c *Converter) lowerClass(cls *classSig) (*ir.Class, error) {
	var initFn *ir.Function
	if cls.init != nil {
		fn, err := c.lowerFunctionBody(cls.init)
		if err != nil {
			return nil, err
		}
		initFn = fn
	}

	var fields []ir.Param
	for _, name := range cls.fieldOrder {
		ft := cls.fieldTypes[name]
		if ft == nil || types.Equal(ft, types.Unknown) {
			ft = types.Int
		}
		fields = append(fields, ir.Param{Name: name, Type: ft})
	}

	var methods []*ir.Function
	for _, mname := range cls.methodOrder {
		fn, err := c.lowerFunctionBody(cls.methods[mname])
		if err != nil {
			return nil, err
		}
		methods = append(methods, fn)
	}

	pos := cls.pos
	return &ir.Class{Name: cls.name, Fields: fields, Methods: methods, Init: initFn, P: pos}, nil
}
