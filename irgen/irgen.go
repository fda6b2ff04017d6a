// Package irgen is the AST→IR converter: it lowers an *ast.Program
// produced by the external, out-of-scope surface-syntax parser into an
// *ir.Module the compiler package can emit. Implemented as a two-pass
// converter: a collect pass registers every class/function name and
// field layout so forward references and mutual recursion resolve,
// then a lower pass walks bodies and produces ir.Expr/ir.Stmt trees.
package irgen

import (
	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/decorators"
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/token"
	"github.com/anistark/waspy/types"
)

// funcSig is the collect pass's record of one function or method,
// carrying enough to resolve calls and widen parameters before any
// body is lowered.
type funcSig struct {
	name            string
	astNode         *ast.FunctionDef
	paramNames      []string
	paramTypes      []types.Type
	paramAnnotated  []bool
	widened         map[string]bool
	returnType      types.Type
	returnAnnotated bool
	isMethod        bool
	ownerClass      string
	decorators      []decorators.Decorator
	memoize         bool
}

// classSig is the collect pass's record of one class: its field layout
// (derived from `self.x = …` assignment order inside `__init__`) and
// its method table.
type classSig struct {
	name        string
	pos         token.Position
	fieldOrder  []string
	fieldTypes  map[string]types.Type
	methods     map[string]*funcSig
	methodOrder []string
	init        *funcSig
}

// Converter holds the collect pass's results across both passes and
// accumulates the lower pass's output.
type Converter struct {
	registry *decorators.Registry
	opts     Options

	funcs     map[string]*funcSig
	funcOrder []string

	classes    map[string]*classSig
	classOrder []string

	moduleVars     []*ir.Assign
	moduleVarTypes map[string]types.Type

	memoSeq    int
	extraFuncs []*ir.Function // memoize-rewrite-synthesized "$impl" functions
}

// NewConverter returns a Converter using reg to resolve decorators. A
// nil reg uses decorators.NewRegistry()'s built-in table only.
func NewConverter(reg *decorators.Registry) *Converter {
	return NewConverterWithOptions(reg, Options{})
}

// NewConverterWithOptions is NewConverter plus logging/trace-id
// configuration. opts.Registry, when set, takes priority over reg.
func NewConverterWithOptions(reg *decorators.Registry, opts Options) *Converter {
	if opts.Registry != nil {
		reg = opts.Registry
	}
	if reg == nil {
		reg = decorators.NewRegistry()
	}
	return &Converter{
		registry:       reg,
		opts:           opts,
		funcs:          make(map[string]*funcSig),
		classes:        make(map[string]*classSig),
		moduleVarTypes: make(map[string]types.Type),
	}
}

// Convert is the package's entry point: collect, then widen, then
// lower, then assemble the finished *ir.Module.
func Convert(prog *ast.Program, reg *decorators.Registry) (*ir.Module, error) {
	c := NewConverter(reg)
	return c.Convert(prog)
}

func (c *Converter) Convert(prog *ast.Program) (*ir.Module, error) {
	log := c.opts.logger()
	attrs := c.opts.logAttrs()
	log.Debug("irgen convert start", append(attrs, "top_level_stmts", len(prog.Stmts))...)

	tag := func(err error) (*ir.Module, error) {
		log.Error("irgen convert failed", append(attrs, "error", err)...)
		return nil, errs.WithTraceID(err, c.opts.TraceID)
	}

	if err := c.collectProgram(prog); err != nil {
		return tag(err)
	}
	if err := c.scanWidening(prog); err != nil {
		return tag(err)
	}
	c.inferReturnTypes()
	if err := c.lowerModuleVars(prog); err != nil {
		return tag(err)
	}

	mod := &ir.Module{ModuleVars: c.moduleVars}

	for _, name := range c.funcOrder {
		fn, err := c.lowerTopLevelFunction(c.funcs[name])
		if err != nil {
			return tag(err)
		}
		mod.Functions = append(mod.Functions, fn)
	}
	for _, cname := range c.classOrder {
		cls, err := c.lowerClass(c.classes[cname])
		if err != nil {
			return tag(err)
		}
		mod.Classes = append(mod.Classes, cls)
	}
	mod.Functions = append(mod.Functions, c.extraFuncs...)

	log.Debug("irgen convert finished", append(attrs, "functions", len(mod.Functions), "classes", len(mod.Classes))...)
	return mod, nil
}

// collectProgram walks top-level statements, registering every
// function and class before any body is lowered (so a function may
// call another defined later in source order, and mutually recursive
// methods resolve).
func (c *Converter) collectProgram(prog *ast.Program) error {
	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *ast.FunctionDef:
			sig, err := c.buildFuncSig(s, false, "")
			if err != nil {
				return err
			}
			if _, dup := c.funcs[s.Name]; !dup {
				c.funcOrder = append(c.funcOrder, s.Name)
			}
			c.funcs[s.Name] = sig
		case *ast.ClassDef:
			cls, err := c.collectClass(s)
			if err != nil {
				return err
			}
			if _, dup := c.classes[s.Name]; !dup {
				c.classOrder = append(c.classOrder, s.Name)
			}
			c.classes[s.Name] = cls
		}
	}
	return nil
}

// buildFuncSig resolves a FunctionDef's parameter/return annotations
// and decorators: parameter types come from annotations, missing
// annotations default to Int, and the return type is taken from an
// annotation when present.
func (c *Converter) buildFuncSig(fn *ast.FunctionDef, isMethod bool, ownerClass string) (*funcSig, error) {
	sig := &funcSig{
		name:       fn.Name,
		astNode:    fn,
		isMethod:   isMethod,
		ownerClass: ownerClass,
		widened:    make(map[string]bool),
	}
	for _, p := range fn.Params {
		sig.paramNames = append(sig.paramNames, p.Name)
		if p.Annotation != nil {
			t, err := resolveAnnotation(p.Annotation, c.classes)
			if err != nil {
				return nil, err
			}
			sig.paramTypes = append(sig.paramTypes, t)
			sig.paramAnnotated = append(sig.paramAnnotated, true)
		} else {
			sig.paramTypes = append(sig.paramTypes, types.Int)
			sig.paramAnnotated = append(sig.paramAnnotated, false)
		}
	}
	if fn.ReturnType != nil {
		t, err := resolveAnnotation(fn.ReturnType, c.classes)
		if err != nil {
			return nil, err
		}
		sig.returnType = t
		sig.returnAnnotated = true
	} else {
		// Resolved later by joining Return expressions once the body is
		// lowerable; types.Unknown is the placeholder until
		// lowerTopLevelFunction fills it in.
		sig.returnType = types.Unknown
	}

	for _, d := range fn.Decorators {
		dec, ok := c.registry.Resolve(d.Name)
		if !ok {
			return nil, errs.NewUnsupportedDecorator(d.P, d.Name)
		}
		sig.decorators = append(sig.decorators, *dec)
		if dec.Kind == decorators.Memoize {
			sig.memoize = true
		}
	}
	return sig, nil
}

// collectClass derives field order from the first `self.x = …`
// assignment seen inside `__init__`, in source order, then collects
// every method (including `__init__` itself, kept separate as Init).
func (c *Converter) collectClass(cd *ast.ClassDef) (*classSig, error) {
	cls := &classSig{
		name:       cd.Name,
		pos:        cd.P,
		fieldTypes: make(map[string]types.Type),
		methods:    make(map[string]*funcSig),
	}

	var initDef *ast.FunctionDef
	var methodDefs []*ast.FunctionDef
	for _, s := range cd.Body.Stmts {
		fd, ok := s.(*ast.FunctionDef)
		if !ok {
			continue
		}
		if fd.Name == "__init__" {
			initDef = fd
			continue
		}
		methodDefs = append(methodDefs, fd)
	}

	if initDef != nil {
		walkSelfAssignOrder(initDef.Body, func(name string) {
			if _, seen := cls.fieldTypes[name]; !seen {
				cls.fieldOrder = append(cls.fieldOrder, name)
				cls.fieldTypes[name] = types.Unknown // refined during lowering
			}
		})
		sig, err := c.buildFuncSig(initDef, true, cd.Name)
		if err != nil {
			return nil, err
		}
		cls.init = sig
	}

	for _, fd := range methodDefs {
		sig, err := c.buildFuncSig(fd, true, cd.Name)
		if err != nil {
			return nil, err
		}
		cls.methods[fd.Name] = sig
		cls.methodOrder = append(cls.methodOrder, fd.Name)
	}
	return cls, nil
}

// walkSelfAssignOrder visits every `self.x = …` assignment statement
// in body, in source order, including nested blocks (an `if` inside
// `__init__` may still assign fields), but does not descend into nested
// function/class defs (there are none valid inside `__init__`'s body
// under this subset).
func walkSelfAssignOrder(body *ast.BlockStmt, visit func(name string)) {
	if body == nil {
		return
	}
	for _, s := range body.Stmts {
		walkStmtSelfAssigns(s, visit)
	}
}

func walkStmtSelfAssigns(s ast.Stmt, visit func(name string)) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		if attr, ok := s.Target.(*ast.AttributeExpr); ok {
			if id, ok := attr.Receiver.(*ast.Identifier); ok && id.Name == "self" {
				visit(attr.Name)
			}
		}
	case *ast.AugAssignStmt:
		if attr, ok := s.Target.(*ast.AttributeExpr); ok {
			if id, ok := attr.Receiver.(*ast.Identifier); ok && id.Name == "self" {
				visit(attr.Name)
			}
		}
	case *ast.IfStmt:
		walkSelfAssignOrder(s.Then, visit)
		walkSelfAssignOrder(s.Else, visit)
	case *ast.WhileStmt:
		walkSelfAssignOrder(s.Body, visit)
	case *ast.ForStmt:
		walkSelfAssignOrder(s.Body, visit)
	case *ast.TryStmt:
		walkSelfAssignOrder(s.Body, visit)
		for _, h := range s.Handlers {
			walkSelfAssignOrder(h.Body, visit)
		}
		walkSelfAssignOrder(s.Finally, visit)
	case *ast.WithStmt:
		walkSelfAssignOrder(s.Body, visit)
	}
}

// resolveAnnotation parses a TypeAnnotation's text into an IRType:
// basic names, `list[T]`, `dict[K,V]`, `tuple[T1,...]`, `Optional[T]`,
// `any`/`none`, or a bare class name already registered by the collect
// pass.
func resolveAnnotation(a *ast.TypeAnnotation, classes map[string]*classSig) (types.Type, error) {
	t, ok := parseAnnotationText(a.Text, classes)
	if !ok {
		return nil, errs.NewTypeAnnotationInvalid(a.P, a.Text)
	}
	return t, nil
}
