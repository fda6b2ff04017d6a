package irgen

import (
	"fmt"

	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/types"
)

// applyMemoize rewrites a lowered function to wrap it in a dict lookup
// keyed by its single Int argument, with the miss path calling the
// original.
// Built entirely from constructs the compiler already emits — a
// module-level Dict[Int, Int] global, ir.Try/ir.Handler dispatching on
// the KeyError emitDictLookup itself raises on a miss, and a call to a
// renamed copy of the original body — rather than a bespoke cache
// mechanism.
//
// The rewrite only applies to a plain top-level function (never a
// method — the decorator table treats "does this rewrite code" as a
// per-decorator, not per-call-site, property, and a memoized instance
// method would need one cache per receiver, which this compiler's flat
// instance layout has nowhere to put) taking exactly
// one Int parameter and returning Int — a multi-argument or non-Int
// cache key would need a composite key type this dict's linear-scan
// equality check was never built to compare. Any other shape degrades
// silently to metadata-only: the decorator is recorded on the function
// but the body is left exactly as lowered.
func (c *Converter) applyMemoize(sig *funcSig, fn *ir.Function) (*ir.Function, error) {
	if sig.isMethod {
		return fn, nil
	}
	if len(sig.paramNames) != 1 {
		return fn, nil
	}
	if !types.Equal(sig.paramTypes[0], types.Int) || !types.Equal(sig.returnType, types.Int) {
		return fn, nil
	}

	c.memoSeq++
	pos := sig.astNode.P
	memoName := fmt.Sprintf("$memo_%d", c.memoSeq)
	implName := sig.name + "$impl"
	argVar := sig.paramNames[0]
	resultVar := "$memo_result"

	dictType := types.DictType{Key: types.Int, Value: types.Int}
	c.moduleVars = append(c.moduleVars, &ir.Assign{
		Target: memoName,
		Value:  ir.DictLiteral{KeyType: types.Int, ValType: types.Int, P: pos},
		P:      pos,
	})
	c.moduleVarTypes[memoName] = dictType

	impl := *fn
	impl.Name = implName
	c.extraFuncs = append(c.extraFuncs, &impl)

	keyTag, _ := resolveExceptionTag("KeyError")

	lookup := ir.Index{
		Container: ir.Var{Name: memoName, Type: dictType, P: pos},
		Key:       ir.Var{Name: argVar, Type: types.Int, P: pos},
		Result:    types.Int,
		P:         pos,
	}
	implCall := ir.Call{
		Callee: implName,
		Args:   []ir.Expr{ir.Var{Name: argVar, Type: types.Int, P: pos}},
		Result: types.Int,
		P:      pos,
	}

	handler := &ir.Handler{
		TypeName: "KeyError",
		Tag:      keyTag,
		Body: []ir.Stmt{
			ir.Assign{Target: resultVar, Value: implCall, P: pos},
			ir.IndexAssign{
				Container: ir.Var{Name: memoName, Type: dictType, P: pos},
				Key:       ir.Var{Name: argVar, Type: types.Int, P: pos},
				Value:     ir.Var{Name: resultVar, Type: types.Int, P: pos},
				P:         pos,
			},
			ir.Return{Value: ir.Var{Name: resultVar, Type: types.Int, P: pos}, P: pos},
		},
	}

	wrapper := &ir.Function{
		Name:       sig.name,
		Params:     fn.Params,
		ReturnType: types.Int,
		Body: []ir.Stmt{
			ir.Try{
				Body:     []ir.Stmt{ir.Return{Value: lookup, P: pos}},
				Handlers: []*ir.Handler{handler},
				P:        pos,
			},
		},
		Decorators: fn.Decorators,
		P:          pos,
	}
	return wrapper, nil
}
