// Package types defines IRType, the tagged-variant source type system
// the IR and its emitters carry values around as.
package types

import (
	"bytes"
	"fmt"
)

// Type is any IRType case. Signature renders a stable textual form
// used for join/widen decisions and for dict keys in decorator caches.
type Type interface {
	Signature() string
	// WasmKinds lists the WASM value kinds a value of this type leaves
	// on the operand stack: zero for statement-only results, one for
	// every scalar/pointer type, two (offset, length) for Str.
	WasmKinds() []WasmKind
}

// WasmKind is the small subset of WASM value types this compiler ever
// produces. i64 is unused by any source value but kept for
// completeness of the mapping table.
type WasmKind int

const (
	KindVoid WasmKind = iota
	KindI32
	KindI64
	KindF64
)

func (k WasmKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	default:
		return "void"
	}
}

// BasicType covers the scalar/opaque-pointer IRType cases that carry
// no further structure.
type BasicType string

const (
	Int     BasicType = "int"
	Float   BasicType = "float"
	Bool    BasicType = "bool"
	Str     BasicType = "str"
	Bytes   BasicType = "bytes"
	None    BasicType = "none"
	RangeTy BasicType = "range"
	AnyTy   BasicType = "any"
	Unknown BasicType = "unknown"
)

func (b BasicType) Signature() string { return string(b) }

func (b BasicType) WasmKinds() []WasmKind {
	switch b {
	case Float:
		return []WasmKind{KindF64}
	case Str:
		return []WasmKind{KindI32, KindI32}
	case None:
		return nil
	default:
		// Int, Bool, Bytes (heap ptr), Range (heap ptr), Any, Unknown.
		return []WasmKind{KindI32}
	}
}

// ListType is `List(element)`.
type ListType struct{ Elem Type }

func (l ListType) Signature() string    { return fmt.Sprintf("list<%s>", l.Elem.Signature()) }
func (l ListType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// DictType is `Dict(key, value)`.
type DictType struct {
	Key   Type
	Value Type
}

func (d DictType) Signature() string {
	return fmt.Sprintf("dict<%s,%s>", d.Key.Signature(), d.Value.Signature())
}
func (d DictType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// TupleType is `Tuple([elements])`, preserving per-position types.
type TupleType struct{ Elements []Type }

func (t TupleType) Signature() string {
	var out bytes.Buffer
	out.WriteString("tuple<")
	for i, e := range t.Elements {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString(e.Signature())
	}
	out.WriteString(">")
	return out.String()
}
func (t TupleType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// ClassType is `Class(name)`: a heap pointer to an instance layout.
type ClassType struct{ Name string }

func (c ClassType) Signature() string    { return "class<" + c.Name + ">" }
func (c ClassType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// ModuleType is `Module(name)`, used only for ImportModule bookkeeping.
type ModuleType struct{ Name string }

func (m ModuleType) Signature() string    { return "module<" + m.Name + ">" }
func (m ModuleType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// GeneratorType is `Generator(yielded)`. Reaching emission with this
// type is always an UnsupportedConstruct("yield") failure.
type GeneratorType struct{ Yielded Type }

func (g GeneratorType) Signature() string    { return "generator<" + g.Yielded.Signature() + ">" }
func (g GeneratorType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// CallableType is `Callable(params, ret)`.
type CallableType struct {
	Params []Type
	Ret    Type
}

func (c CallableType) Signature() string {
	var out bytes.Buffer
	out.WriteString("callable<(")
	for i, p := range c.Params {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString(p.Signature())
	}
	out.WriteString(")->")
	out.WriteString(c.Ret.Signature())
	out.WriteString(">")
	return out.String()
}
func (c CallableType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// UnionType is `Union([types])`.
type UnionType struct{ Options []Type }

func (u UnionType) Signature() string {
	var out bytes.Buffer
	out.WriteString("union<")
	for i, o := range u.Options {
		if i > 0 {
			out.WriteString("|")
		}
		out.WriteString(o.Signature())
	}
	out.WriteString(">")
	return out.String()
}
func (u UnionType) WasmKinds() []WasmKind { return []WasmKind{KindI32} }

// OptionalType is `Optional(inner)`; the single exception to "heap
// pointers are never null".
type OptionalType struct{ Inner Type }

func (o OptionalType) Signature() string    { return "optional<" + o.Inner.Signature() + ">" }
func (o OptionalType) WasmKinds() []WasmKind { return o.Inner.WasmKinds() }

// Widen resolves Unknown per context: arithmetic contexts widen to
// Int, everything else to Any.
func Widen(t Type, arithmeticContext bool) Type {
	if t == Unknown {
		if arithmeticContext {
			return Int
		}
		return AnyTy
	}
	return t
}

// Equal compares two IRTypes structurally via their signature.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Signature() == b.Signature()
}

// Join implements the return-type inference join rule: identical
// types join to themselves, mixed numeric types join to Float, anything
// else joins to Any.
func Join(types []Type) Type {
	if len(types) == 0 {
		return None
	}
	first := types[0]
	allEqual := true
	allNumeric := true
	for _, t := range types {
		if !Equal(t, first) {
			allEqual = false
		}
		if !Equal(t, Int) && !Equal(t, Float) {
			allNumeric = false
		}
	}
	if allEqual {
		return first
	}
	if allNumeric {
		return Float
	}
	return AnyTy
}
