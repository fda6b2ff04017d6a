package types

import "testing"

func TestSignatures(t *testing.T) {
	l := ListType{Elem: Int}
	if l.Signature() != "list<int>" {
		t.Fatalf("unexpected signature: %s", l.Signature())
	}

	tup := TupleType{Elements: []Type{Int, Str}}
	if tup.Signature() != "tuple<int,str>" {
		t.Fatalf("unexpected signature: %s", tup.Signature())
	}
}

func TestWasmKinds(t *testing.T) {
	if len(Str.WasmKinds()) != 2 {
		t.Fatalf("Str should leave two stack values, got %d", len(Str.WasmKinds()))
	}
	if len(Float.WasmKinds()) != 1 || Float.WasmKinds()[0] != KindF64 {
		t.Fatalf("Float should leave one f64, got %v", Float.WasmKinds())
	}
	if len(None.WasmKinds()) != 0 {
		t.Fatalf("None should leave nothing on the stack")
	}
}

func TestJoin(t *testing.T) {
	if Join([]Type{Int, Int}) != Int {
		t.Fatalf("identical join should return that type")
	}
	if Join([]Type{Int, Float}) != Float {
		t.Fatalf("mixed numeric join should widen to Float")
	}
	if Join([]Type{Int, Str}) != AnyTy {
		t.Fatalf("mixed non-numeric join should widen to Any")
	}
}

func TestWiden(t *testing.T) {
	if Widen(Unknown, true) != Int {
		t.Fatalf("Unknown should widen to Int in arithmetic context")
	}
	if Widen(Unknown, false) != AnyTy {
		t.Fatalf("Unknown should widen to Any elsewhere")
	}
}
