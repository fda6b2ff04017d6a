package wasmmod

import "testing"

func TestBuildMinimalModule(t *testing.T) {
	b := NewBuilder()
	sig := b.InternSig(FuncSig{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})

	// (a + b) for two i32 params, no extra locals.
	var body []byte
	body = append(body, OpLocalGet)
	body = append(body, EncodeU32(0)...)
	body = append(body, OpLocalGet)
	body = append(body, EncodeU32(1)...)
	body = append(body, OpI32Add)

	idx := b.AddFunction("add", sig, nil, body)
	b.ExportFunction("add", idx)

	out, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) < 8 {
		t.Fatalf("module too short: %d bytes", len(out))
	}
	if out[0] != 0x00 || out[1] != 'a' || out[2] != 's' || out[3] != 'm' {
		t.Fatalf("missing WASM magic number: %v", out[:4])
	}
	if out[4] != 1 || out[5] != 0 || out[6] != 0 || out[7] != 0 {
		t.Fatalf("unexpected version bytes: %v", out[4:8])
	}
}

func TestSigDeduplication(t *testing.T) {
	b := NewBuilder()
	sig := FuncSig{Params: []ValType{ValI32}, Results: []ValType{ValI32}}
	a := b.InternSig(sig)
	c := b.InternSig(sig)
	if a != c {
		t.Fatalf("expected identical signatures to share a type index")
	}
}

func TestLiteralInterning(t *testing.T) {
	l := NewLayout()
	off1, err := l.InternString("hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off2, err := l.InternString("hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off1 != off2 {
		t.Fatalf("equal string literals should share a data-segment offset")
	}

	off3, err := l.InternString("world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off3 == off1 {
		t.Fatalf("distinct literals should not collide")
	}
}

func TestStaticDataOverflow(t *testing.T) {
	l := NewLayout()
	l.heapBase = 4
	if _, err := l.InternString("too long for four bytes"); err == nil {
		t.Fatalf("expected StaticDataOverflow error")
	}
}
