package decorators

import (
	"strings"
	"testing"
)

func TestBuiltinsResolve(t *testing.T) {
	r := NewRegistry()

	d, ok := r.Resolve("memoize")
	if !ok || d.Kind != Memoize {
		t.Fatalf("expected memoize to resolve as a Memoize decorator")
	}

	d, ok = r.Resolve("timer")
	if !ok || d.Kind != Metadata {
		t.Fatalf("expected timer to resolve as a Metadata decorator")
	}

	if _, ok := r.Resolve("not_a_decorator"); ok {
		t.Fatalf("unregistered decorator should not resolve")
	}
}

func TestRegisterOverridesBuiltin(t *testing.T) {
	r := NewRegistry()
	r.Register(&Decorator{Name: "timer", Kind: Memoize})

	d, ok := r.Resolve("timer")
	if !ok || d.Kind != Memoize {
		t.Fatalf("expected registered override to take effect")
	}
}

func TestLoadRegistry(t *testing.T) {
	r := NewRegistry()
	doc := "decorators:\n  - trace\n  - audit\n"
	if err := r.LoadRegistry(strings.NewReader(doc)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, ok := r.Resolve("trace")
	if !ok || d.Kind != Metadata {
		t.Fatalf("expected trace to resolve as Metadata after load")
	}
	if _, ok := r.Resolve("audit"); !ok {
		t.Fatalf("expected audit to resolve after load")
	}
}
