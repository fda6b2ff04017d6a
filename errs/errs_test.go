package errs

import (
	"errors"
	"testing"

	"github.com/anistark/waspy/token"
)

func TestErrorFormatting(t *testing.T) {
	err := NewUnknownFunction(token.Position{File: "m.py", Line: 3, Column: 5}, "frobnicate")
	want := "m.py:3:5: UnknownFunction(frobnicate): no function, method, or builtin by this name"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorFormattingNoPos(t *testing.T) {
	err := NewStaticDataOverflow(token.NoPos)
	want := "StaticDataOverflow: interned literals overran the scratch window boundary"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorsAs(t *testing.T) {
	var err error = NewUnsupportedConstruct(token.Position{Line: 1}, "yield")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected errors.As to match *CompileError")
	}
	if ce.Kind != UnsupportedConstruct {
		t.Fatalf("unexpected kind: %s", ce.Kind)
	}
}
