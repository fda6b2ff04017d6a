package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/anistark/waspy/ast"
	"github.com/anistark/waspy/compiler"
	"github.com/anistark/waspy/errs"
	"github.com/anistark/waspy/ir"
	"github.com/anistark/waspy/irgen"
)

// newLogger builds the *slog.Logger threaded through irgen.Convert and
// compiler.Compile. --verbose turns on debug-level records; otherwise
// only warnings and above reach stderr, so a plain `waspy compile`
// stays quiet on success.
func newLogger(opts *rootOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// loadProgram reads and decodes a JSON-encoded ast.Program from path.
func loadProgram(path string) (*ast.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	prog := &ast.Program{}
	if err := json.Unmarshal(data, prog); err != nil {
		return nil, fmt.Errorf("decoding %s as an ast.Program: %w", path, err)
	}
	return prog, nil
}

// compileToWasm runs the full irgen.Convert-then-compiler.Compile
// pipeline over prog, the same two-call sequence an embedding host
// would make directly.
func compileToWasm(prog *ast.Program, opts *rootOptions) ([]byte, *ir.Module, error) {
	logger := newLogger(opts)

	mod, err := irgen.NewConverterWithOptions(nil, irgen.Options{
		Logger:  logger,
		TraceID: opts.TraceID,
	}).Convert(prog)
	if err != nil {
		return nil, nil, fmt.Errorf("lowering ast to ir: %w", err)
	}

	out, err := compiler.Compile(mod, compiler.Options{
		Logger:  logger,
		TraceID: opts.TraceID,
	})
	if err != nil {
		return nil, mod, fmt.Errorf("emitting wasm: %w", err)
	}

	return out, mod, nil
}

// describeErr unwraps err down to an *errs.CompileError where possible;
// CompileError.Error() already formats "file:line:col: kind: message",
// so this only exists to give command bodies a single place to attach
// future exit-code mapping.
func describeErr(err error) string {
	var ce *errs.CompileError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}
