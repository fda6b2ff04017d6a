package compiler

import "log/slog"

// Options configures one Compile call. Passed by value, no global
// mutable state.
type Options struct {
	// Logger receives structured, diagnostic-only records (compilation
	// start/finish, function counts, optimizer-skip notices); it never
	// participates in correctness. Defaults to slog.Default().
	Logger *slog.Logger

	// TraceID tags every log record from this compile, so a host
	// running several compiles in one process (or one goroutine pool)
	// can tell their logs apart. Left empty, records simply carry no
	// trace_id field.
	TraceID string

	// TargetPages raises the emitted module's declared minimum linear
	// memory size (in 64KiB pages) above the default of one. Zero
	// leaves the default in place.
	TargetPages uint32

	// RunOptimizer is recorded and logged but never acted on: bytecode
	// size/speed peepholing is out of scope. Kept as a field rather
	// than omitted so a caller's config format
	// doesn't need to special-case this compiler from any sibling that
	// does have an optimizer pass.
	RunOptimizer bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) logAttrs() []any {
	if o.TraceID == "" {
		return nil
	}
	return []any{"trace_id", o.TraceID}
}
