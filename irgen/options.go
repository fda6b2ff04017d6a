package irgen

import (
	"log/slog"

	"github.com/anistark/waspy/decorators"
)

// Options configures one Convert call — the irgen half of the same
// by-value configuration shape compiler.Options gives the compiler
// stages.
type Options struct {
	Logger  *slog.Logger
	TraceID string

	// Registry overrides the decorator table NewConverter would
	// otherwise default to, letting a host supply its own
	// decorators.LoadRegistry result without touching this package.
	Registry *decorators.Registry
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
