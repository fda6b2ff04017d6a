// Package main is waspy's command-line entry point: a thin cobra
// command tree over the compiler core. Since the surface-syntax parser
// is out of scope, every command here takes a JSON-encoded ast.Program
// rather than source text — this keeps the CLI a demonstration harness
// over irgen/compiler/wasmrun, not a feature surface of its own.
package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	Verbose bool
	TraceID string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "waspy",
		Short: "waspy compiles a statically-annotated scripting subset to WebAssembly",
		Long: `waspy lowers a JSON-encoded ast.Program into a standalone WASM binary
module and, optionally, runs an exported function from the result.

It does not parse source text itself: the surface-syntax parser that
would turn a .py-like file into an ast.Program is a separate concern.
Feed it the JSON form of that tree instead.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log compiler diagnostics to stderr")
	cmd.PersistentFlags().StringVar(&opts.TraceID, "trace-id", "", "trace id attached to log records and compile errors")

	cmd.AddCommand(newCompileCommand(opts))
	cmd.AddCommand(newRunCommand(opts))

	return cmd
}
