package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/anistark/waspy/wasmrun"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run <ast.json> <entry> [args...]",
		Short:         "Compile a JSON-encoded ast.Program and call one exported function",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			entry := args[1]
			rawArgs := args[2:]

			wasmBytes, _, err := compileToWasm(prog, root)
			if err != nil {
				return fmt.Errorf("%s", describeErr(err))
			}

			ctx := context.Background()
			mod, err := wasmrun.Load(ctx, wasmBytes)
			if err != nil {
				return err
			}
			defer mod.Close(ctx)

			operands, err := encodeOperands(rawArgs)
			if err != nil {
				return err
			}

			results, err := mod.CallRaw(ctx, entry, operands...)
			if err != nil {
				return fmt.Errorf("calling %s: %w", entry, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatResults(results))
			return nil
		},
	}
	return cmd
}

// encodeOperands turns each command-line argument into a raw uint64
// operand the way wazero's api.Module.Call expects: an integer literal
// encodes as i32, anything containing "." encodes as f64. There is no
// parsed type annotation to consult here (the CLI never sees source
// text), so this is a best-effort mapping, not a type-checked one —
// acceptable for a demonstration harness.
func encodeOperands(rawArgs []string) ([]uint64, error) {
	out := make([]uint64, len(rawArgs))
	for i, a := range rawArgs {
		if strings.Contains(a, ".") {
			f, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", a, err)
			}
			out[i] = api.EncodeF64(f)
			continue
		}
		n, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		out[i] = api.EncodeI32(int32(n))
	}
	return out, nil
}

func formatResults(results []uint64) string {
	if len(results) == 0 {
		return "(no result)"
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
	}
	return strings.Join(parts, " ")
}
