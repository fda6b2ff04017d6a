package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCompileCommand(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "compile <ast.json>",
		Short:         "Compile a JSON-encoded ast.Program to a WASM binary module",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			wasmBytes, mod, err := compileToWasm(prog, root)
			if err != nil {
				return fmt.Errorf("%s", describeErr(err))
			}

			if output == "" {
				output = "out.wasm"
			}
			if err := os.WriteFile(output, wasmBytes, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d function(s), %d class(es) -> %s (%d bytes)\n",
				len(mod.Functions), len(mod.Classes), output, len(wasmBytes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default out.wasm)")
	return cmd
}
