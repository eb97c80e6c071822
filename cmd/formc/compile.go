package main

import (
	"github.com/spf13/cobra"
)

var (
	compileData string

	compileCmd = &cobra.Command{
		Use:   "compile <schema>",
		Short: "Resolve and compile a form schema and print its model summary",
		Long: `Loads a schema from a file, URL or bundled example (example:employee),
resolves library references, builds the model, binds option cascades and
prints the path map, values, control states, options and validation result.`,
		Args: cobra.ExactArgs(1),
		RunE: runCompile,
	}
)

func init() {
	compileCmd.Flags().StringVar(&compileData, "data", "", "initial values (JSON or YAML)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	initial, err := readData(compileData)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, config)
	if err != nil {
		return err
	}
	defer rt.Close()

	inst, err := rt.compileLocation(ctx, args[0], initial)
	if err != nil {
		return err
	}
	defer inst.Close()
	inst.Wait()

	return writeJSON(cmd.OutOrStdout(), newReport(inst))
}
