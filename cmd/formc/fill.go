package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/internal/prompt"
)

var (
	fillData     string
	fillPageSize int

	fillCmd = &cobra.Command{
		Use:   "fill <schema>",
		Short: "Fill a form interactively in the terminal",
		Long: `Prompts for every visible, enabled field of the form in order. Select
and tree options follow the cascade as answers are given. Prints the
resulting values and any validation failures as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runFill,
	}
)

func init() {
	fillCmd.Flags().StringVar(&fillData, "data", "", "initial values (JSON or YAML)")
	fillCmd.Flags().IntVar(&fillPageSize, "page-size", 10, "options shown per select page")
}

func runFill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	initial, err := readData(fillData)
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

	filler := prompt.New(prompt.WithPageSize(fillPageSize), prompt.WithLogger(logger))
	if err := filler.Fill(ctx, inst); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"values":  inst.Values(),
		"invalid": inst.Validate(),
	})
}
