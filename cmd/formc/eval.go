package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/pkg/visibility"
	"github.com/goliatone/go-dynform/pkg/visibility/expr"
)

var (
	evalData string
	evalRow  bool

	evalCmd = &cobra.Command{
		Use:   "eval <rule>",
		Short: "Evaluate a visibleWhen/disabledWhen/requiredWhen rule",
		Long: `Evaluates rule against the values in --data. Values are exposed under
"model." by default, or under "row." with --row. Prints true or false; a rule
that does not parse is reported as an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}
)

func init() {
	evalCmd.Flags().StringVar(&evalData, "data", "", "values to evaluate against (JSON or YAML)")
	evalCmd.Flags().BoolVar(&evalRow, "row", false, "expose values as a table row")
}

func runEval(cmd *cobra.Command, args []string) error {
	values, err := readData(evalData)
	if err != nil {
		return err
	}
	ctx := visibility.ModelContext(values)
	if evalRow {
		ctx = visibility.RowContext(values)
	}
	ok, err := expr.New(expr.WithLogger(logger)).Eval("", args[0], ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
	return err
}
