package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	optionsParent string
	optionsJSON   bool

	optionsCmd = &cobra.Command{
		Use:   "options <category>",
		Short: "List the domain values of a category",
		Args:  cobra.ExactArgs(1),
		RunE:  runOptions,
	}
)

func init() {
	optionsCmd.Flags().StringVar(&optionsParent, "parent", "", "only list children of this parent code")
	optionsCmd.Flags().BoolVar(&optionsJSON, "json", false, "print JSON instead of a table")
}

func runOptions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, config)
	if err != nil {
		return err
	}
	defer rt.Close()

	values, err := rt.source.Fetch(ctx, args[0], optionsParent)
	if err != nil {
		return err
	}
	if optionsJSON {
		return writeJSON(cmd.OutOrStdout(), values)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDISPLAY\tPARENT")
	for _, v := range values {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Code, v.DisplayText, v.ParentCode)
	}
	return tw.Flush()
}
