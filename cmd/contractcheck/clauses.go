package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/contractcheck/internal/clause"
	"github.com/dshills/contractcheck/internal/document"
)

func newClausesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "clauses FILE",
		Short: "List the clauses found in a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClauses(args[0], asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print clauses as JSON")
	return cmd
}

func runClauses(path string, asJSON bool, stdout io.Writer) error {
	text, err := document.ExtractFile(path)
	if err != nil {
		return withCode(exitCodeBadInput, fmt.Errorf("clauses: %w", err))
	}
	clauses := clause.Segment(text)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(clauses)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tLINES\tTITLE")
	for _, c := range clauses {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\n", c.ID, c.Number, c.LineStart, c.LineEnd, c.Title())
	}
	return tw.Flush()
}
