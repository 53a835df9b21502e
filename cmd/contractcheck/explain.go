package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/contractcheck/internal/clause"
	"github.com/dshills/contractcheck/internal/document"
	"github.com/dshills/contractcheck/internal/render"
)

type explainFlags struct {
	providerFlags
	text   string
	file   string
	clause string
	plain  bool
}

func newExplainCmd(a *app) *cobra.Command {
	var f explainFlags
	cmd := &cobra.Command{
		Use:   "explain (--text CLAUSE | FILE --clause ID)",
		Short: "Explain a single clause in plain language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.file = args[0]
			}
			return runExplain(cmd.Context(), a, f, cmd.OutOrStdout())
		},
	}
	f.providerFlags.register(cmd)
	cmd.Flags().StringVar(&f.text, "text", "", "clause text to explain")
	cmd.Flags().StringVar(&f.clause, "clause", "", "clause ID, number or position in FILE (see 'contractcheck clauses')")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "print the explanation without terminal styling")
	return cmd
}

func runExplain(ctx context.Context, a *app, f explainFlags, stdout io.Writer) error {
	text, err := clauseText(f)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}

	an, err := a.analyzer(f.providerFlags)
	if err != nil {
		return err
	}
	explanation, err := an.Explain(ctx, text)
	if err != nil {
		return withCode(exitCodeAPIError, err)
	}

	out := explanation + "\n"
	if !f.plain && isTerminal(stdout) {
		if styled, rerr := render.RenderTerminalText(explanation, render.TerminalOptions{}); rerr == nil {
			out = styled
		}
	}
	_, err = io.WriteString(stdout, out)
	return err
}

// clauseText resolves the clause to explain from --text or FILE --clause.
func clauseText(f explainFlags) (string, error) {
	switch {
	case f.text != "" && f.file != "":
		return "", errors.New("explain: use either --text or FILE --clause, not both")
	case f.text != "":
		if strings.TrimSpace(f.text) == "" {
			return "", errors.New("explain: --text is blank")
		}
		return f.text, nil
	case f.file == "":
		return "", errors.New("explain: provide --text or FILE --clause")
	case f.clause == "":
		return "", errors.New("explain: --clause is required with FILE")
	}

	doc, err := document.ExtractFile(f.file)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	c, ok := clause.Find(clause.Segment(doc), f.clause)
	if !ok {
		return "", fmt.Errorf("explain: no clause %q in %s", f.clause, f.file)
	}
	return c.Text, nil
}
