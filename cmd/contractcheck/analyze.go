package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dshills/contractcheck/internal/analysis"
	"github.com/dshills/contractcheck/internal/document"
	"github.com/dshills/contractcheck/internal/render"
	"github.com/dshills/contractcheck/internal/risk"
	"github.com/dshills/contractcheck/internal/schema"
)

// Output formats accepted by --format.
var formats = []string{"terminal", "markdown", "json", "html"}

type analyzeFlags struct {
	providerFlags
	file         string
	contractType string
	format       string
	out          string
	failOn       string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a contract (.pdf, .docx or .txt) and print a risk report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.file = args[0]
			return runAnalyze(cmd.Context(), a, f, cmd.OutOrStdout())
		},
	}
	f.providerFlags.register(cmd)
	cmd.Flags().StringVar(&f.contractType, "type", "", "declared contract type, e.g. NDA (hint only)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "terminal", "output format: "+strings.Join(formats, ", "))
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "exit 2 when the overall risk level is at or above LEVEL (low, medium, high, critical)")
	return cmd
}

func runAnalyze(ctx context.Context, a *app, f analyzeFlags, stdout io.Writer) error {
	if f.file == "" {
		return withCode(exitCodeBadInput, errors.New("analyze: a contract file is required"))
	}
	if !validFormat(f.format) {
		return withCode(exitCodeBadInput, fmt.Errorf("analyze: unknown format %q (want %s)", f.format, strings.Join(formats, ", ")))
	}
	var threshold schema.RiskLevel
	if f.failOn != "" {
		lvl, err := risk.ParseLevel(f.failOn)
		if err != nil || lvl == schema.RiskUnknown {
			return withCode(exitCodeBadInput, fmt.Errorf("analyze: invalid --fail-on %q", f.failOn))
		}
		threshold = lvl
	}

	text, err := document.ExtractFile(f.file)
	if err != nil {
		return withCode(exitCodeBadInput, fmt.Errorf("analyze: %w", err))
	}

	an, err := a.analyzer(f.providerFlags)
	if err != nil {
		return err
	}
	env, err := an.Analyze(ctx, text, f.contractType)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyContract) {
			return withCode(exitCodeBadInput, err)
		}
		return withCode(exitCodeInternal, fmt.Errorf("analyze: %w", err))
	}

	report, err := renderReport(env, f.format, f.out == "" && isTerminal(stdout))
	if err != nil {
		return withCode(exitCodeInternal, err)
	}
	if err := writeReport(report, f.out, stdout); err != nil {
		return withCode(exitCodeInternal, err)
	}
	if f.out != "" {
		a.logger.Info("report written", zap.String("path", f.out), zap.String("format", f.format))
	}

	if analysis.AllStagesFailed(env) {
		return withCode(exitCodeAPIError, fmt.Errorf("analyze: every stage failed: %s", firstStageError(env)))
	}
	if threshold != "" && risk.AtOrAbove(env.RiskAssessment.OverallRiskLevel, threshold) {
		return withCode(exitCodeFailOn, fmt.Errorf("analyze: overall risk %s is at or above %s",
			env.RiskAssessment.OverallRiskLevel, threshold))
	}
	return nil
}

func validFormat(format string) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

// renderReport renders env in the requested format. The terminal format
// falls back to plain Markdown styling when stdout is not a terminal.
func renderReport(env *schema.Envelope, format string, tty bool) ([]byte, error) {
	switch format {
	case "json":
		b, err := render.RenderJSON(env)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "markdown":
		return []byte(render.RenderMarkdown(env)), nil
	case "html":
		return render.RenderHTML(env)
	default:
		opts := render.TerminalOptions{}
		if !tty {
			opts.Style = "notty"
		}
		s, err := render.RenderTerminal(env, opts)
		return []byte(s), err
	}
}

func writeReport(report []byte, path string, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(report)
		return err
	}
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// firstStageError returns one stage error in a stable order for messages.
func firstStageError(env *schema.Envelope) string {
	keys := make([]string, 0, len(env.StageErrors))
	for k := range env.StageErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "unknown error"
	}
	return keys[0] + ": " + env.StageErrors[keys[0]]
}
