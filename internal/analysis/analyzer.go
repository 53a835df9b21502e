// Package analysis runs the contract review pipeline: seven model stages,
// each isolated so that one failure degrades its own section of the
// envelope and nothing else.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/contractcheck/internal/document"
	"github.com/dshills/contractcheck/internal/llm"
	"github.com/dshills/contractcheck/internal/profile"
	"github.com/dshills/contractcheck/internal/prompt"
	"github.com/dshills/contractcheck/internal/schema"
)

// ErrEmptyContract is returned by Analyze when the contract text is blank.
var ErrEmptyContract = errors.New("analysis: contract text is empty")

// ErrNilProvider is returned by New when no provider is supplied.
var ErrNilProvider = errors.New("analysis: provider is nil")

// Defaults applied by New to zero-valued Options fields.
const (
	DefaultTemperature  = 0.2
	DefaultStageTimeout = 60 * time.Second
	DefaultConcurrency  = 4
)

// Options configures an Analyzer.
type Options struct {
	// Temperature is passed to every model call. Zero means
	// DefaultTemperature; use a small positive value for near-greedy output.
	Temperature float64
	// StageTimeout bounds each model call.
	StageTimeout time.Duration
	// Concurrency caps the number of stages in flight.
	Concurrency int
	// Debug writes every prompt and reply to DebugWriter (os.Stderr when nil).
	Debug       bool
	DebugWriter io.Writer
	Profile     profile.Profile
	// Clock stamps the envelope. Defaults to time.Now.
	Clock func() time.Time
	// Meta is copied into every envelope.
	Meta schema.Meta
}

// Analyzer runs analyses against one provider. It holds no per-call state and
// is safe for concurrent use.
type Analyzer struct {
	provider llm.Provider
	opts     Options
	builder  prompt.Builder
	system   string
	logger   *zap.Logger

	debugMu sync.Mutex
}

// New returns an Analyzer. A nil logger is replaced with a no-op logger.
func New(provider llm.Provider, opts Options, logger *zap.Logger) (*Analyzer, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Debug && opts.DebugWriter == nil {
		opts.DebugWriter = os.Stderr
	}
	if opts.Profile.Name == "" {
		p, err := profile.Load(profile.Default)
		if err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
		opts.Profile = p
	}
	opts.Meta.Profile = opts.Profile.Name

	b := prompt.NewBuilder(opts.Profile)
	return &Analyzer{
		provider: provider,
		opts:     opts,
		builder:  b,
		system:   b.System(),
		logger:   logger,
	}, nil
}

// Analyze runs all seven stages over text and assembles the envelope.
// contractType is the caller's declared type and only hints the classifier.
//
// Stage failures never produce an error: they degrade the stage's section
// and are listed in Envelope.StageErrors. An error is returned only for blank
// input or a context that is already done.
func (a *Analyzer) Analyze(ctx context.Context, text, contractType string) (*schema.Envelope, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContract
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := &schema.Envelope{
		Timestamp:     a.opts.Clock().UTC(),
		RequestedType: strings.TrimSpace(contractType),
		Language:      document.DetectLanguage(text),
		Meta:          a.opts.Meta,
	}
	pc := prompt.Context{ContractType: contractType}
	errs := make([]error, len(prompt.Stages))
	idx := make(map[prompt.Stage]int, len(prompt.Stages))
	for i, s := range prompt.Stages {
		idx[s] = i
	}

	start := time.Now()
	a.logger.Info("analysis started",
		zap.Int("chars", len([]rune(text))),
		zap.String("language", string(env.Language)),
		zap.String("contract_type", env.RequestedType))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	g.Go(func() error {
		env.ContractType, errs[idx[prompt.StageClassify]] = a.classify(ctx, text, pc)
		return nil
	})
	g.Go(func() error {
		env.Entities, errs[idx[prompt.StageEntities]] = a.extractEntities(ctx, text)
		return nil
	})
	g.Go(func() error {
		env.ObligationsAnalysis, errs[idx[prompt.StageObligations]] = a.analyzeObligations(ctx, text)
		return nil
	})
	g.Go(func() error {
		env.RiskAssessment, errs[idx[prompt.StageRisk]] = a.assessRisk(ctx, text)
		return nil
	})
	g.Go(func() error {
		env.Summary, errs[idx[prompt.StageSummary]] = a.generateSummary(ctx, text)
		return nil
	})
	g.Go(func() error {
		// Alternatives observe the post-fallback clause list.
		env.UnfavorableClauses, errs[idx[prompt.StageUnfavorable]] = a.identifyUnfavorable(ctx, text)
		env.SuggestedAlternatives, errs[idx[prompt.StageAlternatives]] = a.generateAlternatives(ctx, env.UnfavorableClauses)
		return nil
	})
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if env.StageErrors == nil {
			env.StageErrors = make(map[string]string)
		}
		env.StageErrors[string(prompt.Stages[i])] = err.Error()
		fields := []zap.Field{
			zap.String("stage", string(prompt.Stages[i])),
			zap.String("kind", llm.Classify(err).String()),
			zap.Error(err),
		}
		if llm.IsFatal(err) {
			// Retrying will not help; the key or account must be fixed.
			a.logger.Error("stage degraded: credentials rejected", fields...)
			continue
		}
		a.logger.Warn("stage degraded", fields...)
	}

	a.logger.Info("analysis finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("degraded_stages", len(env.StageErrors)),
		zap.Int("unfavorable_clauses", len(env.UnfavorableClauses)))
	return env, nil
}

// AllStagesFailed reports whether no stage produced a result. The
// alternatives stage is not counted: it is skipped when the unfavorable
// stage fails.
func AllStagesFailed(env *schema.Envelope) bool {
	if env == nil {
		return false
	}
	for _, s := range prompt.Stages {
		if s == prompt.StageAlternatives {
			continue
		}
		if _, failed := env.StageErrors[string(s)]; !failed {
			return false
		}
	}
	return true
}

// Explain returns a plain-language explanation of a single clause. Unlike the
// pipeline stages, failures are returned to the caller.
func (a *Analyzer) Explain(ctx context.Context, clause string) (string, error) {
	if strings.TrimSpace(clause) == "" {
		return "", fmt.Errorf("analysis: explain: %w", ErrEmptyContract)
	}
	raw, err := a.call(ctx, prompt.StageExplain, a.builder.BuildExplanation(clause))
	if err != nil {
		return "", fmt.Errorf("analysis: explain: %w", err)
	}
	s, err := explanation(raw)
	if err != nil {
		return "", fmt.Errorf("analysis: explain: %w", err)
	}
	return s, nil
}

// call makes one bounded model call for stage.
func (a *Analyzer) call(ctx context.Context, stage prompt.Stage, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.StageTimeout)
	defer cancel()

	a.debug(stage, "prompt", userPrompt)
	start := time.Now()
	raw, err := a.provider.Complete(ctx, a.system, userPrompt, stage.MaxTokens(), a.opts.Temperature)
	elapsed := time.Since(start)
	if err != nil {
		a.logger.Debug("stage call failed",
			zap.String("stage", string(stage)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	a.debug(stage, "reply", raw)
	a.logger.Debug("stage call done",
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", elapsed),
		zap.Int("reply_bytes", len(raw)))
	return raw, nil
}

func (a *Analyzer) debug(stage prompt.Stage, label, body string) {
	if !a.opts.Debug {
		return
	}
	a.debugMu.Lock()
	defer a.debugMu.Unlock()
	fmt.Fprintf(a.opts.DebugWriter, "=== %s %s ===\n%s\n\n", stage, label, body)
}
