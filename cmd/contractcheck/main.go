package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/contractcheck/internal/analysis"
	"github.com/dshills/contractcheck/internal/config"
	"github.com/dshills/contractcheck/internal/llm"
	"github.com/dshills/contractcheck/internal/profile"
	"github.com/dshills/contractcheck/internal/schema"
)

// Exit codes.
const (
	exitCodeOK       = 0
	exitCodeInternal = 1
	exitCodeFailOn   = 2
	exitCodeBadInput = 3
	exitCodeAPIError = 4
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitCodeOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitCodeInternal
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "contractcheck:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "contractcheck",
		Short:         "Plain-language risk review of business contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./contractcheck.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newAnalyzeCmd(a),
		newExplainCmd(a),
		newClausesCmd(),
		newServeCmd(a),
	)
	return root
}

// init loads configuration and builds the logger. Values set beforehand
// (by tests) are kept.
func (a *app) init() error {
	if a.logger == nil {
		zcfg := zap.NewProductionConfig()
		if a.verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		logger, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		a.logger = logger
	}
	if a.cfg == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return withCode(exitCodeAPIError, err)
		}
		a.cfg = cfg
	}
	return nil
}

// providerFlags are the per-invocation overrides of model settings.
type providerFlags struct {
	provider string
	model    string
	profile  string
	timeout  string
	debug    bool
}

func (pf *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.provider, "provider", "", "model provider: anthropic, openai, google (aliases claude, ollama, gemini)")
	cmd.Flags().StringVar(&pf.model, "model", "", "model name (default depends on provider)")
	cmd.Flags().StringVar(&pf.profile, "profile", "", "review profile: "+strings.Join(profile.Names(), ", "))
	cmd.Flags().StringVar(&pf.timeout, "timeout", "", "per-stage timeout, e.g. 45s")
	cmd.Flags().BoolVar(&pf.debug, "debug", false, "print prompts and raw replies to stderr")
}

// apply copies non-empty overrides into a copy of cfg and validates it.
func (pf providerFlags) apply(cfg config.Config) (config.Config, error) {
	if pf.provider != "" {
		name, err := llm.CanonicalName(pf.provider)
		if err != nil {
			return cfg, err
		}
		if name != cfg.Provider {
			// A model or key configured for another provider does not carry over.
			cfg.Model = ""
			cfg.APIKey = ""
		}
		cfg.Provider = name
	}
	if pf.model != "" {
		cfg.Model = pf.model
	}
	if pf.profile != "" {
		cfg.Profile = pf.profile
	}
	if pf.timeout != "" {
		d, err := time.ParseDuration(pf.timeout)
		if err != nil {
			return cfg, fmt.Errorf("--timeout: %w", err)
		}
		cfg.StageTimeout = d
	}
	return cfg, cfg.Validate()
}

// analyzer builds an Analyzer from cfg with flag overrides applied.
func (a *app) analyzer(pf providerFlags) (*analysis.Analyzer, error) {
	cfg, err := pf.apply(*a.cfg)
	if err != nil {
		return nil, withCode(exitCodeAPIError, err)
	}
	prof, err := profile.Load(cfg.Profile)
	if err != nil {
		return nil, withCode(exitCodeBadInput, err)
	}

	lc := cfg.LLM()
	provider, err := llm.NewProvider(lc)
	if err != nil {
		return nil, withCode(exitCodeAPIError, err)
	}
	provider = llm.NewRateLimited(provider, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	a.logger.Debug("provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", lc.Model),
		zap.String("profile", prof.Name))

	an, err := analysis.New(provider, analysis.Options{
		Temperature:  cfg.Temperature,
		StageTimeout: cfg.StageTimeout,
		Concurrency:  cfg.Concurrency,
		Debug:        pf.debug,
		DebugWriter:  os.Stderr,
		Profile:      prof,
		Meta:         schema.Meta{Provider: cfg.Provider, Model: lc.Model},
	}, a.logger)
	if err != nil {
		return nil, withCode(exitCodeInternal, err)
	}
	return an, nil
}
