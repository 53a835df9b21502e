package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/contractcheck/internal/llm"
	"github.com/dshills/contractcheck/internal/prompt"
	"github.com/dshills/contractcheck/internal/schema"
)

func TestMain(m *testing.M) {
	// The genai client registers an opencensus view worker that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const ndaText = `This Agreement is made on 1 January 2025 between Acme Technologies Pvt Ltd
("Disclosing Party") and Beta Consulting LLP ("Receiving Party").
1. The Receiving Party shall hold all Confidential Information in strict confidence.
2. The obligations under this Agreement survive for five (5) years.
3. The Receiving Party shall indemnify the Disclosing Party for any loss without limit.
4. This Agreement is governed by the laws of India and courts at Mumbai.`

// reply is a canned model response for one stage.
type reply struct {
	text string
	err  error
	// block makes the call wait for its context to end.
	block bool
}

// stageProvider routes each call to a canned reply by recognizing the stage
// from its prompt.
type stageProvider struct {
	replies map[prompt.Stage]reply

	mu      sync.Mutex
	calls   map[prompt.Stage]int
	prompts map[prompt.Stage]string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newStageProvider(replies map[prompt.Stage]reply) *stageProvider {
	return &stageProvider{
		replies: replies,
		calls:   make(map[prompt.Stage]int),
		prompts: make(map[prompt.Stage]string),
	}
}

func stageOf(userPrompt string) prompt.Stage {
	switch {
	case strings.Contains(userPrompt, "suggest better alternatives"):
		return prompt.StageAlternatives
	case strings.Contains(userPrompt, "Explain this contract clause"):
		return prompt.StageExplain
	case strings.Contains(userPrompt, "classify it into one of these categories"):
		return prompt.StageClassify
	case strings.Contains(userPrompt, "Extract the following entities"):
		return prompt.StageEntities
	case strings.Contains(userPrompt, "categorize clauses into"):
		return prompt.StageObligations
	case strings.Contains(userPrompt, "Perform a detailed risk assessment"):
		return prompt.StageRisk
	case strings.Contains(userPrompt, "easy-to-understand summary"):
		return prompt.StageSummary
	case strings.Contains(userPrompt, "could be unfavorable or disadvantageous"):
		return prompt.StageUnfavorable
	}
	return ""
}

func (p *stageProvider) Complete(ctx context.Context, _, userPrompt string, _ int, _ float64) (string, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	stage := stageOf(userPrompt)
	p.mu.Lock()
	p.calls[stage]++
	p.prompts[stage] = userPrompt
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	r, ok := p.replies[stage]
	if !ok {
		return "", fmt.Errorf("mock: no reply for stage %q", stage)
	}
	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (p *stageProvider) callCount(s prompt.Stage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[s]
}

func (p *stageProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *stageProvider) promptFor(s prompt.Stage) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts[s]
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func happyReplies() map[prompt.Stage]reply {
	return map[prompt.Stage]reply{
		prompt.StageClassify: {text: "```json\n" +
			`{"contract_type":"Non-Disclosure Agreement (NDA)","sub_type":"Mutual NDA","confidence":"high"}` + "\n```"},
		prompt.StageEntities: {text: `{"parties":[{"name":"Acme Technologies Pvt Ltd","role":"Disclosing Party"}],` +
			`"dates":{"effective_date":"1 January 2025"},"financial_terms":[],"jurisdiction":"Mumbai, India",` +
			`"liabilities":"Unlimited indemnity by Receiving Party","deliverables":[]}`},
		prompt.StageObligations: {text: `{"obligations":[{"party":"Receiving Party","clause":"1","description":"Keep information confidential"}],` +
			`"rights":[],"prohibitions":["Disclosure to third parties"]}`},
		prompt.StageRisk: {text: `{"overall_risk_score":"68","overall_risk_level":"High",` +
			`"high_risk_clauses":["Clause 3: unlimited indemnity"],"medium_risk_clauses":[],"low_risk_clauses":["Clause 4"],` +
			`"critical_issues":["Cap the indemnity"],"compliance_concerns":[]}`},
		prompt.StageSummary: {text: "This is a one-way NDA between Acme and Beta. Beta must keep Acme's information secret for five years."},
		prompt.StageUnfavorable: {text: `[{"clause":"Unlimited indemnity","why_problematic":"No cap on liability","consequences":"Unbounded loss","severity":"High"},` +
			`{"clause":"Five year survival","problem":"Long tail","severity":"medium"}]`},
		prompt.StageAlternatives: {text: `{"alternatives":[{"alternative":"Cap indemnity at fees paid","why_better":"Bounded","negotiation_strategy":"Cite market practice"},` +
			`{"recommended_alternative":"Two year survival","negotiation_strategy":"Offer mutuality"}]}`},
		prompt.StageExplain: {text: "This clause means you must keep secrets."},
	}
}

func newTestAnalyzer(t *testing.T, p llm.Provider, opts Options) *Analyzer {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedNow }
	}
	if opts.StageTimeout == 0 {
		opts.StageTimeout = 2 * time.Second
	}
	a, err := New(p, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return a
}

func TestAnalyze_NDAEndToEnd(t *testing.T) {
	p := newStageProvider(happyReplies())
	a := newTestAnalyzer(t, p, Options{Meta: schema.Meta{Provider: "mock", Model: "mock-1"}})

	env, err := a.Analyze(context.Background(), ndaText, "NDA")
	require.NoError(t, err)

	assert.Contains(t, env.ContractType.ContractType, "Non-Disclosure")
	assert.Equal(t, schema.ConfidenceHigh, env.ContractType.Confidence)
	assert.False(t, env.ContractType.Degraded())
	assert.NotEmpty(t, env.Summary)
	assert.Equal(t, "NDA", env.RequestedType)
	assert.Equal(t, schema.LanguageEnglish, env.Language)
	assert.Equal(t, "mock", env.Meta.Provider)
	assert.Equal(t, "india-sme", env.Meta.Profile)
	assert.Empty(t, env.StageErrors)
	assert.False(t, env.Degraded())

	assert.Equal(t, "Mumbai, India", env.Entities.Jurisdiction)
	require.Len(t, env.ObligationsAnalysis.Obligations, 1)
	assert.Equal(t, "Receiving Party", env.ObligationsAnalysis.Obligations[0].Party)
	require.Len(t, env.ObligationsAnalysis.Prohibitions, 1)
	assert.Equal(t, "Disclosure to third parties", env.ObligationsAnalysis.Prohibitions[0].Description)
	assert.Empty(t, env.ObligationsAnalysis.Rights)

	assert.Equal(t, 68, env.RiskAssessment.OverallRiskScore)
	assert.Equal(t, schema.RiskHigh, env.RiskAssessment.OverallRiskLevel)

	require.Len(t, env.UnfavorableClauses, 2)
	assert.Equal(t, "Long tail", env.UnfavorableClauses[1].WhyProblematic)
	assert.Equal(t, schema.SeverityMedium, env.UnfavorableClauses[1].Severity)
	require.Len(t, env.SuggestedAlternatives, 2)
	assert.Equal(t, "Two year survival", env.SuggestedAlternatives[1].Alternative)

	assert.Equal(t, 7, p.totalCalls())
	assert.Contains(t, p.promptFor(prompt.StageClassify), "believes this is a NDA")

	b, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded struct {
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	ts, err := time.Parse(time.RFC3339Nano, decoded.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.Equal(fixedNow))
}

func TestAnalyze_AllStagesFail(t *testing.T) {
	boom := errors.New("connection refused")
	replies := map[prompt.Stage]reply{}
	for _, s := range prompt.Stages {
		replies[s] = reply{err: boom}
	}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err, "stage failures must not escape Analyze")

	assert.Equal(t, "Unknown", env.ContractType.ContractType)
	assert.Equal(t, "Error", env.ContractType.SubType)
	assert.Equal(t, schema.ConfidenceLow, env.ContractType.Confidence)
	assert.Contains(t, env.ContractType.Error, "connection refused")
	assert.False(t, env.ContractType.ParseError)

	assert.NotEmpty(t, env.Entities.Error)
	assert.NotNil(t, env.ObligationsAnalysis.Obligations)
	assert.Empty(t, env.ObligationsAnalysis.Obligations)

	assert.Equal(t, 0, env.RiskAssessment.OverallRiskScore)
	assert.Equal(t, schema.RiskUnknown, env.RiskAssessment.OverallRiskLevel)
	assert.NotNil(t, env.RiskAssessment.HighRiskClauses)
	assert.Empty(t, env.RiskAssessment.CriticalIssues)

	assert.True(t, strings.HasPrefix(env.Summary, "Error generating summary: "), env.Summary)
	assert.NotNil(t, env.UnfavorableClauses)
	assert.Empty(t, env.UnfavorableClauses)
	assert.Empty(t, env.SuggestedAlternatives)

	// Six failures; alternatives short-circuits on the empty fallback list.
	assert.Len(t, env.StageErrors, 6)
	assert.NotContains(t, env.StageErrors, string(prompt.StageAlternatives))
	assert.Equal(t, 0, p.callCount(prompt.StageAlternatives))
	assert.True(t, env.Degraded())
	assert.True(t, AllStagesFailed(env))
}

func TestAnalyze_RiskFailureIsIsolated(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageRisk] = reply{err: errors.New("503 service unavailable")}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	assert.Equal(t, 0, env.RiskAssessment.OverallRiskScore)
	assert.Equal(t, schema.RiskUnknown, env.RiskAssessment.OverallRiskLevel)
	assert.True(t, env.RiskAssessment.Degraded())
	assert.Len(t, env.StageErrors, 1)
	assert.Contains(t, env.StageErrors[string(prompt.StageRisk)], "503")
	assert.False(t, AllStagesFailed(env))

	assert.Contains(t, env.ContractType.ContractType, "Non-Disclosure")
	assert.Len(t, env.SuggestedAlternatives, 2)
}

func TestAnalyze_ParseFailureKeepsRaw(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageClassify] = reply{text: "I think this is an NDA."}
	replies[prompt.StageObligations] = reply{text: `["not", "an", "object"]`}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	assert.True(t, env.ContractType.ParseError)
	assert.Equal(t, "I think this is an NDA.", env.ContractType.RawResponse)
	assert.Equal(t, "Unknown", env.ContractType.ContractType)
	assert.Contains(t, env.StageErrors[string(prompt.StageClassify)], "not valid JSON")

	assert.True(t, env.ObligationsAnalysis.ParseError)
	assert.Contains(t, env.StageErrors[string(prompt.StageObligations)], "unexpected shape")
}

func TestAnalyze_AlternativesAlignment(t *testing.T) {
	var clauses, alts []string
	for i := 0; i < 7; i++ {
		clauses = append(clauses, fmt.Sprintf(`{"clause":"clause-%d","why_problematic":"w%d","severity":"High"}`, i, i))
		alts = append(alts, fmt.Sprintf(`{"alternative":"alt-%d","negotiation_strategy":"n%d"}`, i, i))
	}
	replies := happyReplies()
	replies[prompt.StageUnfavorable] = reply{text: "[" + strings.Join(clauses, ",") + "]"}
	replies[prompt.StageAlternatives] = reply{text: "[" + strings.Join(alts, ",") + "]"}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	require.Len(t, env.UnfavorableClauses, 7)
	require.Len(t, env.SuggestedAlternatives, schema.MaxAlternatives)
	for i := 0; i < schema.MaxAlternatives; i++ {
		alt, ok := env.AlternativeFor(i)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("alt-%d", i), alt.Alternative)
		assert.Equal(t, fmt.Sprintf("clause-%d", i), env.UnfavorableClauses[i].Clause)
	}
	_, ok := env.AlternativeFor(5)
	assert.False(t, ok)

	sent := p.promptFor(prompt.StageAlternatives)
	assert.Contains(t, sent, "clause-4")
	assert.NotContains(t, sent, "clause-5")
}

func TestAnalyze_AlternativesKeepPositions(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageUnfavorable] = reply{text: `["a","b","c","d"]`}
	replies[prompt.StageAlternatives] = reply{text: `[{"alternative":"A1"}, 42, "A3"]`}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	require.Len(t, env.SuggestedAlternatives, 3)
	assert.Equal(t, "A1", env.SuggestedAlternatives[0].Alternative)
	assert.Equal(t, schema.Alternative{}, env.SuggestedAlternatives[1])
	assert.Equal(t, "A3", env.SuggestedAlternatives[2].Alternative)
	_, ok := env.AlternativeFor(3)
	assert.False(t, ok, "short reply leaves trailing clauses unpaired")
}

func TestAnalyze_EmptyUnfavorableShortCircuits(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageUnfavorable] = reply{text: "[]"}
	p := newStageProvider(replies)
	a := newTestAnalyzer(t, p, Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	assert.Empty(t, env.SuggestedAlternatives)
	assert.NotNil(t, env.SuggestedAlternatives)
	assert.Equal(t, 0, p.callCount(prompt.StageAlternatives))
	assert.Equal(t, 6, p.totalCalls())
}

func TestAnalyze_UnfavorableShapeTolerance(t *testing.T) {
	for _, text := range []string{`["a","b"]`, `{"unfavorable_clauses": ["a","b"]}`, "```\n[\"a\",\"b\"]\n```"} {
		replies := happyReplies()
		replies[prompt.StageUnfavorable] = reply{text: text}
		a := newTestAnalyzer(t, newStageProvider(replies), Options{})

		env, err := a.Analyze(context.Background(), ndaText, "")
		require.NoError(t, err)
		require.Len(t, env.UnfavorableClauses, 2, text)
		assert.Equal(t, "a", env.UnfavorableClauses[0].Clause, text)
		assert.Equal(t, "b", env.UnfavorableClauses[1].Clause, text)
	}
}

func TestAnalyze_RiskScoreCoercion(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageRisk] = reply{text: `{"overall_risk_score":"82/100","overall_risk_level":"extreme",` +
		`"high_risk_clauses":[{"clause":"3","explanation":"uncapped"}],"critical_issues":"Cap it"}`}
	a := newTestAnalyzer(t, newStageProvider(replies), Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)
	assert.Equal(t, 82, env.RiskAssessment.OverallRiskScore)
	assert.Equal(t, schema.RiskCritical, env.RiskAssessment.OverallRiskLevel)
	assert.Equal(t, []string{"3: uncapped"}, env.RiskAssessment.HighRiskClauses)
	assert.Equal(t, []string{"Cap it"}, env.RiskAssessment.CriticalIssues)
	assert.Equal(t, []string{}, env.RiskAssessment.ComplianceConcerns)
}

func TestAnalyze_RiskLevelFromScore(t *testing.T) {
	cases := []struct {
		name      string
		reply     string
		wantScore int
		wantLevel schema.RiskLevel
	}{
		{"huge score clamps", `{"overall_risk_score":"1e300"}`, 100, schema.RiskCritical},
		{"float beyond int64", `{"overall_risk_score":1e19}`, 100, schema.RiskCritical},
		{"unknown level uses score", `{"overall_risk_score":40,"overall_risk_level":"unknown"}`, 40, schema.RiskMedium},
		{"unknown level no score", `{"overall_risk_level":"Unknown"}`, 0, schema.RiskUnknown},
		{"explicit level wins", `{"overall_risk_score":10,"overall_risk_level":"High"}`, 10, schema.RiskHigh},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			replies := happyReplies()
			replies[prompt.StageRisk] = reply{text: c.reply}
			a := newTestAnalyzer(t, newStageProvider(replies), Options{})

			env, err := a.Analyze(context.Background(), ndaText, "")
			require.NoError(t, err)
			assert.Equal(t, c.wantScore, env.RiskAssessment.OverallRiskScore)
			assert.Equal(t, c.wantLevel, env.RiskAssessment.OverallRiskLevel)
		})
	}
}

func TestAnalyze_RejectedCredentialsLoggedAsError(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageSummary] = reply{err: fmt.Errorf("google: %w", llm.ErrMissingCredential)}
	replies[prompt.StageRisk] = reply{err: errors.New("503 service unavailable")}
	core, logs := observer.New(zap.InfoLevel)
	a, err := New(newStageProvider(replies), Options{Clock: func() time.Time { return fixedNow }}, zap.New(core))
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)

	rejected := logs.FilterMessage("stage degraded: credentials rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.ErrorLevel, rejected[0].Level)
	assert.Equal(t, string(prompt.StageSummary), rejected[0].ContextMap()["stage"])

	degraded := logs.FilterMessage("stage degraded").All()
	require.Len(t, degraded, 1)
	assert.Equal(t, string(prompt.StageRisk), degraded[0].ContextMap()["stage"])
}

func TestAnalyze_EmptySummaryIsFailure(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageSummary] = reply{text: "   \n"}
	a := newTestAnalyzer(t, newStageProvider(replies), Options{})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(env.Summary, "Error generating summary: "))
	assert.Contains(t, env.StageErrors, string(prompt.StageSummary))
}

func TestAnalyze_StageTimeout(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageRisk] = reply{block: true}
	a := newTestAnalyzer(t, newStageProvider(replies), Options{StageTimeout: 30 * time.Millisecond})

	env, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)
	assert.Contains(t, env.RiskAssessment.Error, "deadline exceeded")
	assert.Equal(t, schema.RiskUnknown, env.RiskAssessment.OverallRiskLevel)
	assert.NotEmpty(t, env.Summary)
}

func TestAnalyze_EmptyContract(t *testing.T) {
	p := newStageProvider(happyReplies())
	a := newTestAnalyzer(t, p, Options{})

	_, err := a.Analyze(context.Background(), "  \n\t", "NDA")
	assert.ErrorIs(t, err, ErrEmptyContract)
	assert.Equal(t, 0, p.totalCalls())
}

func TestAnalyze_CanceledContext(t *testing.T) {
	p := newStageProvider(happyReplies())
	a := newTestAnalyzer(t, p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, ndaText, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.totalCalls())
}

func TestNew_NilProvider(t *testing.T) {
	_, err := New(nil, Options{}, nil)
	assert.ErrorIs(t, err, ErrNilProvider)
}

func TestAnalyze_ConcurrencyLimit(t *testing.T) {
	p := newStageProvider(happyReplies())
	p.delay = 15 * time.Millisecond
	a := newTestAnalyzer(t, p, Options{Concurrency: 2})

	_, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, p.maxInFlight.Load(), int32(2))
	assert.Equal(t, 7, p.totalCalls())
}

func TestAnalyze_DebugWritesPrompts(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAnalyzer(t, newStageProvider(happyReplies()), Options{Debug: true, DebugWriter: &buf})

	_, err := a.Analyze(context.Background(), ndaText, "")
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "=== classify prompt ===")
	assert.Contains(t, out, "=== generate_alternatives reply ===")
}

func TestExplain(t *testing.T) {
	p := newStageProvider(happyReplies())
	a := newTestAnalyzer(t, p, Options{})

	got, err := a.Explain(context.Background(), "The Receiving Party shall hold all information in confidence.")
	require.NoError(t, err)
	assert.Equal(t, "This clause means you must keep secrets.", got)
	assert.Contains(t, p.promptFor(prompt.StageExplain), "shall hold all information")
}

func TestExplain_PropagatesErrors(t *testing.T) {
	replies := happyReplies()
	replies[prompt.StageExplain] = reply{err: errors.New("quota exhausted")}
	a := newTestAnalyzer(t, newStageProvider(replies), Options{})

	_, err := a.Explain(context.Background(), "Clause 1.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")

	_, err = a.Explain(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyContract)
}
