package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/contractcheck/internal/normalize"
	"github.com/dshills/contractcheck/internal/prompt"
	"github.com/dshills/contractcheck/internal/risk"
	"github.com/dshills/contractcheck/internal/schema"
)

// ErrParse marks a stage whose reply was not valid JSON.
var ErrParse = errors.New("analysis: reply is not valid JSON")

// ErrShape marks a stage whose reply parsed but had the wrong shape.
var ErrShape = errors.New("analysis: reply has unexpected shape")

// ErrEmptyReply marks a text stage whose reply was blank.
var ErrEmptyReply = errors.New("analysis: empty reply")

// Every stage method returns its slot value and an error. A non-nil error
// means the value is the stage's fallback; the error is recorded in the
// envelope's stage_errors and never aborts the pipeline.

func (a *Analyzer) classify(ctx context.Context, text string, pc prompt.Context) (schema.Classification, error) {
	fallback := func(err error, raw string) schema.Classification {
		return schema.Classification{
			ContractType: "Unknown",
			SubType:      "Error",
			Confidence:   schema.ConfidenceLow,
			Failure:      failure(err, raw),
		}
	}
	m, raw, err := a.object(ctx, prompt.StageClassify, text, pc)
	if err != nil {
		return fallback(err, raw), err
	}
	c := schema.Classification{
		ContractType: field(m, "contract_type", "type", "category"),
		SubType:      field(m, "sub_type", "subtype"),
		Confidence:   confidence(field(m, "confidence")),
	}
	if c.ContractType == "" {
		c.ContractType = "Unknown"
	}
	return c, nil
}

func (a *Analyzer) extractEntities(ctx context.Context, text string) (schema.Entities, error) {
	m, raw, err := a.object(ctx, prompt.StageEntities, text, prompt.Context{})
	if err != nil {
		return schema.Entities{Failure: failure(err, raw)}, err
	}
	return schema.Entities{
		Parties:        m["parties"],
		Dates:          m["dates"],
		FinancialTerms: firstPresent(m, "financial_terms", "financial_amounts"),
		Jurisdiction:   m["jurisdiction"],
		Liabilities:    m["liabilities"],
		Deliverables:   firstPresent(m, "deliverables", "key_deliverables"),
	}, nil
}

func (a *Analyzer) analyzeObligations(ctx context.Context, text string) (schema.Obligations, error) {
	m, raw, err := a.object(ctx, prompt.StageObligations, text, prompt.Context{})
	if err != nil {
		return schema.Obligations{
			Obligations:  []schema.Duty{},
			Rights:       []schema.Duty{},
			Prohibitions: []schema.Duty{},
			Failure:      failure(err, raw),
		}, err
	}
	return schema.Obligations{
		Obligations:  duties(m["obligations"]),
		Rights:       duties(m["rights"]),
		Prohibitions: duties(m["prohibitions"]),
	}, nil
}

func (a *Analyzer) assessRisk(ctx context.Context, text string) (schema.RiskAssessment, error) {
	m, raw, err := a.object(ctx, prompt.StageRisk, text, prompt.Context{})
	if err != nil {
		ra := emptyRisk()
		ra.Failure = failure(err, raw)
		return ra, err
	}
	ra := emptyRisk()
	score, scored := risk.CoerceScore(m["overall_risk_score"])
	ra.OverallRiskScore = score
	level, lerr := risk.ParseLevel(field(m, "overall_risk_level", "risk_level"))
	switch {
	case lerr == nil && level != schema.RiskUnknown:
		ra.OverallRiskLevel = level
	case scored:
		ra.OverallRiskLevel = risk.LevelForScore(score)
	}
	ra.HighRiskClauses = stringList(m["high_risk_clauses"])
	ra.MediumRiskClauses = stringList(m["medium_risk_clauses"])
	ra.LowRiskClauses = stringList(m["low_risk_clauses"])
	ra.CriticalIssues = stringList(m["critical_issues"])
	ra.ComplianceConcerns = stringList(m["compliance_concerns"])
	return ra, nil
}

func emptyRisk() schema.RiskAssessment {
	return schema.RiskAssessment{
		OverallRiskScore:   0,
		OverallRiskLevel:   schema.RiskUnknown,
		HighRiskClauses:    []string{},
		MediumRiskClauses:  []string{},
		LowRiskClauses:     []string{},
		CriticalIssues:     []string{},
		ComplianceConcerns: []string{},
	}
}

func (a *Analyzer) generateSummary(ctx context.Context, text string) (string, error) {
	p, err := a.builder.Build(prompt.StageSummary, text, prompt.Context{})
	if err != nil {
		return summaryFallback(err), err
	}
	raw, err := a.call(ctx, prompt.StageSummary, p)
	if err != nil {
		return summaryFallback(err), err
	}
	summary := normalize.StripFences(raw)
	if summary == "" {
		err = fmt.Errorf("%s: %w", prompt.StageSummary, ErrEmptyReply)
		return summaryFallback(err), err
	}
	return summary, nil
}

func summaryFallback(err error) string {
	return "Error generating summary: " + err.Error()
}

func (a *Analyzer) identifyUnfavorable(ctx context.Context, text string) ([]schema.ClauseIssue, error) {
	out := []schema.ClauseIssue{}
	p, err := a.builder.Build(prompt.StageUnfavorable, text, prompt.Context{})
	if err != nil {
		return out, err
	}
	raw, err := a.call(ctx, prompt.StageUnfavorable, p)
	if err != nil {
		return out, err
	}
	list, err := listOf(prompt.StageUnfavorable, normalize.Parse(raw), "unfavorable_clauses")
	if err != nil {
		return out, err
	}
	for _, e := range list {
		if c, ok := clauseIssue(e); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// generateAlternatives asks for replacement wording for the first
// schema.MaxAlternatives clauses. The result is index-aligned with its input:
// it is never longer than the input, and unreadable elements are kept as
// zero values rather than dropped.
func (a *Analyzer) generateAlternatives(ctx context.Context, clauses []schema.ClauseIssue) ([]schema.Alternative, error) {
	out := []schema.Alternative{}
	if len(clauses) == 0 {
		return out, nil
	}
	if len(clauses) > schema.MaxAlternatives {
		clauses = clauses[:schema.MaxAlternatives]
	}
	p, err := a.builder.BuildAlternatives(clauses)
	if err != nil {
		return out, err
	}
	raw, err := a.call(ctx, prompt.StageAlternatives, p)
	if err != nil {
		return out, err
	}
	list, err := listOf(prompt.StageAlternatives, normalize.Parse(raw), "alternatives")
	if err != nil {
		return out, err
	}
	if len(list) > len(clauses) {
		list = list[:len(clauses)]
	}
	for _, e := range list {
		out = append(out, alternative(e))
	}
	return out, nil
}

// object runs an object-shaped stage. On failure it also returns the raw
// reply, if one was received, so the fallback can carry it.
func (a *Analyzer) object(ctx context.Context, stage prompt.Stage, text string, pc prompt.Context) (map[string]any, string, error) {
	p, err := a.builder.Build(stage, text, pc)
	if err != nil {
		return nil, "", err
	}
	raw, err := a.call(ctx, stage, p)
	if err != nil {
		return nil, "", err
	}
	r := normalize.Parse(raw)
	if r.Failed() {
		return nil, raw, fmt.Errorf("%s: %w", stage, ErrParse)
	}
	m, ok := r.Object()
	if !ok {
		return nil, raw, fmt.Errorf("%s: %w: want object, got %s", stage, ErrShape, r.Kind)
	}
	return m, "", nil
}

func listOf(stage prompt.Stage, r normalize.Result, key string) ([]any, error) {
	if r.Failed() {
		return nil, fmt.Errorf("%s: %w", stage, ErrParse)
	}
	list, ok := r.List(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w: want list or {%q: [...]}, got %s", stage, ErrShape, key, r.Kind)
	}
	return list, nil
}

// failure builds the Failure marker for a fallback slot. A raw reply is kept
// only when it arrived but could not be used.
func failure(err error, raw string) schema.Failure {
	f := schema.Failure{Error: err.Error()}
	if raw != "" {
		f.RawResponse = raw
		f.ParseError = errors.Is(err, ErrParse) || errors.Is(err, ErrShape)
	}
	return f
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// explanation cleans the reply of the clause explainer.
func explanation(raw string) (string, error) {
	s := strings.TrimSpace(normalize.StripFences(raw))
	if s == "" {
		return "", ErrEmptyReply
	}
	return s, nil
}
