// Package prompt builds the per-stage prompts sent to the model. Building is
// pure: the same stage, text, and context always yield the same prompt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/contractcheck/internal/profile"
	"github.com/dshills/contractcheck/internal/schema"
)

// Stage identifies one analysis round-trip.
type Stage string

const (
	StageClassify     Stage = "classify"
	StageEntities     Stage = "extract_entities"
	StageObligations  Stage = "analyze_obligations"
	StageRisk         Stage = "assess_risk"
	StageSummary      Stage = "generate_summary"
	StageUnfavorable  Stage = "identify_unfavorable"
	StageAlternatives Stage = "generate_alternatives"
	StageExplain      Stage = "explain_clause"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{
	StageClassify,
	StageEntities,
	StageObligations,
	StageRisk,
	StageSummary,
	StageUnfavorable,
	StageAlternatives,
}

// stageSpec holds the fixed parameters of one stage. budget is the number of
// leading characters of the contract the stage sees; 0 means the stage does
// not consume contract text.
type stageSpec struct {
	budget    int
	maxTokens int
	template  string
}

var specs = map[Stage]stageSpec{
	StageClassify:     {budget: 2000, maxTokens: 1000, template: classifyTemplate},
	StageEntities:     {budget: 3000, maxTokens: 2000, template: entitiesTemplate},
	StageObligations:  {budget: 3000, maxTokens: 2000, template: obligationsTemplate},
	StageRisk:         {budget: 4000, maxTokens: 3000, template: riskTemplate},
	StageSummary:      {budget: 4000, maxTokens: 2000, template: summaryTemplate},
	StageUnfavorable:  {budget: 4000, maxTokens: 2500, template: unfavorableTemplate},
	StageAlternatives: {maxTokens: 3000, template: alternativesTemplate},
	StageExplain:      {maxTokens: 1000, template: explainTemplate},
}

// Budget returns the number of contract characters the stage consumes.
func (s Stage) Budget() int { return specs[s].budget }

// MaxTokens returns the output token cap for the stage's model call.
func (s Stage) MaxTokens() int { return specs[s].maxTokens }

// Context carries optional caller input that shapes a prompt.
type Context struct {
	// ContractType is the caller's declared contract type. Only the classify
	// stage uses it, as a hint.
	ContractType string
}

// Builder renders prompts for one review profile.
type Builder struct {
	profile profile.Profile
}

// NewBuilder returns a Builder for p.
func NewBuilder(p profile.Profile) Builder {
	return Builder{profile: p}
}

// System returns the system prompt shared by every stage.
func (b Builder) System() string {
	var sb strings.Builder
	sb.WriteString("You are a contract review assistant. You read contracts and explain them ")
	sb.WriteString("for readers without legal training.\n\n")
	sb.WriteString("When asked for JSON, output ONLY valid JSON: no markdown, no backticks, ")
	sb.WriteString("no explanation outside the JSON.\n\n")
	sb.WriteString("Base every statement on the contract text provided. If the text does not ")
	sb.WriteString("say something, do not invent it.\n\n")
	if b.profile.SystemPromptAddendum != "" {
		sb.WriteString(b.profile.SystemPromptAddendum)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Build renders the prompt for a stage that consumes contract text. The text
// is cut to the stage's character budget.
func (b Builder) Build(stage Stage, text string, pc Context) (string, error) {
	spec, ok := specs[stage]
	if !ok || spec.budget == 0 {
		return "", fmt.Errorf("prompt: stage %q does not take contract text", stage)
	}
	return b.render(spec.template, Truncate(text, spec.budget), hintFor(stage, pc), ""), nil
}

// BuildAlternatives renders the alternatives prompt from the first
// schema.MaxAlternatives clause records.
func (b Builder) BuildAlternatives(clauses []schema.ClauseIssue) (string, error) {
	if len(clauses) > schema.MaxAlternatives {
		clauses = clauses[:schema.MaxAlternatives]
	}
	body, err := json.MarshalIndent(clauses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("prompt: marshal clauses: %w", err)
	}
	return b.render(alternativesTemplate, string(body), "", fmt.Sprint(len(clauses))), nil
}

// BuildExplanation renders the plain-language explanation prompt for a single
// clause.
func (b Builder) BuildExplanation(clause string) string {
	return b.render(explainTemplate, strings.TrimSpace(clause), "", "")
}

func (b Builder) render(template, body, hint, count string) string {
	r := strings.NewReplacer(
		"{{COUNT}}", count,
		"{{AUDIENCE}}", b.audience(),
		"{{COMPLIANCE}}", b.compliance(),
		"{{HINT}}", hint,
		"{{CONTRACT}}", body,
	)
	return r.Replace(template)
}

func (b Builder) audience() string {
	if b.profile.Audience == "" {
		return "a small or medium business"
	}
	return b.profile.Audience
}

func (b Builder) compliance() string {
	if b.profile.ComplianceScope == "" {
		return "small and medium businesses"
	}
	return b.profile.ComplianceScope
}

func hintFor(stage Stage, pc Context) string {
	if stage != StageClassify {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(pc.ContractType)) {
	case "", "general", "auto-detect", "auto", "other":
		return ""
	}
	return fmt.Sprintf("The uploader believes this is a %s. Verify this against the text.\n\n",
		strings.TrimSpace(pc.ContractType))
}

// Truncate returns the first n characters of s. Characters are runes, so a
// multi-byte script is never cut inside a character, but a cut may still fall
// mid-word or mid-sentence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		// Fewer bytes than n implies fewer runes than n.
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
