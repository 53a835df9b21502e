// Package render produces reports from a fully assembled schema.Envelope.
// Every renderer accepts an envelope in which any section holds its fallback
// value.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/contractcheck/internal/risk"
	"github.com/dshills/contractcheck/internal/schema"
)

// Disclaimer closes every human-readable report.
const Disclaimer = "This analysis is for informational purposes only and does not constitute legal advice. " +
	"Please consult a qualified legal professional before making any decisions based on this report."

// NA is printed in place of a missing value.
const NA = "N/A"

// RenderJSON produces a pretty-printed JSON representation of the envelope.
func RenderJSON(env *schema.Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("render: nil envelope")
	}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown report. It emits no raw
// HTML.
func RenderMarkdown(env *schema.Envelope) string {
	if env == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("# Contract Analysis Report\n\n")
	fmt.Fprintf(&sb, "**Generated on:** %s  \n", env.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	if env.Meta.Model != "" {
		fmt.Fprintf(&sb, "**Model:** %s (%s)  \n", env.Meta.Model, orNA(env.Meta.Provider))
	}
	if env.Meta.Profile != "" {
		fmt.Fprintf(&sb, "**Profile:** %s  \n", env.Meta.Profile)
	}
	if env.Language != "" {
		fmt.Fprintf(&sb, "**Language:** %s  \n", env.Language)
	}
	if env.RequestedType != "" {
		fmt.Fprintf(&sb, "**Declared type:** %s  \n", inline(env.RequestedType))
	}
	sb.WriteString("\n")

	if len(env.StageErrors) > 0 {
		stages := make([]string, 0, len(env.StageErrors))
		for s := range env.StageErrors {
			stages = append(stages, s)
		}
		sort.Strings(stages)
		fmt.Fprintf(&sb, "> **Partial analysis:** %d stage(s) could not be completed (%s). "+
			"Affected sections show N/A or are empty.\n\n", len(stages), strings.Join(stages, ", "))
	}

	writeClassification(&sb, env.ContractType)
	writeSummary(&sb, env.Summary)
	writeRisk(&sb, env.RiskAssessment)
	writeEntities(&sb, env.Entities)
	writeUnfavorable(&sb, env)
	writeObligations(&sb, env.ObligationsAnalysis)

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Note: %s*\n", Disclaimer)
	return sb.String()
}

func writeClassification(sb *strings.Builder, c schema.Classification) {
	sb.WriteString("## 1. Contract Classification\n\n")
	fmt.Fprintf(sb, "- **Type:** %s\n", inline(orNA(c.ContractType)))
	fmt.Fprintf(sb, "- **Sub-type:** %s\n", inline(orNA(c.SubType)))
	fmt.Fprintf(sb, "- **Confidence:** %s\n\n", orNA(string(c.Confidence)))
	writeFailure(sb, c.Failure)
}

func writeSummary(sb *strings.Builder, summary string) {
	sb.WriteString("## 2. Executive Summary\n\n")
	summary = strings.TrimSpace(summary)
	if summary == "" {
		sb.WriteString(NA + "\n\n")
		return
	}
	for _, para := range strings.Split(summary, "\n") {
		if p := strings.TrimSpace(para); p != "" {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
	}
}

func writeRisk(sb *strings.Builder, r schema.RiskAssessment) {
	sb.WriteString("## 3. Risk Assessment\n\n")
	score := strconv.Itoa(r.OverallRiskScore) + "/100"
	if r.Degraded() {
		score = NA
	}
	level := string(r.OverallRiskLevel)
	if level == "" || r.OverallRiskLevel == schema.RiskUnknown {
		level = NA
	}
	fmt.Fprintf(sb, "**Overall Risk Score:** %s  \n", score)
	fmt.Fprintf(sb, "**Risk Level:** %s\n\n", level)
	writeFailure(sb, r.Failure)

	writeNumbered(sb, "High Risk Clauses", r.HighRiskClauses)
	writeNumbered(sb, "Medium Risk Clauses", r.MediumRiskClauses)
	writeNumbered(sb, "Low Risk Clauses", r.LowRiskClauses)
	writeNumbered(sb, "Critical Issues to Address", r.CriticalIssues)
	writeNumbered(sb, "Compliance Concerns", r.ComplianceConcerns)
}

func writeNumbered(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", title)
	for i, it := range items {
		fmt.Fprintf(sb, "%d. %s\n", i+1, inline(it))
	}
	sb.WriteString("\n")
}

func writeEntities(sb *strings.Builder, e schema.Entities) {
	sb.WriteString("## 4. Key Contract Entities\n\n")
	writeFailure(sb, e.Failure)
	fields := []struct {
		title string
		value any
	}{
		{"Parties", e.Parties},
		{"Dates", e.Dates},
		{"Financial Terms", e.FinancialTerms},
		{"Jurisdiction", e.Jurisdiction},
		{"Liabilities", e.Liabilities},
		{"Deliverables", e.Deliverables},
	}
	wrote := false
	for _, f := range fields {
		lines := valueLines(f.value)
		if len(lines) == 0 {
			continue
		}
		wrote = true
		fmt.Fprintf(sb, "### %s\n\n", f.title)
		for _, l := range lines {
			fmt.Fprintf(sb, "- %s\n", l)
		}
		sb.WriteString("\n")
	}
	if !wrote && !e.Degraded() {
		sb.WriteString(NA + "\n\n")
	}
}

func writeUnfavorable(sb *strings.Builder, env *schema.Envelope) {
	sb.WriteString("## 5. Unfavorable Clauses & Recommendations\n\n")
	if len(env.UnfavorableClauses) == 0 {
		sb.WriteString("No unfavorable clauses were identified.\n\n")
		return
	}
	high, medium, low := risk.CountBySeverity(env.UnfavorableClauses)
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| High | %d |\n| Medium | %d |\n| Low | %d |\n\n", high, medium, low)

	for i, c := range env.UnfavorableClauses {
		fmt.Fprintf(sb, "### Issue %d [%s]\n\n", i+1, orNA(string(c.Severity)))
		fmt.Fprintf(sb, "**Clause:** %s\n\n", inline(orNA(c.Clause)))
		fmt.Fprintf(sb, "**Problem:** %s\n\n", inline(orNA(c.WhyProblematic)))
		if c.Consequences != "" {
			fmt.Fprintf(sb, "**Consequences:** %s\n\n", inline(c.Consequences))
		}
		alt, ok := env.AlternativeFor(i)
		if !ok || alt.Alternative == "" {
			continue
		}
		fmt.Fprintf(sb, "**Recommended Alternative:** %s\n\n", inline(alt.Alternative))
		if alt.WhyBetter != "" {
			fmt.Fprintf(sb, "**Why Better:** %s\n\n", inline(alt.WhyBetter))
		}
		if alt.NegotiationStrategy != "" {
			fmt.Fprintf(sb, "**Negotiation Strategy:** %s\n\n", inline(alt.NegotiationStrategy))
		}
	}
}

func writeObligations(sb *strings.Builder, o schema.Obligations) {
	sb.WriteString("## 6. Obligations, Rights & Prohibitions\n\n")
	writeFailure(sb, o.Failure)
	groups := []struct {
		title  string
		duties []schema.Duty
	}{
		{"Obligations", o.Obligations},
		{"Rights", o.Rights},
		{"Prohibitions", o.Prohibitions},
	}
	for _, g := range groups {
		fmt.Fprintf(sb, "### %s\n\n", g.title)
		if len(g.duties) == 0 {
			sb.WriteString(NA + "\n\n")
			continue
		}
		for _, d := range g.duties {
			desc := d.Description
			if desc == "" {
				desc = d.Clause
			}
			line := fmt.Sprintf("[%s] %s", orNA(d.Party), inline(orNA(desc)))
			if d.Clause != "" && d.Description != "" {
				line += fmt.Sprintf(" (Clause %s)", inline(d.Clause))
			}
			fmt.Fprintf(sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}
}

// writeFailure notes a section that holds its fallback value. An unparsed
// reply is shown verbatim in a fenced block so the reader can still use it.
func writeFailure(sb *strings.Builder, f schema.Failure) {
	if !f.Degraded() {
		return
	}
	if f.Error != "" {
		fmt.Fprintf(sb, "*Section unavailable: %s*\n\n", inline(f.Error))
	}
	if f.RawResponse != "" {
		sb.WriteString("Unparsed model reply:\n\n")
		fence := "```"
		for strings.Contains(f.RawResponse, fence) {
			fence += "`"
		}
		fmt.Fprintf(sb, "%s\n%s\n%s\n\n", fence, strings.TrimSpace(f.RawResponse), fence)
	}
}

// valueLines flattens a decoded JSON value into display lines.
func valueLines(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{inline(s)}
		}
		return nil
	case []any:
		var out []string
		for _, e := range x {
			if s := inlineValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		var out []string
		for _, k := range sortedKeys(x) {
			if s := inlineValue(x[k]); s != "" {
				out = append(out, fmt.Sprintf("**%s:** %s", titleize(k), s))
			}
		}
		return out
	default:
		if s := inlineValue(x); s != "" {
			return []string{s}
		}
		return nil
	}
}

// inlineValue renders a value on one line. Objects become "key: value" pairs.
func inlineValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return inline(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := inlineValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		parts := make([]string, 0, len(x))
		for _, k := range sortedKeys(x) {
			if s := inlineValue(x[k]); s != "" {
				parts = append(parts, titleize(k)+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return inline(fmt.Sprint(x))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// titleize turns "effective_date" into "Effective Date".
func titleize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}

// inline collapses s onto one line so that it cannot break list or table
// structure.
func inline(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}
