package analysis

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dshills/contractcheck/internal/risk"
	"github.com/dshills/contractcheck/internal/schema"
)

// toString renders a decoded JSON value as display text. Objects and lists
// are rendered as compact JSON.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// field returns the first non-empty value among keys.
func field(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringList coerces a decoded value into a list of strings. A single string
// becomes a one-element list. Object elements use their most descriptive
// field, falling back to compact JSON.
func stringList(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, e := range x {
			var s string
			if m, ok := e.(map[string]any); ok {
				s = field(m, "clause", "issue", "description", "concern", "text")
				if s == "" {
					s = toString(m)
				}
				if why := field(m, "explanation", "reason", "why"); why != "" && why != s {
					s += ": " + why
				}
			} else {
				s = toString(e)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := toString(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// duties coerces a decoded list into Duty records. String elements become the
// description.
func duties(v any) []schema.Duty {
	out := []schema.Duty{}
	list, ok := v.([]any)
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			out = append(out, schema.Duty{Description: strings.TrimSpace(s)})
		}
		return out
	}
	for _, e := range list {
		switch x := e.(type) {
		case map[string]any:
			d := schema.Duty{
				Party:       field(x, "party", "parties"),
				Clause:      field(x, "clause", "clause_number", "section"),
				Description: field(x, "description", "text", "details"),
			}
			if d != (schema.Duty{}) {
				out = append(out, d)
			}
		default:
			if s := toString(x); s != "" {
				out = append(out, schema.Duty{Description: s})
			}
		}
	}
	return out
}

// clauseIssue coerces one element of the unfavorable-clause reply. A bare
// string is taken as the clause text.
func clauseIssue(v any) (schema.ClauseIssue, bool) {
	switch x := v.(type) {
	case map[string]any:
		c := schema.ClauseIssue{
			Clause:         field(x, "clause", "clause_text", "text"),
			WhyProblematic: field(x, "why_problematic", "problem", "issue", "reason"),
			Consequences:   field(x, "consequences", "potential_consequences", "impact"),
			Severity:       risk.NormalizeSeverity(field(x, "severity", "risk_level")),
		}
		if c.Clause == "" && c.WhyProblematic == "" {
			return schema.ClauseIssue{}, false
		}
		return c, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return schema.ClauseIssue{}, false
		}
		return schema.ClauseIssue{Clause: s, Severity: risk.NormalizeSeverity("")}, true
	}
	return schema.ClauseIssue{}, false
}

// alternative coerces one element of the alternatives reply. Elements that
// cannot be read become a zero Alternative so later entries keep their
// positions.
func alternative(v any) schema.Alternative {
	switch x := v.(type) {
	case map[string]any:
		return schema.Alternative{
			Alternative:         field(x, "alternative", "recommended_alternative", "alternative_wording", "suggestion"),
			WhyBetter:           field(x, "why_better", "rationale"),
			NegotiationStrategy: field(x, "negotiation_strategy", "negotiation", "talking_points"),
		}
	case string:
		return schema.Alternative{Alternative: strings.TrimSpace(x)}
	}
	return schema.Alternative{}
}

func confidence(s string) schema.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return schema.ConfidenceHigh
	case "medium", "moderate":
		return schema.ConfidenceMedium
	default:
		return schema.ConfidenceLow
	}
}
