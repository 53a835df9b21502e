// Package risk provides deterministic local logic for severity and risk-level
// handling. No LLM calls are made here.
package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/contractcheck/internal/schema"
)

// ParseSeverity converts a string to a Severity constant, ignoring case.
// Returns an error for unrecognized values.
func ParseSeverity(s string) (schema.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return schema.SeverityLow, nil
	case "medium", "moderate":
		return schema.SeverityMedium, nil
	case "high", "critical", "severe":
		return schema.SeverityHigh, nil
	}
	return "", fmt.Errorf("risk: unknown severity %q", s)
}

// NormalizeSeverity is ParseSeverity with a Medium fallback for values the
// model invented.
func NormalizeSeverity(s string) schema.Severity {
	sev, err := ParseSeverity(s)
	if err != nil {
		return schema.SeverityMedium
	}
	return sev
}

// SeverityOrdinal returns Low=0, Medium=1, High=2, or -1 for unknown values.
func SeverityOrdinal(s schema.Severity) int {
	switch s {
	case schema.SeverityLow:
		return 0
	case schema.SeverityMedium:
		return 1
	case schema.SeverityHigh:
		return 2
	default:
		return -1
	}
}

// ParseLevel converts a string to a RiskLevel constant, ignoring case.
// "Unknown" is accepted; anything else unrecognized is an error.
func ParseLevel(s string) (schema.RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return schema.RiskLow, nil
	case "medium", "moderate":
		return schema.RiskMedium, nil
	case "high":
		return schema.RiskHigh, nil
	case "critical", "severe":
		return schema.RiskCritical, nil
	case "unknown":
		return schema.RiskUnknown, nil
	}
	return "", fmt.Errorf("risk: unknown level %q", s)
}

// LevelOrdinal returns the numeric ordinal for a risk level, used to compare
// levels. Low=0, Medium=1, High=2, Critical=3; Unknown and invalid values
// are -1 so they never trip a threshold.
func LevelOrdinal(l schema.RiskLevel) int {
	switch l {
	case schema.RiskLow:
		return 0
	case schema.RiskMedium:
		return 1
	case schema.RiskHigh:
		return 2
	case schema.RiskCritical:
		return 3
	default:
		return -1
	}
}

// AtOrAbove reports whether actual is a known level at least as severe as
// threshold.
func AtOrAbove(actual, threshold schema.RiskLevel) bool {
	a := LevelOrdinal(actual)
	return a >= 0 && a >= LevelOrdinal(threshold)
}

// LevelForScore maps a 0-100 score onto a level: 0-25 Low, 26-50 Medium,
// 51-75 High, 76-100 Critical. Used when the model reports a score but no
// usable level.
func LevelForScore(score int) schema.RiskLevel {
	switch {
	case score <= 25:
		return schema.RiskLow
	case score <= 50:
		return schema.RiskMedium
	case score <= 75:
		return schema.RiskHigh
	default:
		return schema.RiskCritical
	}
}

// CoerceScore converts a model-supplied score to an int clamped to [0, 100].
// Numbers and numeric strings ("75", " 62.5 ", "75/100", "80%") are accepted;
// anything else yields 0 and ok=false.
func CoerceScore(v any) (score int, ok bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if i := strings.IndexByte(s, '/'); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		s = strings.TrimSuffix(s, "%")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Clamp before converting: out-of-range float to int is undefined.
	return int(math.Round(clamp(f))), true
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}

// CountBySeverity returns the number of unfavorable clauses at each severity.
func CountBySeverity(clauses []schema.ClauseIssue) (high, medium, low int) {
	for _, c := range clauses {
		switch c.Severity {
		case schema.SeverityHigh:
			high++
		case schema.SeverityMedium:
			medium++
		case schema.SeverityLow:
			low++
		}
	}
	return
}
