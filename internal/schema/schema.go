// Package schema defines all canonical data types for the contractcheck
// analysis envelope.
package schema

import "time"

// Confidence is the classifier's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Severity grades a single unfavorable clause.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// RiskLevel grades the contract as a whole.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
	RiskUnknown  RiskLevel = "Unknown"
)

// Language is the detected script of the contract text.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageUnknown Language = "unknown"
)

// Failure marks a section that fell back to its default value. It is embedded
// in every structured section so the reason stays next to the data.
type Failure struct {
	Error       string `json:"error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
	ParseError  bool   `json:"parse_error,omitempty"`
}

// Degraded reports whether the section holds a fallback value.
func (f Failure) Degraded() bool {
	return f.Error != "" || f.ParseError
}

// Classification is the contract category reported by the classify stage.
type Classification struct {
	ContractType string     `json:"contract_type"`
	SubType      string     `json:"sub_type"`
	Confidence   Confidence `json:"confidence"`
	Failure
}

// Entities holds the named entities extracted from the contract. The model
// decides the inner shape of each field (string, list, or object), so the
// values are kept as decoded JSON.
type Entities struct {
	Parties        any `json:"parties,omitempty"`
	Dates          any `json:"dates,omitempty"`
	FinancialTerms any `json:"financial_terms,omitempty"`
	Jurisdiction   any `json:"jurisdiction,omitempty"`
	Liabilities    any `json:"liabilities,omitempty"`
	Deliverables   any `json:"deliverables,omitempty"`
	Failure
}

// Duty is one obligation, right, or prohibition attributed to a party.
type Duty struct {
	Party       string `json:"party"`
	Clause      string `json:"clause"`
	Description string `json:"description"`
}

// Obligations groups duties into what a party must, may, and must not do.
type Obligations struct {
	Obligations  []Duty `json:"obligations"`
	Rights       []Duty `json:"rights"`
	Prohibitions []Duty `json:"prohibitions"`
	Failure
}

// RiskAssessment is the contract-wide risk report.
type RiskAssessment struct {
	OverallRiskScore   int       `json:"overall_risk_score"`
	OverallRiskLevel   RiskLevel `json:"overall_risk_level"`
	HighRiskClauses    []string  `json:"high_risk_clauses"`
	MediumRiskClauses  []string  `json:"medium_risk_clauses"`
	LowRiskClauses     []string  `json:"low_risk_clauses"`
	CriticalIssues     []string  `json:"critical_issues"`
	ComplianceConcerns []string  `json:"compliance_concerns"`
	Failure
}

// ClauseIssue is a clause judged unfavorable to the reviewing party.
type ClauseIssue struct {
	Clause         string   `json:"clause"`
	WhyProblematic string   `json:"why_problematic"`
	Consequences   string   `json:"consequences,omitempty"`
	Severity       Severity `json:"severity"`
}

// Alternative is suggested replacement wording for the ClauseIssue at the
// same index.
type Alternative struct {
	Alternative         string `json:"alternative"`
	WhyBetter           string `json:"why_better,omitempty"`
	NegotiationStrategy string `json:"negotiation_strategy"`
}

// Meta records which model produced the envelope.
type Meta struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Profile  string `json:"profile,omitempty"`
}

// Envelope is the result of one analysis run. It is assembled once and never
// modified afterwards.
//
// SuggestedAlternatives[i] pairs with UnfavorableClauses[i]; at most the first
// MaxAlternatives clauses have a pairing.
type Envelope struct {
	Timestamp             time.Time         `json:"timestamp"`
	RequestedType         string            `json:"requested_type,omitempty"`
	Language              Language          `json:"language,omitempty"`
	ContractType          Classification    `json:"contract_type"`
	Entities              Entities          `json:"entities"`
	ObligationsAnalysis   Obligations       `json:"obligations_analysis"`
	RiskAssessment        RiskAssessment    `json:"risk_assessment"`
	Summary               string            `json:"summary"`
	UnfavorableClauses    []ClauseIssue     `json:"unfavorable_clauses"`
	SuggestedAlternatives []Alternative     `json:"suggested_alternatives"`
	StageErrors           map[string]string `json:"stage_errors,omitempty"`
	Meta                  Meta              `json:"meta"`
}

// MaxAlternatives is the number of unfavorable clauses sent to the
// alternatives stage.
const MaxAlternatives = 5

// AlternativeFor returns the alternative paired with unfavorable clause i.
func (e *Envelope) AlternativeFor(i int) (Alternative, bool) {
	if i < 0 || i >= len(e.SuggestedAlternatives) || i >= len(e.UnfavorableClauses) {
		return Alternative{}, false
	}
	return e.SuggestedAlternatives[i], true
}

// Degraded reports whether any stage fell back to its default value.
func (e *Envelope) Degraded() bool {
	return len(e.StageErrors) > 0
}
