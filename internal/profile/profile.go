// Package profile defines review profiles that modulate prompt construction.
// A profile names the party the review is written for and the regulatory
// context the risk stage should consider.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes whose interests a review protects.
type Profile struct {
	Name        string
	Description string
	// Audience is spliced into prompts: "clauses unfavorable to <Audience>".
	Audience string
	// ComplianceScope names the regulatory context for compliance concerns.
	ComplianceScope      string
	SystemPromptAddendum string
}

// Default is the profile used when none is configured.
const Default = "india-sme"

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"india-sme": {
		Name:            "india-sme",
		Description:     "Small or medium business operating in India (default).",
		Audience:        "a small or medium business in India",
		ComplianceScope: "Indian SMEs",
		SystemPromptAddendum: "The reader runs a small or medium business in India and has no legal " +
			"training. Amounts are usually in INR. Flag terms that conflict with common Indian " +
			"statutory protections, and prefer plain business language over legal terminology.",
	},
	"sme": {
		Name:            "sme",
		Description:     "Small or medium business, no specific jurisdiction.",
		Audience:        "a small or medium business",
		ComplianceScope: "small and medium businesses",
		SystemPromptAddendum: "The reader runs a small or medium business and has no legal training. " +
			"Prefer plain business language over legal terminology.",
	},
	"employee": {
		Name:            "employee",
		Description:     "Individual employee or independent contractor signing the contract.",
		Audience:        "an individual employee or contractor",
		ComplianceScope: "individual workers and contractors",
		SystemPromptAddendum: "The reader is an individual signing an employment or contractor " +
			"agreement. Pay particular attention to non-compete scope, IP assignment, notice " +
			"periods, and termination without cause.",
	},
	"general": {
		Name:            "general",
		Description:     "Neutral review with no party preference.",
		Audience:        "the party reviewing the contract",
		ComplianceScope: "the parties",
		SystemPromptAddendum: "Review the contract neutrally. When a clause favors one party, say " +
			"which party and why.",
	},
}

// Load returns the named built-in profile or an error if the name is unknown.
// An empty name selects Default.
func Load(name string) (Profile, error) {
	if name == "" {
		name = Default
	}
	p, ok := builtins[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown profile %q (available: %s)",
			name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the built-in profile names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
