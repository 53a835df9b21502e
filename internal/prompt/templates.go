package prompt

// Placeholders: {{CONTRACT}} is the (truncated) body, {{AUDIENCE}} and
// {{COMPLIANCE}} come from the review profile, {{HINT}} is the optional
// classification hint, {{COUNT}} is the number of clauses sent for
// alternatives.

const classifyTemplate = `{{HINT}}Analyze this contract and classify it into one of these categories:
- Employment Agreement
- Vendor Contract
- Lease Agreement
- Partnership Deed
- Service Contract
- Non-Disclosure Agreement (NDA)
- Purchase Agreement
- Other

Contract text:
{{CONTRACT}}

Respond with ONLY a JSON object (no markdown, no backticks) containing:
{
    "contract_type": "the main category",
    "sub_type": "more specific classification if applicable",
    "confidence": "high|medium|low"
}`

const entitiesTemplate = `Extract the following entities from this contract:
1. Parties (all parties involved with their roles)
2. Important Dates (effective date, termination date, renewal dates)
3. Financial Amounts (payment terms, penalties, deposits)
4. Jurisdiction (governing law, dispute resolution location)
5. Liabilities (who is liable for what)
6. Key Deliverables

Contract text:
{{CONTRACT}}

Respond with ONLY a JSON object (no markdown, no backticks) with these keys:
parties, dates, financial_terms, jurisdiction, liabilities, deliverables`

const obligationsTemplate = `Analyze this contract and categorize clauses into:
1. OBLIGATIONS (what parties MUST do)
2. RIGHTS (what parties CAN do)
3. PROHIBITIONS (what parties CANNOT do)

For each category, list the specific clauses with clause numbers if available.

Contract text:
{{CONTRACT}}

Respond with ONLY a JSON object (no markdown, no backticks) with keys: obligations, rights, prohibitions.
Each should be a list of objects with "party", "clause", and "description".`

const riskTemplate = `Perform a detailed risk assessment of this contract for {{AUDIENCE}}. Identify:

1. HIGH RISK clauses (could cause significant business or financial harm):
   - Unlimited liability
   - Harsh penalty clauses
   - Unilateral termination by the other party
   - Unfavorable payment terms
   - Excessive lock-in periods
   - Broad non-compete clauses
   - IP transfer without compensation

2. MEDIUM RISK clauses (potentially problematic):
   - Auto-renewal without notice
   - Ambiguous deliverables
   - Unclear jurisdiction
   - One-sided indemnity

3. LOW RISK clauses (minor concerns):
   - Standard confidentiality
   - Reasonable notice periods

Contract text:
{{CONTRACT}}

Respond with ONLY JSON (no markdown, no backticks):
{
    "overall_risk_score": "number 0-100",
    "overall_risk_level": "Low|Medium|High|Critical",
    "high_risk_clauses": ["list of clauses with explanations"],
    "medium_risk_clauses": ["list of clauses"],
    "low_risk_clauses": ["list of clauses"],
    "critical_issues": ["list of must-address items"],
    "compliance_concerns": ["potential legal compliance issues for {{COMPLIANCE}}"]
}`

const summaryTemplate = `Create a simple, easy-to-understand summary of this contract for {{AUDIENCE}} without legal expertise.

Use plain business language. Cover:
1. What is this contract about?
2. Who are the parties?
3. What are the main obligations?
4. What are the key financial terms?
5. How long does it last?
6. How can it be terminated?
7. What are the main risks?

Keep it concise but comprehensive. Respond in plain text, not JSON.

Contract text:
{{CONTRACT}}`

const unfavorableTemplate = `Identify all clauses in this contract that could be unfavorable or disadvantageous to {{AUDIENCE}}.

For each unfavorable clause, provide:
1. The clause text (or summary)
2. Why it is problematic
3. Potential consequences
4. Severity (Low|Medium|High)

Contract text:
{{CONTRACT}}

Respond with ONLY a JSON array (no markdown, no backticks) of objects with keys:
"clause", "why_problematic", "consequences", "severity".`

const alternativesTemplate = `For these {{COUNT}} unfavorable contract clauses, suggest better alternatives that would be more favorable to {{AUDIENCE}}:

{{CONTRACT}}

For each clause, provide:
1. Recommended alternative wording
2. Why this alternative is better
3. Negotiation strategy and talking points

Respond with ONLY a JSON array (no markdown, no backticks) with exactly one object per input clause,
in the same order as the input, each with keys: "alternative", "why_better", "negotiation_strategy".`

const explainTemplate = `Explain this contract clause in simple, plain language that {{AUDIENCE}} would understand:

"{{CONTRACT}}"

Explain:
1. What does this clause mean?
2. What are your obligations?
3. What are your rights?
4. What should you watch out for?`
