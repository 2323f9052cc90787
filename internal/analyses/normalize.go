package analyses

import (
	"encoding/json"
	"strings"
)

// Normalize converts raw model response text into the canonical Result.
// It is pure and deterministic: identical input always yields identical
// output. Decode failures surface as *ParseError; the obsolete narrative
// format surfaces as ErrLegacyShape and is never coerced.
func Normalize(raw string) (Result, error) {
	text := stripFences(raw)
	if strings.TrimSpace(text) == "" {
		return Result{}, &ParseError{Reason: "empty response"}
	}

	var top map[string]any
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return Result{}, &ParseError{Reason: "no JSON object could be decoded", Err: err}
	}

	switch detectShape(top) {
	case shapeLegacy:
		return Result{}, ErrLegacyShape
	case shapeSchema:
		return normalizeSchema(top), nil
	default:
		return normalizeFreeForm(top), nil
	}
}

// normalizeSchema reads the schema-validated shape: fixed field names, a
// nested moves object with step arrays, snapshot as the summary field.
func normalizeSchema(top map[string]any) Result {
	moves, _ := top["moves"].(map[string]any)
	if moves == nil {
		moves = map[string]any{}
	}
	profile, _ := anyAt(top, "psychological_profile", "psychologicalProfile")

	return Result{
		PowerScore:   scoreAt(top, "power_score"),
		GravityScore: scoreAt(top, "gravity_score"),
		RiskScore:    scoreAt(top, "risk_score"),
		Confidence:   scoreAt(top, "confidence"),

		Summary:          stringAt(top, "snapshot", "tl_dr"),
		WhatsHappening:   stringAt(top, "whats_happening"),
		WhyItMatters:     stringAt(top, "why_it_matters"),
		NarrativeSummary: stringAt(top, "narrative_summary"),

		ImmediateMove:   bulletsAt(moves, "immediate_move"),
		StrategicTool:   bulletsAt(moves, "strategic_tool"),
		AnalyticalCheck: bulletsAt(moves, "analytical_check"),
		LongTermFix:     bulletsAt(moves, "long_term_fix"),

		IssueType:     stringAt(top, "issue_type"),
		IssueCategory: stringAt(top, "issue_category"),
		IssueLayer:    stringAt(top, "issue_layer"),

		Profile: profileFrom(profile),
	}
}

// normalizeFreeForm reads the free-form shape, probing an ordered list of
// alternate key names per field and taking the first present value. Move
// fields may arrive as arrays or as already-joined strings.
func normalizeFreeForm(top map[string]any) Result {
	profile, _ := anyAt(top, "psychological_profile", "psychologicalProfile")

	return Result{
		PowerScore:   scoreAt(top, "power_score", "power", "powerScore"),
		GravityScore: scoreAt(top, "gravity_score", "gravity", "gravityScore", "severity_score"),
		RiskScore:    scoreAt(top, "risk_score", "risk", "riskScore"),
		Confidence:   scoreAt(top, "confidence", "confidence_score", "confidenceScore"),

		Summary:          stringAt(top, "tl_dr", "tldr", "summary"),
		WhatsHappening:   stringAt(top, "whats_happening", "what_is_happening", "whatsHappening"),
		WhyItMatters:     stringAt(top, "why_it_matters", "why_this_matters", "whyItMatters"),
		NarrativeSummary: stringAt(top, "narrative_summary", "narrative", "narrativeSummary"),

		ImmediateMove:   bulletsAt(top, "immediate_move", "immediate_moves", "immediateMove"),
		StrategicTool:   bulletsAt(top, "strategic_tool", "strategic_tools", "strategicTool"),
		AnalyticalCheck: bulletsAt(top, "analytical_check", "analytical_checks", "analyticalCheck"),
		LongTermFix:     bulletsAt(top, "long_term_fix", "long_term_fixes", "longTermFix"),

		IssueType:     stringAt(top, "issue_type", "issueType"),
		IssueCategory: stringAt(top, "issue_category", "issueCategory"),
		IssueLayer:    stringAt(top, "issue_layer", "issueLayer"),

		Profile: profileFrom(profile),
	}
}

// ClampResult re-applies score clamping to a result read back from
// storage. Rows written by the external automation can carry out-of-range
// values, so reads get the same tolerance as response parsing.
func ClampResult(r *Result) {
	if r == nil {
		return
	}
	r.PowerScore = clampScore(r.PowerScore)
	r.GravityScore = clampScore(r.GravityScore)
	r.RiskScore = clampScore(r.RiskScore)
	r.Confidence = clampScore(r.Confidence)
}
