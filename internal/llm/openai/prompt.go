package openai

// analysisSchema is the strict response schema enforced on the no-files
// path. Every field is required and additionalProperties is disallowed so
// the run cannot drift from the canonical shape.
const analysisSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": [
    "power_score", "gravity_score", "risk_score", "confidence",
    "snapshot", "whats_happening", "why_it_matters", "narrative_summary",
    "issue_type", "issue_category", "issue_layer", "moves"
  ],
  "properties": {
    "power_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "gravity_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "confidence": {"type": "integer", "minimum": 0, "maximum": 100},
    "snapshot": {"type": "string"},
    "whats_happening": {"type": "string"},
    "why_it_matters": {"type": "string"},
    "narrative_summary": {"type": "string"},
    "issue_type": {"type": "string"},
    "issue_category": {"type": "string"},
    "issue_layer": {"type": "string"},
    "moves": {
      "type": "object",
      "additionalProperties": false,
      "required": ["immediate_move", "strategic_tool", "analytical_check", "long_term_fix"],
      "properties": {
        "immediate_move": {"type": "array", "items": {"type": "string"}},
        "strategic_tool": {"type": "array", "items": {"type": "string"}},
        "analytical_check": {"type": "array", "items": {"type": "string"}},
        "long_term_fix": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

const jsonInstruction = `Respond with a single JSON object only, no prose and no Markdown fences. ` +
	`Include power_score, gravity_score, risk_score and confidence as integers 0-100, ` +
	`the fields tl_dr, whats_happening, why_it_matters, narrative_summary, ` +
	`issue_type, issue_category, issue_layer, ` +
	`the four move lists immediate_move, strategic_tool, analytical_check, long_term_fix, ` +
	`and a psychological_profile object with evidence for each trait.`

// buildUserMessage assembles the message posted into the thread. The
// free-form run has no structural guarantee, so it carries an explicit JSON
// instruction; the schema run does not need one.
func buildUserMessage(situationText string, freeForm bool) string {
	msg := "Analyze the following interpersonal situation:\n\n" + situationText
	if freeForm {
		msg += "\n\n" + jsonInstruction
	}
	return msg
}
