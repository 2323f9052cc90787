package analyses

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// responseShape tags the known response variants, checked in fixed
// priority order: legacy first, then schema-validated, then free-form.
type responseShape int

const (
	shapeFreeForm responseShape = iota
	shapeSchema
	shapeLegacy
)

// legacyKeys identify the obsolete narrative format produced by old
// assistant configurations. Any of them at top level means the assistant
// is misconfigured server-side; the payload must never be coerced.
var legacyKeys = []string{
	"situation_summary",
	"power_dynamics",
	"recommended_actions",
}

func detectShape(top map[string]any) responseShape {
	for _, key := range legacyKeys {
		if _, ok := top[key]; ok {
			return shapeLegacy
		}
	}
	if moves, ok := top["moves"].(map[string]any); ok && moves != nil {
		return shapeSchema
	}
	return shapeFreeForm
}

// stripFences removes Markdown code-fence wrapping (```json ... ``` or
// bare ``` ... ```) if present.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// drop the language tag line ("json" or empty)
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// anyAt returns the first present value among the candidate keys. The
// alias lists exist because the model's key naming has drifted across
// prompt versions.
func anyAt(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringAt(m map[string]any, keys ...string) string {
	v, ok := anyAt(m, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// clampScore normalizes any score value the model might emit: numbers,
// numeric strings, out-of-range values. Missing or unparseable maps to 0.
func clampScore(v any) int {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		f = val
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(math.Round(f))
}

func scoreAt(m map[string]any, keys ...string) int {
	v, ok := anyAt(m, keys...)
	if !ok {
		return 0
	}
	return clampScore(v)
}

// joinBullets renders a list as one bullet per line. An empty list is an
// empty string, not a lone bullet.
func joinBullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}

// bulletsFrom accepts either an array of steps or an already-joined
// string; strings pass through unchanged.
func bulletsFrom(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				items = append(items, s)
			}
		}
		return joinBullets(items)
	case []string:
		return joinBullets(val)
	default:
		return ""
	}
}

func bulletsAt(m map[string]any, keys ...string) string {
	v, ok := anyAt(m, keys...)
	if !ok {
		return ""
	}
	return bulletsFrom(v)
}

// profileFrom maps the nested psychological-profile object onto the
// canonical struct, tolerating snake_case and camelCase key spellings.
// An absent or non-object value yields nil, not an empty profile.
func profileFrom(v any) *PsychologicalProfile {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return &PsychologicalProfile{
		PrimaryMotivation:     stringAt(m, "primary_motivation", "primaryMotivation", "motivation"),
		MotivationEvidence:    stringAt(m, "motivation_evidence", "motivationEvidence"),
		EmotionalState:        stringAt(m, "emotional_state", "emotionalState", "emotion"),
		EmotionEvidence:       stringAt(m, "emotion_evidence", "emotional_state_evidence", "emotionEvidence"),
		PowerDynamic:          stringAt(m, "power_dynamic", "powerDynamic"),
		PowerDynamicEvidence:  stringAt(m, "power_dynamic_evidence", "powerDynamicEvidence"),
		CommunicationStyle:    stringAt(m, "communication_style", "communicationStyle"),
		CommunicationEvidence: stringAt(m, "communication_evidence", "communication_style_evidence", "communicationEvidence"),
	}
}
