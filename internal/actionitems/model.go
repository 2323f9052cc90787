package actionitems

import "time"

// Sections mirror the four strategic-move fields of an analysis result.
const (
	SectionImmediateMove   = "immediate_move"
	SectionStrategicTool   = "strategic_tool"
	SectionAnalyticalCheck = "analytical_check"
	SectionLongTermFix     = "long_term_fix"
)

// Sections lists the checklist sections in display order.
var Sections = []string{
	SectionImmediateMove,
	SectionStrategicTool,
	SectionAnalyticalCheck,
	SectionLongTermFix,
}

// ValidSection reports whether s names a known checklist section.
func ValidSection(s string) bool {
	for _, name := range Sections {
		if s == name {
			return true
		}
	}
	return false
}

// ActionItem is one checkable step derived from an analysis result.
type ActionItem struct {
	ID          string     `json:"id"`
	AnalysisID  string     `json:"analysisId"`
	UserID      string     `json:"userId"`
	Section     string     `json:"section"`
	StepIndex   int        `json:"stepIndex"`
	StepText    string     `json:"stepText"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SectionProgress summarizes completion within one section.
type SectionProgress struct {
	Section   string `json:"section"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}
