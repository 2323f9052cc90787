package analyses

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// Analysis is one analysis job and, once completed, its result. A single
// UUID identifies the job end-to-end across both tracking tables.
type Analysis struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	InputText             string     `json:"inputText"`
	Status                string     `json:"status"`
	IsReady               bool       `json:"isReady"`
	Result                *Result    `json:"result,omitempty"`
	ErrorMessage          *string    `json:"errorMessage,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	ProcessingCompletedAt *time.Time `json:"processingCompletedAt,omitempty"`
}

// Submission is the intake-side tracking row, one per job.
type Submission struct {
	AnalysisID   string    `json:"analysisId"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email,omitempty"`
	InputText    string    `json:"inputText"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Result is the canonical normalized analysis. Scores are always integers
// in [0,100] after normalization, whatever the model returned.
type Result struct {
	PowerScore   int `json:"powerScore"`
	GravityScore int `json:"gravityScore"`
	RiskScore    int `json:"riskScore"`
	Confidence   int `json:"confidence"`

	Summary          string `json:"summary"`
	WhatsHappening   string `json:"whatsHappening"`
	WhyItMatters     string `json:"whyItMatters"`
	NarrativeSummary string `json:"narrativeSummary"`

	// The four strategic-move fields are newline-joined bullet lists.
	ImmediateMove   string `json:"immediateMove"`
	StrategicTool   string `json:"strategicTool"`
	AnalyticalCheck string `json:"analyticalCheck"`
	LongTermFix     string `json:"longTermFix"`

	IssueType     string `json:"issueType"`
	IssueCategory string `json:"issueCategory"`
	IssueLayer    string `json:"issueLayer"`

	Profile *PsychologicalProfile `json:"psychologicalProfile,omitempty"`
}

// PsychologicalProfile is the optional nested profile; each trait is paired
// with the evidence the model cited for it.
type PsychologicalProfile struct {
	PrimaryMotivation     string `json:"primaryMotivation"`
	MotivationEvidence    string `json:"motivationEvidence"`
	EmotionalState        string `json:"emotionalState"`
	EmotionEvidence       string `json:"emotionEvidence"`
	PowerDynamic          string `json:"powerDynamic"`
	PowerDynamicEvidence  string `json:"powerDynamicEvidence"`
	CommunicationStyle    string `json:"communicationStyle"`
	CommunicationEvidence string `json:"communicationEvidence"`
}

// Terminal reports whether the status is a terminal lifecycle state.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}
