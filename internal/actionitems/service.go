package actionitems

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"situation-backend/internal/analyses"
	"situation-backend/internal/shared/telemetry"
)

// ErrNotReady indicates the analysis has no result to derive a checklist from.
var ErrNotReady = errors.New("analysis has no result yet")

// Service derives checklists from completed analyses and tracks progress.
type Service struct {
	Repo         Repo
	AnalysisRepo analyses.Repo
}

// NewService constructs a Service.
func NewService(repo Repo, analysisRepo analyses.Repo) *Service {
	return &Service{Repo: repo, AnalysisRepo: analysisRepo}
}

// EnsureItems derives the checklist from the analysis's four strategic-move
// fields and inserts any steps not already present. Calling it again never
// resets completion state, so it is safe on every fetch.
func (s *Service) EnsureItems(ctx context.Context, analysisID string) ([]ActionItem, error) {
	analysis, err := s.AnalysisRepo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !analysis.IsReady || analysis.Result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, analysisID)
	}

	var items []ActionItem
	for _, section := range Sections {
		steps := splitSteps(sectionText(analysis.Result, section))
		for i, step := range steps {
			items = append(items, ActionItem{
				ID:         uuid.NewString(),
				AnalysisID: analysisID,
				UserID:     analysis.UserID,
				Section:    section,
				StepIndex:  i,
				StepText:   step,
			})
		}
	}
	if err := s.Repo.InsertMissing(ctx, items); err != nil {
		return nil, fmt.Errorf("derive checklist: %w", err)
	}
	telemetry.Debug("actionitems.ensured", map[string]any{
		"analysis_id": analysisID,
		"derived":     len(items),
	})
	return s.Repo.ListByAnalysis(ctx, analysisID)
}

// List returns the checklist without deriving anything.
func (s *Service) List(ctx context.Context, analysisID string) ([]ActionItem, error) {
	return s.Repo.ListByAnalysis(ctx, analysisID)
}

// Toggle flips one step's completion.
func (s *Service) Toggle(ctx context.Context, analysisID, section string, stepIndex int, completed bool) (ActionItem, error) {
	if !ValidSection(section) {
		return ActionItem{}, fmt.Errorf("unknown section %q", section)
	}
	if stepIndex < 0 {
		return ActionItem{}, fmt.Errorf("step index must be non-negative")
	}
	return s.Repo.SetCompleted(ctx, analysisID, section, stepIndex, completed)
}

// Progress reports per-section and overall completion.
func (s *Service) Progress(ctx context.Context, analysisID string) ([]SectionProgress, float64, error) {
	items, err := s.Repo.ListByAnalysis(ctx, analysisID)
	if err != nil {
		return nil, 0, err
	}

	bySection := make(map[string]*SectionProgress, len(Sections))
	progress := make([]SectionProgress, 0, len(Sections))
	for _, section := range Sections {
		bySection[section] = &SectionProgress{Section: section}
	}
	totalDone := 0
	for _, item := range items {
		p, ok := bySection[item.Section]
		if !ok {
			continue
		}
		p.Total++
		if item.Completed {
			p.Completed++
			totalDone++
		}
	}
	for _, section := range Sections {
		progress = append(progress, *bySection[section])
	}

	overall := 0.0
	if len(items) > 0 {
		overall = float64(totalDone) / float64(len(items))
	}
	return progress, overall, nil
}

// splitSteps breaks a strategic-move field into individual steps. Fields
// arrive either as bullet lines or as a single prose recommendation.
func splitSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "• ")
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}

func sectionText(r *analyses.Result, section string) string {
	switch section {
	case SectionImmediateMove:
		return r.ImmediateMove
	case SectionStrategicTool:
		return r.StrategicTool
	case SectionAnalyticalCheck:
		return r.AnalyticalCheck
	case SectionLongTermFix:
		return r.LongTermFix
	default:
		return ""
	}
}
