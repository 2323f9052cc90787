package actionitems

import (
	"context"
	"errors"
	"testing"
	"time"

	"situation-backend/internal/analyses"
)

func seedAnalysis(t *testing.T, repo analyses.Repo, result analyses.Result) string {
	t.Helper()
	ctx := context.Background()
	job := analyses.Analysis{
		ID:        "job-1",
		UserID:    "user-1",
		InputText: "my coworker takes credit for my work in front of leadership",
		Status:    analyses.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	sub := analyses.Submission{
		AnalysisID: job.ID,
		UserID:     job.UserID,
		InputText:  job.InputText,
		Status:     analyses.StatusPending,
		CreatedAt:  job.CreatedAt,
	}
	if err := repo.CreateJob(ctx, job, sub); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := repo.CompleteAnalysis(ctx, job.ID, result, time.Now().UTC()); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}
	return job.ID
}

func TestEnsureItemsDerivesStepsFromBullets(t *testing.T) {
	analysisRepo := analyses.NewMemoryRepo()
	jobID := seedAnalysis(t, analysisRepo, analyses.Result{
		PowerScore:      60,
		ImmediateMove:   "• Document the incident\n• Tell your manager",
		StrategicTool:   "- Build an ally network",
		AnalyticalCheck: "Verify whether this is a pattern or a one-off",
		LongTermFix:     "",
	})
	svc := NewService(NewMemoryRepo(), analysisRepo)

	items, err := svc.EnsureItems(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ensure items: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	byKey := make(map[string]ActionItem)
	for _, item := range items {
		byKey[item.Section+"/"+item.StepText] = item
		if item.Completed {
			t.Fatalf("new item should not be completed: %+v", item)
		}
	}
	if _, ok := byKey[SectionImmediateMove+"/Document the incident"]; !ok {
		t.Fatal("missing first immediate move step")
	}
	if _, ok := byKey[SectionImmediateMove+"/Tell your manager"]; !ok {
		t.Fatal("missing second immediate move step")
	}
	if _, ok := byKey[SectionStrategicTool+"/Build an ally network"]; !ok {
		t.Fatal("dash bullet marker should be stripped")
	}
	if _, ok := byKey[SectionAnalyticalCheck+"/Verify whether this is a pattern or a one-off"]; !ok {
		t.Fatal("prose field should become a single step")
	}
}

func TestEnsureItemsIsIdempotent(t *testing.T) {
	analysisRepo := analyses.NewMemoryRepo()
	jobID := seedAnalysis(t, analysisRepo, analyses.Result{
		ImmediateMove: "• Step one\n• Step two",
	})
	svc := NewService(NewMemoryRepo(), analysisRepo)
	ctx := context.Background()

	if _, err := svc.EnsureItems(ctx, jobID); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	toggled, err := svc.Toggle(ctx, jobID, SectionImmediateMove, 0, true)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Completed || toggled.CompletedAt == nil {
		t.Fatalf("expected completed item with timestamp, got %+v", toggled)
	}

	items, err := svc.EnsureItems(ctx, jobID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after re-ensure, got %d", len(items))
	}
	for _, item := range items {
		if item.StepIndex == 0 && !item.Completed {
			t.Fatal("re-ensure must not reset completion state")
		}
	}
}

func TestToggleClearsCompletedAtOnUncheck(t *testing.T) {
	analysisRepo := analyses.NewMemoryRepo()
	jobID := seedAnalysis(t, analysisRepo, analyses.Result{
		LongTermFix: "• Find a new reporting line",
	})
	svc := NewService(NewMemoryRepo(), analysisRepo)
	ctx := context.Background()

	if _, err := svc.EnsureItems(ctx, jobID); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	item, err := svc.Toggle(ctx, jobID, SectionLongTermFix, 0, true)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if item.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	item, err = svc.Toggle(ctx, jobID, SectionLongTermFix, 0, false)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if item.Completed || item.CompletedAt != nil {
		t.Fatalf("expected cleared completion, got %+v", item)
	}
}

func TestToggleRejectsUnknownSection(t *testing.T) {
	svc := NewService(NewMemoryRepo(), analyses.NewMemoryRepo())
	if _, err := svc.Toggle(context.Background(), "job-1", "bogus", 0, true); err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestEnsureItemsRequiresResult(t *testing.T) {
	analysisRepo := analyses.NewMemoryRepo()
	ctx := context.Background()
	job := analyses.Analysis{
		ID:        "job-pending",
		UserID:    "user-1",
		InputText: "a friend keeps cancelling plans at the last minute",
		Status:    analyses.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	sub := analyses.Submission{
		AnalysisID: job.ID,
		UserID:     job.UserID,
		InputText:  job.InputText,
		Status:     analyses.StatusPending,
		CreatedAt:  job.CreatedAt,
	}
	if err := analysisRepo.CreateJob(ctx, job, sub); err != nil {
		t.Fatalf("create job: %v", err)
	}

	svc := NewService(NewMemoryRepo(), analysisRepo)
	if _, err := svc.EnsureItems(ctx, job.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestProgressCountsSectionsAndOverall(t *testing.T) {
	analysisRepo := analyses.NewMemoryRepo()
	jobID := seedAnalysis(t, analysisRepo, analyses.Result{
		ImmediateMove: "• A\n• B",
		StrategicTool: "• C",
	})
	svc := NewService(NewMemoryRepo(), analysisRepo)
	ctx := context.Background()

	if _, err := svc.EnsureItems(ctx, jobID); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := svc.Toggle(ctx, jobID, SectionImmediateMove, 1, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	sections, overall, err := svc.Progress(ctx, jobID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(sections) != len(Sections) {
		t.Fatalf("expected %d sections, got %d", len(Sections), len(sections))
	}
	for _, s := range sections {
		switch s.Section {
		case SectionImmediateMove:
			if s.Total != 2 || s.Completed != 1 {
				t.Fatalf("unexpected immediate move progress: %+v", s)
			}
		case SectionStrategicTool:
			if s.Total != 1 || s.Completed != 0 {
				t.Fatalf("unexpected strategic tool progress: %+v", s)
			}
		}
	}
	if overall < 0.33 || overall > 0.34 {
		t.Fatalf("expected overall ~1/3, got %f", overall)
	}
}
