package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateJobWritesBothRowsInOneTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	analysis := Analysis{
		ID:        "job-1",
		UserID:    "user-1",
		InputText: "my sister expects me to host every holiday",
		Status:    StatusProcessing,
		CreatedAt: now,
	}
	submission := Submission{
		AnalysisID: analysis.ID,
		UserID:     analysis.UserID,
		Email:      "user@example.com",
		InputText:  analysis.InputText,
		Status:     StatusPending,
		CreatedAt:  now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(analysis.ID, analysis.UserID, analysis.InputText, analysis.Status, false, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO submissions").
		WithArgs(submission.AnalysisID, submission.UserID, submission.Email, submission.InputText, submission.Status, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateJob(context.Background(), analysis, submission); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateJobRollsBackOnSecondInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analyses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO submissions").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.CreateJob(context.Background(),
		Analysis{ID: "job-1", UserID: "user-1", InputText: "x", Status: StatusProcessing, CreatedAt: now},
		Submission{AnalysisID: "job-1", UserID: "user-1", InputText: "x", Status: StatusPending, CreatedAt: now},
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func analysisRowColumns() []string {
	return []string{
		"id", "user_id", "input_text", "status", "is_ready",
		"power_score", "gravity_score", "risk_score", "confidence",
		"summary", "whats_happening", "why_it_matters", "narrative_summary",
		"immediate_move", "strategic_tool", "analytical_check", "long_term_fix",
		"issue_type", "issue_category", "issue_layer", "psychological_profile",
		"error_message", "created_at", "updated_at", "processing_completed_at",
	}
}

func TestPGRepoGetByIDClampsStoredScores(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(analysisRowColumns()).AddRow(
		"job-1", "user-1", "some situation", StatusCompleted, true,
		150, -20, 45, 90,
		"summary", "happening", "matters", "narrative",
		"• step", "", "", "",
		"workplace", "power", "interpersonal", `{"primary_motivation":"control"}`,
		nil, now, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id =").
		WithArgs("job-1").
		WillReturnRows(rows)

	analysis, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if analysis.Result == nil {
		t.Fatal("expected result")
	}
	if analysis.Result.PowerScore != 100 || analysis.Result.GravityScore != 0 || analysis.Result.RiskScore != 45 {
		t.Fatalf("stored scores not clamped: %+v", analysis.Result)
	}
	if analysis.Result.Profile == nil || analysis.Result.Profile.PrimaryMotivation != "control" {
		t.Fatalf("profile not mapped: %+v", analysis.Result.Profile)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(analysisRowColumns()))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoGetByIDWithoutResultColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(analysisRowColumns()).AddRow(
		"job-1", "user-1", "pending situation", StatusProcessing, false,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, now, now, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id =").
		WithArgs("job-1").
		WillReturnRows(rows)

	analysis, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if analysis.Result != nil {
		t.Fatalf("expected nil result for pending row, got %+v", analysis.Result)
	}
}

func TestPGRepoFailJobUpdatesBothRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusFailed, "assistant run failed", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE submissions").
		WithArgs(StatusFailed, "assistant run failed", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FailJob(context.Background(), "job-1", StatusFailed, "assistant run failed"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteAnalysisMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE analyses").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteAnalysis(context.Background(), "missing", Result{}, time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
