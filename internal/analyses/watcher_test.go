package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// flakyRepo wraps a Repo and hides a job for the first n reads.
type flakyRepo struct {
	Repo
	mu     sync.Mutex
	hidden int
}

func (r *flakyRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	r.mu.Lock()
	if r.hidden > 0 {
		r.hidden--
		r.mu.Unlock()
		return Analysis{}, ErrNotFound
	}
	r.mu.Unlock()
	return r.Repo.GetByID(ctx, id)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func seedCompleted(t *testing.T, repo Repo, jobID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	job := Analysis{
		ID:        jobID,
		UserID:    "user-1",
		InputText: "my landlord ignores repair requests until I threaten to leave",
		Status:    StatusProcessing,
		CreatedAt: now,
	}
	sub := Submission{AnalysisID: jobID, UserID: "user-1", InputText: job.InputText, Status: StatusPending, CreatedAt: now}
	if err := repo.CreateJob(ctx, job, sub); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := repo.CompleteAnalysis(ctx, jobID, Result{PowerScore: 30, Summary: "leverage exists"}, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestWatcherToleratesMissingRow(t *testing.T) {
	base := NewMemoryRepo()
	seedCompleted(t, base, "job-1")
	repo := &flakyRepo{Repo: base, hidden: 3}

	w := NewWatcher(repo, time.Millisecond, 10)
	w.Sleep = noSleep

	got, err := w.Wait(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !got.IsReady || got.Result == nil || got.Result.PowerScore != 30 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
}

func TestWatcherTimeoutWhenRowNeverAppears(t *testing.T) {
	w := NewWatcher(NewMemoryRepo(), time.Millisecond, 4)
	w.Sleep = noSleep

	_, err := w.Wait(context.Background(), "ghost-job")
	if !errors.Is(err, ErrWatchTimeout) {
		t.Fatalf("expected ErrWatchTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "never recorded") {
		t.Fatalf("expected never-recorded detail, got %v", err)
	}
}

func TestWatcherTimeoutWhenNeverReady(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	job := Analysis{ID: "job-2", UserID: "user-1", InputText: "stuck forever in processing state here", Status: StatusProcessing, CreatedAt: now}
	sub := Submission{AnalysisID: job.ID, UserID: job.UserID, InputText: job.InputText, Status: StatusPending, CreatedAt: now}
	if err := repo.CreateJob(ctx, job, sub); err != nil {
		t.Fatalf("create job: %v", err)
	}

	w := NewWatcher(repo, time.Millisecond, 4)
	w.Sleep = noSleep

	_, err := w.Wait(ctx, job.ID)
	if !errors.Is(err, ErrWatchTimeout) {
		t.Fatalf("expected ErrWatchTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "never became ready") {
		t.Fatalf("expected never-ready detail, got %v", err)
	}
}

func TestWatcherSurfacesFailedJob(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	job := Analysis{ID: "job-3", UserID: "user-1", InputText: "this one is going to fail upstream somehow", Status: StatusProcessing, CreatedAt: now}
	sub := Submission{AnalysisID: job.ID, UserID: job.UserID, InputText: job.InputText, Status: StatusPending, CreatedAt: now}
	if err := repo.CreateJob(ctx, job, sub); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := repo.FailJob(ctx, job.ID, StatusFailed, "assistant run failed"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	w := NewWatcher(repo, time.Millisecond, 5)
	w.Sleep = noSleep

	_, err := w.Wait(ctx, job.ID)
	if err == nil || !strings.Contains(err.Error(), "assistant run failed") {
		t.Fatalf("expected failure message, got %v", err)
	}
}

func TestWatcherPropagatesStoreErrors(t *testing.T) {
	repo := &erroringRepo{err: fmt.Errorf("connection refused")}
	w := NewWatcher(repo, time.Millisecond, 5)
	w.Sleep = noSleep

	_, err := w.Wait(context.Background(), "job-4")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrWatchTimeout) {
		t.Fatal("store errors must not be reported as timeouts")
	}
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	repo := NewMemoryRepo()
	w := NewWatcher(repo, time.Minute, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Wait(ctx, "job-5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWatcherCountsSleeps(t *testing.T) {
	var sleeps int
	w := NewWatcher(NewMemoryRepo(), time.Second, 3)
	w.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	_, err := w.Wait(context.Background(), "ghost-job")
	if !errors.Is(err, ErrWatchTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	// No sleep after the final attempt.
	if sleeps != 2 {
		t.Fatalf("expected 2 sleeps for 3 attempts, got %d", sleeps)
	}
}

// erroringRepo returns the same error from every call.
type erroringRepo struct {
	err error
}

func (r *erroringRepo) CreateJob(context.Context, Analysis, Submission) error { return r.err }
func (r *erroringRepo) GetByID(context.Context, string) (Analysis, error)    { return Analysis{}, r.err }
func (r *erroringRepo) GetSubmission(context.Context, string) (Submission, error) {
	return Submission{}, r.err
}
func (r *erroringRepo) ListByUser(context.Context, string, int, int) ([]Analysis, error) {
	return nil, r.err
}
func (r *erroringRepo) CompleteAnalysis(context.Context, string, Result, time.Time) error {
	return r.err
}
func (r *erroringRepo) UpdateSubmissionStatus(context.Context, string, string, *string) error {
	return r.err
}
func (r *erroringRepo) FailJob(context.Context, string, string, string) error { return r.err }
