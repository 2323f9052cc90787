package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use. It
// backs dev mode without a database and the service tests.
type MemoryRepo struct {
	mu          sync.RWMutex
	byID        map[string]Analysis
	submissions map[string]Submission
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:        make(map[string]Analysis),
		submissions: make(map[string]Submission),
	}
}

var _ Repo = (*MemoryRepo)(nil)

// CreateJob stores both rows; mirrors the PG repo's all-or-nothing insert.
func (r *MemoryRepo) CreateJob(ctx context.Context, analysis Analysis, submission Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis.UpdatedAt = time.Now().UTC()
	submission.UpdatedAt = analysis.UpdatedAt
	r.byID[analysis.ID] = analysis
	r.submissions[submission.AnalysisID] = submission
	return nil
}

// GetByID returns an analysis by job id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	// Clamp a copy so readers never write through the stored pointer.
	if analysis.Result != nil {
		result := *analysis.Result
		ClampResult(&result)
		analysis.Result = &result
	}
	return analysis, nil
}

// GetSubmission returns the submission row for a job.
func (r *MemoryRepo) GetSubmission(ctx context.Context, analysisID string) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	submission, ok := r.submissions[analysisID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return submission, nil
}

// ListByUser returns a user's analyses, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	var out []Analysis
	for _, analysis := range r.byID {
		if analysis.UserID == userID {
			out = append(out, analysis)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Analysis{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// CompleteAnalysis writes the result and flips the row to completed/ready.
func (r *MemoryRepo) CompleteAnalysis(ctx context.Context, id string, result Result, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	analysis.Status = StatusCompleted
	analysis.IsReady = true
	analysis.Result = &result
	analysis.ProcessingCompletedAt = &completedAt
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[id] = analysis
	return nil
}

// UpdateSubmissionStatus patches the submission row.
func (r *MemoryRepo) UpdateSubmissionStatus(ctx context.Context, analysisID, status string, errorMessage *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[analysisID]
	if !ok {
		return ErrNotFound
	}
	submission.Status = status
	if errorMessage != nil {
		submission.ErrorMessage = errorMessage
	}
	submission.UpdatedAt = time.Now().UTC()
	r.submissions[analysisID] = submission
	return nil
}

// FailJob marks both rows with a terminal status and message.
func (r *MemoryRepo) FailJob(ctx context.Context, id, status, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	analysis.Status = status
	analysis.ErrorMessage = &message
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[id] = analysis

	if submission, ok := r.submissions[id]; ok {
		submission.Status = status
		submission.ErrorMessage = &message
		submission.UpdatedAt = analysis.UpdatedAt
		r.submissions[id] = submission
	}
	return nil
}
