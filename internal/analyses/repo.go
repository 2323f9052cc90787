package analyses

import (
	"context"
	"time"
)

// Repo is the job record store over the submissions and analyses tables.
// Every write touches updated_at. Missing rows surface as ErrNotFound so
// pollers can tell "still processing" apart from a real database error.
type Repo interface {
	// CreateJob inserts the analysis row and its submission row together;
	// either both rows exist afterwards or neither does.
	CreateJob(ctx context.Context, analysis Analysis, submission Submission) error
	GetByID(ctx context.Context, id string) (Analysis, error)
	GetSubmission(ctx context.Context, analysisID string) (Submission, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	// CompleteAnalysis writes the normalized result and marks the analysis
	// row completed and ready.
	CompleteAnalysis(ctx context.Context, id string, result Result, completedAt time.Time) error
	UpdateSubmissionStatus(ctx context.Context, analysisID, status string, errorMessage *string) error
	// FailJob marks both rows with the given terminal status and message.
	FailJob(ctx context.Context, id, status, message string) error
}
