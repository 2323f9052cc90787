package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"situation-backend/internal/llm"
	"situation-backend/internal/shared/metrics"
	"situation-backend/internal/shared/telemetry"
)

const minInputLength = 10

// Notifier broadcasts job status transitions to subscribed watchers. A nil
// notifier is a no-op.
type Notifier interface {
	PublishStatus(ctx context.Context, jobID, status string, ready bool, errMsg string) error
}

// Strategy produces a normalized result for one job. Execute reports
// whether the result rows were already persisted on its path (the webhook
// automation writes them itself; the direct path leaves persistence to the
// orchestrator).
type Strategy interface {
	Name() string
	Execute(ctx context.Context, analysis Analysis, attachments []llm.Attachment) (Result, bool, error)
}

// Service orchestrates one submission end-to-end: validate, create the
// tracking rows, execute the strategy, persist, and surface failures on
// both rows. Errors never propagate past Submit as panics.
type Service struct {
	Repo     Repo
	Strategy Strategy
	Notifier Notifier
}

// SubmitInput is one analysis request.
type SubmitInput struct {
	InputText   string
	UserID      string
	UserEmail   string
	Attachments []llm.Attachment
}

// SubmitOutput carries the job id and, on success, the normalized result.
type SubmitOutput struct {
	JobID     string
	Result    *Result
	ElapsedMs float64
}

// Submit runs the full submission state machine. Validation failures are
// terminal rejections with no job created; everything after row creation
// marks both rows on failure before returning.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	startedAt := time.Now().UTC()

	if len(strings.TrimSpace(in.InputText)) < minInputLength {
		return SubmitOutput{}, fmt.Errorf("%w: input text must be at least %d characters", ErrValidation, minInputLength)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return SubmitOutput{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	jobID := uuid.NewString()
	now := time.Now().UTC()
	analysis := Analysis{
		ID:        jobID,
		UserID:    in.UserID,
		InputText: in.InputText,
		Status:    StatusProcessing,
		IsReady:   false,
		CreatedAt: now,
	}
	submission := Submission{
		AnalysisID: jobID,
		UserID:     in.UserID,
		Email:      in.UserEmail,
		InputText:  in.InputText,
		Status:     StatusPending,
		CreatedAt:  now,
	}

	if err := s.Repo.CreateJob(ctx, analysis, submission); err != nil {
		return SubmitOutput{JobID: jobID}, fmt.Errorf("%w: create job records: %w", ErrPersistence, err)
	}
	metrics.IncSubmissionStarted()
	s.notify(ctx, jobID, StatusProcessing, false, "")
	telemetry.Info("submission.status", map[string]any{
		"job_id":            jobID,
		"user_id":           in.UserID,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
		"strategy":          s.Strategy.Name(),
		"attachments":       len(in.Attachments),
	})

	result, persisted, err := s.Strategy.Execute(ctx, analysis, in.Attachments)
	if err != nil {
		return SubmitOutput{JobID: jobID}, s.failJob(ctx, jobID, in.UserID, err, startedAt)
	}

	completedAt := time.Now().UTC()
	if !persisted {
		if err := s.Repo.CompleteAnalysis(ctx, jobID, result, completedAt); err != nil {
			// Worst case: the model produced a result we could not keep.
			telemetry.Error("submission.result_lost", map[string]any{
				"job_id":  jobID,
				"user_id": in.UserID,
				"error":   err.Error(),
			})
			return SubmitOutput{JobID: jobID}, s.failJob(ctx, jobID, in.UserID, fmt.Errorf("%w: store completed analysis: %w", ErrPersistence, err), startedAt)
		}
		if err := s.Repo.UpdateSubmissionStatus(ctx, jobID, StatusCompleted, nil); err != nil {
			telemetry.Warn("submission.status_update_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}
	s.notify(ctx, jobID, StatusCompleted, true, "")

	elapsed := durationMs(startedAt, completedAt)
	metrics.IncSubmissionCompleted()
	metrics.ObserveSubmissionDurationMs(elapsed)
	telemetry.Info("submission.status", map[string]any{
		"job_id":            jobID,
		"user_id":           in.UserID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       elapsed,
	})

	return SubmitOutput{JobID: jobID, Result: &result, ElapsedMs: elapsed}, nil
}

// Get returns an analysis by job id.
func (s *Service) Get(ctx context.Context, jobID string) (Analysis, error) {
	if jobID == "" {
		return Analysis{}, fmt.Errorf("%w: job id is required", ErrValidation)
	}
	return s.Repo.GetByID(ctx, jobID)
}

// List returns a user's analyses, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) failJob(ctx context.Context, jobID, userID string, err error, startedAt time.Time) error {
	code := ClassifyFailure(err)
	status := StatusFailed
	if code == ErrorCodeConfiguration || code == ErrorCodePersistence || code == ErrorCodeInternal {
		status = StatusError
	}
	msg := sanitizeError(err)
	if updateErr := s.Repo.FailJob(context.WithoutCancel(ctx), jobID, status, msg); updateErr != nil {
		telemetry.Error("submission.fail_update_failed", map[string]any{
			"job_id": jobID,
			"error":  updateErr.Error(),
			"cause":  msg,
		})
	}
	s.notify(ctx, jobID, status, false, msg)

	completedAt := time.Now().UTC()
	metrics.IncSubmissionFailed()
	metrics.ObserveSubmissionDurationMs(durationMs(startedAt, completedAt))
	telemetry.Info("submission.status", map[string]any{
		"job_id":            jobID,
		"user_id":           userID,
		"status":            status,
		"status_transition": "processing->" + status,
		"error_code":        code,
		"duration_ms":       durationMs(startedAt, completedAt),
	})
	return err
}

func (s *Service) notify(ctx context.Context, jobID, status string, ready bool, errMsg string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.PublishStatus(ctx, jobID, status, ready, errMsg); err != nil {
		telemetry.Warn("submission.notify_failed", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
}

// ClassifyFailure maps an error to its taxonomy code.
func ClassifyFailure(err error) string {
	var parseErr *ParseError
	var runErr *llm.RunError
	var stepErr *llm.StepError
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.Is(err, ErrValidation):
		return ErrorCodeValidation
	case errors.Is(err, ErrLegacyShape), errors.Is(err, llm.ErrNotConfigured):
		return ErrorCodeConfiguration
	case errors.As(err, &parseErr):
		return ErrorCodeParse
	case errors.Is(err, llm.ErrRunTimeout), errors.Is(err, llm.ErrNoResponse):
		return ErrorCodeUpstream
	case errors.As(err, &runErr), errors.As(err, &stepErr):
		return ErrorCodeUpstream
	case errors.Is(err, ErrWatchTimeout):
		return ErrorCodeTimeout
	case errors.Is(err, ErrPersistence):
		return ErrorCodePersistence
	default:
		return ErrorCodeInternal
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

// DirectStrategy calls the model API in-process and normalizes the raw
// response; persistence stays with the orchestrator.
type DirectStrategy struct {
	LLM llm.Client
}

// Name identifies the strategy in logs.
func (s *DirectStrategy) Name() string { return "direct" }

// Execute invokes the model and normalizes its response.
func (s *DirectStrategy) Execute(ctx context.Context, analysis Analysis, attachments []llm.Attachment) (Result, bool, error) {
	raw, err := s.LLM.Analyze(ctx, llm.AnalyzeInput{
		Text:        analysis.InputText,
		Attachments: attachments,
	})
	if err != nil {
		return Result{}, false, err
	}
	result, err := Normalize(raw)
	if err != nil {
		return Result{}, false, err
	}
	return result, false, nil
}
