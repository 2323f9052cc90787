package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var _ Repo = (*PGRepo)(nil)

// CreateJob inserts both tracking rows in one transaction so a failure on
// the second insert cannot leave a dangling submission.
func (r *PGRepo) CreateJob(ctx context.Context, analysis Analysis, submission Submission) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertAnalysis = `
INSERT INTO analyses (id, user_id, input_text, status, is_ready, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := tx.ExecContext(ctx, insertAnalysis,
		analysis.ID,
		analysis.UserID,
		analysis.InputText,
		analysis.Status,
		analysis.IsReady,
		analysis.CreatedAt,
	); err != nil {
		return err
	}

	const insertSubmission = `
INSERT INTO submissions (analysis_id, user_id, email, input_text, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := tx.ExecContext(ctx, insertSubmission,
		submission.AnalysisID,
		submission.UserID,
		submission.Email,
		submission.InputText,
		submission.Status,
		submission.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

const analysisColumns = `
id, user_id, input_text, status, is_ready,
power_score, gravity_score, risk_score, confidence,
summary, whats_happening, why_it_matters, narrative_summary,
immediate_move, strategic_tool, analytical_check, long_term_fix,
issue_type, issue_category, issue_layer, psychological_profile,
error_message, created_at, updated_at, processing_completed_at`

// GetByID returns one analysis row with its result fields mapped and
// clamped.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	const query = `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, id)
	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return analysis, nil
}

// GetSubmission returns the submission row for a job.
func (r *PGRepo) GetSubmission(ctx context.Context, analysisID string) (Submission, error) {
	const query = `
SELECT analysis_id, user_id, email, input_text, status, error_message, created_at, updated_at
FROM submissions WHERE analysis_id = $1 LIMIT 1`

	var s Submission
	var email sql.NullString
	var errorMessage sql.NullString
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&s.AnalysisID,
		&s.UserID,
		&email,
		&s.InputText,
		&s.Status,
		&errorMessage,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	if email.Valid {
		s.Email = email.String
	}
	if errorMessage.Valid {
		s.ErrorMessage = &errorMessage.String
	}
	return s, nil
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

// CompleteAnalysis writes the normalized result and flips the row to
// completed/ready.
func (r *PGRepo) CompleteAnalysis(ctx context.Context, id string, result Result, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'completed',
    is_ready = TRUE,
    power_score = $1,
    gravity_score = $2,
    risk_score = $3,
    confidence = $4,
    summary = $5,
    whats_happening = $6,
    why_it_matters = $7,
    narrative_summary = $8,
    immediate_move = $9,
    strategic_tool = $10,
    analytical_check = $11,
    long_term_fix = $12,
    issue_type = $13,
    issue_category = $14,
    issue_layer = $15,
    psychological_profile = $16::jsonb,
    processing_completed_at = $17::timestamptz,
    updated_at = now()
WHERE id = $18::uuid`

	var profilePayload any
	if result.Profile != nil {
		payload, err := json.Marshal(result.Profile)
		if err != nil {
			return err
		}
		profilePayload = payload
	}

	res, err := r.DB.ExecContext(ctx, query,
		result.PowerScore,
		result.GravityScore,
		result.RiskScore,
		result.Confidence,
		result.Summary,
		result.WhatsHappening,
		result.WhyItMatters,
		result.NarrativeSummary,
		result.ImmediateMove,
		result.StrategicTool,
		result.AnalyticalCheck,
		result.LongTermFix,
		result.IssueType,
		result.IssueCategory,
		result.IssueLayer,
		profilePayload,
		completedAt,
		id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubmissionStatus patches the submission row's status and error.
func (r *PGRepo) UpdateSubmissionStatus(ctx context.Context, analysisID, status string, errorMessage *string) error {
	const query = `
UPDATE submissions
SET status = $1,
    error_message = COALESCE($2::text, error_message),
    updated_at = now()
WHERE analysis_id = $3::uuid`

	res, err := r.DB.ExecContext(ctx, query, status, errorMessage, analysisID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob marks both tracking rows with a terminal status and message.
func (r *PGRepo) FailJob(ctx context.Context, id, status, message string) error {
	const analysisQuery = `
UPDATE analyses
SET status = $1,
    error_message = $2,
    updated_at = now()
WHERE id = $3::uuid`
	res, err := r.DB.ExecContext(ctx, analysisQuery, status, message, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	const submissionQuery = `
UPDATE submissions
SET status = $1,
    error_message = $2,
    updated_at = now()
WHERE analysis_id = $3::uuid`
	_, err = r.DB.ExecContext(ctx, submissionQuery, status, message, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAnalysis maps one analyses row. Score columns are clamped and the
// profile jsonb goes through the same alias-tolerant mapping as response
// parsing, because rows may have been written by the external automation
// with its own column conventions.
func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var powerScore, gravityScore, riskScore, confidence sql.NullInt64
	var summary, whatsHappening, whyItMatters, narrativeSummary sql.NullString
	var immediateMove, strategicTool, analyticalCheck, longTermFix sql.NullString
	var issueType, issueCategory, issueLayer sql.NullString
	var profileJSON sql.NullString
	var errorMessage sql.NullString
	var processingCompletedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.InputText,
		&a.Status,
		&a.IsReady,
		&powerScore,
		&gravityScore,
		&riskScore,
		&confidence,
		&summary,
		&whatsHappening,
		&whyItMatters,
		&narrativeSummary,
		&immediateMove,
		&strategicTool,
		&analyticalCheck,
		&longTermFix,
		&issueType,
		&issueCategory,
		&issueLayer,
		&profileJSON,
		&errorMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
		&processingCompletedAt,
	)
	if err != nil {
		return Analysis{}, err
	}

	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if processingCompletedAt.Valid {
		a.ProcessingCompletedAt = &processingCompletedAt.Time
	}

	hasResult := powerScore.Valid || gravityScore.Valid || riskScore.Valid ||
		summary.Valid || immediateMove.Valid
	if !hasResult {
		return a, nil
	}

	result := Result{
		PowerScore:       clampScore(float64(powerScore.Int64)),
		GravityScore:     clampScore(float64(gravityScore.Int64)),
		RiskScore:        clampScore(float64(riskScore.Int64)),
		Confidence:       clampScore(float64(confidence.Int64)),
		Summary:          summary.String,
		WhatsHappening:   whatsHappening.String,
		WhyItMatters:     whyItMatters.String,
		NarrativeSummary: narrativeSummary.String,
		ImmediateMove:    immediateMove.String,
		StrategicTool:    strategicTool.String,
		AnalyticalCheck:  analyticalCheck.String,
		LongTermFix:      longTermFix.String,
		IssueType:        issueType.String,
		IssueCategory:    issueCategory.String,
		IssueLayer:       issueLayer.String,
	}
	if profileJSON.Valid && profileJSON.String != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(profileJSON.String), &raw); err == nil {
			result.Profile = profileFrom(raw)
		}
	}
	a.Result = &result
	return a, nil
}
