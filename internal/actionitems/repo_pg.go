package actionitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo implements Repo backed by Postgres.
type PGRepo struct {
	DB *sql.DB
}

// NewPGRepo constructs a PGRepo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

const itemColumns = `id, analysis_id, user_id, section, step_index, step_text, completed, completed_at, created_at, updated_at`

func (r *PGRepo) InsertMissing(ctx context.Context, items []ActionItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert action items: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO action_items (id, analysis_id, user_id, section, step_index, step_text, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, now(), now())
		ON CONFLICT (analysis_id, section, step_index) DO NOTHING`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, q,
			item.ID, item.AnalysisID, item.UserID, item.Section, item.StepIndex, item.StepText,
		); err != nil {
			return fmt.Errorf("insert action item %s/%d: %w", item.Section, item.StepIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit action items: %w", err)
	}
	return nil
}

func (r *PGRepo) ListByAnalysis(ctx context.Context, analysisID string) ([]ActionItem, error) {
	q := `SELECT ` + itemColumns + `
		FROM action_items
		WHERE analysis_id = $1
		ORDER BY section, step_index`
	rows, err := r.DB.QueryContext(ctx, q, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	defer rows.Close()

	var items []ActionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action items: %w", err)
	}
	return items, nil
}

func (r *PGRepo) SetCompleted(ctx context.Context, analysisID, section string, stepIndex int, completed bool) (ActionItem, error) {
	const q = `
		UPDATE action_items
		SET completed = $4,
		    completed_at = CASE WHEN $4 THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE analysis_id = $1 AND section = $2 AND step_index = $3
		RETURNING ` + itemColumns
	row := r.DB.QueryRowContext(ctx, q, analysisID, section, stepIndex, completed)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ActionItem{}, ErrNotFound
	}
	if err != nil {
		return ActionItem{}, err
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (ActionItem, error) {
	var item ActionItem
	var completedAt sql.NullTime
	if err := row.Scan(
		&item.ID, &item.AnalysisID, &item.UserID, &item.Section, &item.StepIndex,
		&item.StepText, &item.Completed, &completedAt, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ActionItem{}, sql.ErrNoRows
		}
		return ActionItem{}, fmt.Errorf("scan action item: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return item, nil
}
