package actionitems

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested action item does not exist.
var ErrNotFound = errors.New("action item not found")

// Repo persists derived checklist items.
type Repo interface {
	// InsertMissing writes the given items, skipping any (analysis, section,
	// index) combination that already exists. Existing completion state is
	// never touched.
	InsertMissing(ctx context.Context, items []ActionItem) error
	ListByAnalysis(ctx context.Context, analysisID string) ([]ActionItem, error)
	// SetCompleted flips one item's completed flag, stamping or clearing
	// completed_at to match.
	SetCompleted(ctx context.Context, analysisID, section string, stepIndex int, completed bool) (ActionItem, error)
}
