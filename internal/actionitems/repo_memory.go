package actionitems

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for dev mode and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]ActionItem // keyed by analysisID|section|index
	now   func() time.Time
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items: make(map[string]ActionItem),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func itemKey(analysisID, section string, stepIndex int) string {
	return fmt.Sprintf("%s|%s|%d", analysisID, section, stepIndex)
}

func (r *MemoryRepo) InsertMissing(ctx context.Context, items []ActionItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, item := range items {
		key := itemKey(item.AnalysisID, item.Section, item.StepIndex)
		if _, exists := r.items[key]; exists {
			continue
		}
		item.Completed = false
		item.CompletedAt = nil
		item.CreatedAt = now
		item.UpdatedAt = now
		r.items[key] = item
	}
	return nil
}

func (r *MemoryRepo) ListByAnalysis(ctx context.Context, analysisID string) ([]ActionItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ActionItem
	for _, item := range r.items {
		if item.AnalysisID == analysisID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		return out[i].StepIndex < out[j].StepIndex
	})
	return out, nil
}

func (r *MemoryRepo) SetCompleted(ctx context.Context, analysisID, section string, stepIndex int, completed bool) (ActionItem, error) {
	if err := ctx.Err(); err != nil {
		return ActionItem{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey(analysisID, section, stepIndex)
	item, ok := r.items[key]
	if !ok {
		return ActionItem{}, ErrNotFound
	}
	item.Completed = completed
	if completed {
		t := r.now()
		item.CompletedAt = &t
	} else {
		item.CompletedAt = nil
	}
	item.UpdatedAt = r.now()
	r.items[key] = item
	return item, nil
}
