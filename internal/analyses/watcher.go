package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"situation-backend/internal/shared/metrics"
	"situation-backend/internal/shared/telemetry"
)

// Waiter blocks until a job reaches a terminal state. The pull Watcher
// implements it by polling; deployments with Redis swap in a pub/sub
// implementation.
type Waiter interface {
	Wait(ctx context.Context, jobID string) (Analysis, error)
}

// Watcher polls the store until a job's analysis row becomes ready or
// terminally fails. A row that does not exist yet is not an error: the
// webhook automation may still be inserting it.
type Watcher struct {
	Repo        Repo
	Interval    time.Duration
	MaxAttempts int

	// Sleep is replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewWatcher builds a Watcher with the given polling cadence.
func NewWatcher(repo Repo, interval time.Duration, maxAttempts int) *Watcher {
	return &Watcher{
		Repo:        repo,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		Sleep:       sleepCtx,
	}
}

// Wait blocks until the job is ready, failed, or the attempt budget is
// exhausted. The returned analysis carries the result when ready.
func (w *Watcher) Wait(ctx context.Context, jobID string) (Analysis, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := w.MaxAttempts
	if attempts <= 0 {
		attempts = 20
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	seen := false
	for attempt := 1; attempt <= attempts; attempt++ {
		analysis, err := w.Repo.GetByID(ctx, jobID)
		switch {
		case errors.Is(err, ErrNotFound):
			// Row not written yet, keep polling.
		case err != nil:
			return Analysis{}, fmt.Errorf("poll analysis %s: %w", jobID, err)
		default:
			seen = true
			if analysis.IsReady {
				return analysis, nil
			}
			if analysis.Status == StatusFailed || analysis.Status == StatusError {
				msg := "analysis failed"
				if analysis.ErrorMessage != nil && *analysis.ErrorMessage != "" {
					msg = *analysis.ErrorMessage
				}
				return analysis, fmt.Errorf("analysis %s %s: %s", jobID, analysis.Status, msg)
			}
		}

		if attempt == attempts {
			break
		}
		telemetry.Debug("watch.poll", map[string]any{
			"job_id":  jobID,
			"attempt": attempt,
			"found":   seen,
		})
		if err := sleep(ctx, backoffInterval(interval, attempt)); err != nil {
			return Analysis{}, err
		}
	}

	metrics.IncWatchTimeout()
	if !seen {
		return Analysis{}, fmt.Errorf("%w: job %s was never recorded after %d attempts", ErrWatchTimeout, jobID, attempts)
	}
	return Analysis{}, fmt.Errorf("%w: job %s never became ready after %d attempts", ErrWatchTimeout, jobID, attempts)
}

// backoffInterval stretches the base interval modestly on later attempts so
// long waits put less read pressure on the store.
func backoffInterval(base time.Duration, attempt int) time.Duration {
	switch {
	case attempt >= 10:
		return base * 2
	case attempt >= 5:
		return base * 3 / 2
	default:
		return base
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
