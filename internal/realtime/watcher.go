package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"situation-backend/internal/analyses"
	"situation-backend/internal/shared/telemetry"
)

// Watcher waits for a job's terminal status over pub/sub instead of polling
// the store. An initial read covers the race where the event fired before
// the subscription was established.
type Watcher struct {
	Client  *redis.Client
	Repo    analyses.Repo
	Timeout time.Duration
}

// NewWatcher builds a subscribe-based watcher.
func NewWatcher(client *redis.Client, repo analyses.Repo, timeout time.Duration) *Watcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Watcher{Client: client, Repo: repo, Timeout: timeout}
}

// Wait blocks until the job reaches a terminal state or the timeout fires.
func (w *Watcher) Wait(ctx context.Context, jobID string) (analyses.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	sub := w.Client.Subscribe(ctx, channelPrefix+jobID)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return analyses.Analysis{}, fmt.Errorf("subscribe to job %s: %w", jobID, err)
	}

	// The row may already be terminal; check once after subscribing.
	if analysis, done, err := w.check(ctx, jobID); done {
		return analysis, err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return analyses.Analysis{}, fmt.Errorf("%w: job %s", analyses.ErrWatchTimeout, jobID)
			}
			return analyses.Analysis{}, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return analyses.Analysis{}, fmt.Errorf("subscription closed for job %s", jobID)
			}
			var event StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				telemetry.Warn("realtime.bad_event", map[string]any{
					"job_id": jobID,
					"error":  err.Error(),
				})
				continue
			}
			if !terminalEvent(event) {
				continue
			}
			if analysis, done, err := w.check(ctx, jobID); done {
				return analysis, err
			}
			// The row can lag the event. For a failure event the event
			// payload already carries the outcome; don't wait out the
			// timeout for a row that may never confirm it.
			if event.Status == analyses.StatusFailed || event.Status == analyses.StatusError {
				msg := event.Error
				if msg == "" {
					msg = "analysis " + event.Status
				}
				return analyses.Analysis{}, fmt.Errorf("analysis %s %s: %s", jobID, event.Status, msg)
			}
		}
	}
}

// check reads the row and reports whether it is terminal. Events only wake
// the watcher; the store stays the source of truth. A missing row is not
// terminal, but a real store error ends the wait.
func (w *Watcher) check(ctx context.Context, jobID string) (analyses.Analysis, bool, error) {
	analysis, err := w.Repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) {
			return analyses.Analysis{}, false, nil
		}
		return analyses.Analysis{}, true, fmt.Errorf("poll analysis %s: %w", jobID, err)
	}
	if analysis.IsReady {
		return analysis, true, nil
	}
	if analysis.Status == analyses.StatusFailed || analysis.Status == analyses.StatusError {
		msg := "analysis failed"
		if analysis.ErrorMessage != nil && *analysis.ErrorMessage != "" {
			msg = *analysis.ErrorMessage
		}
		return analysis, true, fmt.Errorf("analysis %s %s: %s", jobID, analysis.Status, msg)
	}
	return analyses.Analysis{}, false, nil
}

func terminalEvent(event StatusEvent) bool {
	return event.IsReady ||
		event.Status == analyses.StatusCompleted ||
		event.Status == analyses.StatusFailed ||
		event.Status == analyses.StatusError
}
