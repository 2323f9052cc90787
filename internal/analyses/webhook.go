package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"situation-backend/internal/llm"
	"situation-backend/internal/shared/telemetry"
)

// WebhookStrategy hands the job to an external automation via HTTP and then
// waits for that automation to write the result rows itself. Execute
// therefore reports the result as already persisted.
type WebhookStrategy struct {
	URL        string
	HTTPClient *http.Client
	Watcher    *Watcher
}

type webhookPayload struct {
	JobID     string `json:"jobId"`
	UserID    string `json:"userId"`
	InputText string `json:"inputText"`
	Status    string `json:"status"`
}

// Name identifies the strategy in logs.
func (s *WebhookStrategy) Name() string { return "webhook" }

// Execute posts the job to the automation endpoint and polls the store for
// the row it writes back.
func (s *WebhookStrategy) Execute(ctx context.Context, analysis Analysis, _ []llm.Attachment) (Result, bool, error) {
	if s.URL == "" {
		return Result{}, false, fmt.Errorf("%w: webhook url is not set", llm.ErrNotConfigured)
	}

	body, err := json.Marshal(webhookPayload{
		JobID:     analysis.ID,
		UserID:    analysis.UserID,
		InputText: analysis.InputText,
		Status:    analysis.Status,
	})
	if err != nil {
		return Result{}, false, fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, false, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, false, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, false, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(snippet))
	}
	telemetry.Info("webhook.dispatched", map[string]any{
		"job_id": analysis.ID,
		"status": resp.StatusCode,
	})

	ready, err := s.Watcher.Wait(ctx, analysis.ID)
	if err != nil {
		return Result{}, false, err
	}
	if ready.Result == nil {
		return Result{}, false, fmt.Errorf("analysis %s marked ready without a result", analysis.ID)
	}
	return *ready.Result, true, nil
}
