package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"situation-backend/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	betaHeader     = "assistants=v2"

	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 60
)

// Config controls the Assistants client.
type Config struct {
	APIKey          string
	AssistantID     string
	VisionModel     string
	BaseURL         string
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Client implements llm.Client against the OpenAI Assistants v2 API.
type Client struct {
	apiKey          string
	assistantID     string
	visionModel     string
	baseURL         string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollAttempts int

	// sleep is swapped out in tests so run polling needs no wall clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Assistants client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.AssistantID) == "" {
		return nil, fmt.Errorf("OPENAI_ASSISTANT_ID is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxAttempts := cfg.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPollAttempts
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:          cfg.APIKey,
		assistantID:     cfg.AssistantID,
		visionModel:     cfg.VisionModel,
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: timeout},
		pollInterval:    pollInterval,
		maxPollAttempts: maxAttempts,
		sleep:           waitCtx,
	}, nil
}

// Analyze runs the four-step call sequence and returns the assistant's raw
// response text. Submissions without attachments go through the strict
// JSON-schema run; submissions with attachments upload documents into a
// temporary vector store and run in free-form JSON mode.
func (c *Client) Analyze(ctx context.Context, input llm.AnalyzeInput) (string, error) {
	var docs, images []llm.Attachment
	for _, att := range input.Attachments {
		if att.IsImage() {
			images = append(images, att)
		} else {
			docs = append(docs, att)
		}
	}

	text := input.Text
	if len(images) > 0 {
		description, err := c.DescribeImages(ctx, images)
		if err != nil {
			return "", &llm.StepError{Step: llm.StepVision, Err: err}
		}
		text = text + "\n\nAttached image context:\n" + description
	}

	var vectorStoreID string
	if len(docs) > 0 {
		fileIDs := make([]string, 0, len(docs))
		for _, doc := range docs {
			fileID, err := c.UploadFile(ctx, doc.Name, doc.Data)
			if err != nil {
				return "", &llm.StepError{Step: llm.StepUpload, Err: err}
			}
			fileIDs = append(fileIDs, fileID)
		}
		storeID, err := c.CreateVectorStore(ctx, fileIDs)
		if err != nil {
			return "", &llm.StepError{Step: llm.StepUpload, Err: err}
		}
		vectorStoreID = storeID
	}

	threadID, err := c.CreateThread(ctx)
	if err != nil {
		return "", &llm.StepError{Step: llm.StepThread, Err: err}
	}

	message := buildUserMessage(text, vectorStoreID != "")
	if err := c.AddMessage(ctx, threadID, message); err != nil {
		return "", &llm.StepError{Step: llm.StepMessage, Err: err}
	}

	opts := RunOptions{VectorStoreID: vectorStoreID}
	if vectorStoreID == "" {
		opts.ResponseSchema = json.RawMessage(analysisSchema)
	}
	runID, err := c.CreateRun(ctx, threadID, opts)
	if err != nil {
		return "", &llm.StepError{Step: llm.StepRun, Err: err}
	}

	if err := c.WaitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}

	return c.LatestAssistantMessage(ctx, threadID)
}

// CreateThread creates an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("thread create returned no id")
	}
	return out.ID, nil
}

// AddMessage posts a user message into the thread.
func (c *Client) AddMessage(ctx context.Context, threadID, text string) error {
	body := map[string]any{
		"role":    "user",
		"content": text,
	}
	return c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
}

// RunOptions customizes run creation. ResponseSchema and VectorStoreID are
// mutually exclusive in practice: the schema run serves the no-files path,
// the vector store run serves the files path.
type RunOptions struct {
	ResponseSchema json.RawMessage
	VectorStoreID  string
}

// CreateRun starts a run against the configured assistant.
func (c *Client) CreateRun(ctx context.Context, threadID string, opts RunOptions) (string, error) {
	body := map[string]any{
		"assistant_id": c.assistantID,
	}
	if len(opts.ResponseSchema) > 0 {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "situation_analysis",
				"strict": true,
				"schema": opts.ResponseSchema,
			},
		}
	}
	if opts.VectorStoreID != "" {
		body["tools"] = []map[string]any{{"type": "file_search"}}
		body["tool_resources"] = map[string]any{
			"file_search": map[string]any{
				"vector_store_ids": []string{opts.VectorStoreID},
			},
		}
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("run create returned no id")
	}
	return out.ID, nil
}

type runStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// GetRun fetches the current run status.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (runStatus, error) {
	var out runStatus
	err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &out)
	return out, err
}

// WaitForRun polls the run until it reaches a terminal status or the
// attempt budget is exhausted. Terminal failures abort immediately with the
// upstream message preserved.
func (c *Client) WaitForRun(ctx context.Context, threadID, runID string) error {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		run, err := c.GetRun(ctx, threadID, runID)
		if err != nil {
			return &llm.StepError{Step: llm.StepRun, Err: err}
		}
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired":
			msg := ""
			if run.LastError != nil {
				msg = run.LastError.Message
			}
			return &llm.RunError{Status: run.Status, Message: msg}
		}
		// No point sleeping once the budget is spent.
		if attempt == c.maxPollAttempts-1 {
			break
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
	return llm.ErrRunTimeout
}

// LatestAssistantMessage returns the newest assistant-authored message with
// its text content blocks newline-joined.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var out struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text *struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc&limit=10", nil, &out); err != nil {
		return "", err
	}
	for _, msg := range out.Data {
		if msg.Role != "assistant" {
			continue
		}
		var parts []string
		for _, block := range msg.Content {
			if block.Type == "text" && block.Text != nil {
				parts = append(parts, block.Text.Value)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	return "", llm.ErrNoResponse
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("openai response parse: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	return fmt.Errorf("openai http %d: %s", status, strings.TrimSpace(string(body)))
}

func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ llm.Client = (*Client)(nil)
