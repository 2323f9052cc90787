package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client abstracts the remote model for situation analysis. Implementations
// return the raw response text; normalization happens downstream.
type Client interface {
	Analyze(ctx context.Context, input AnalyzeInput) (string, error)
}

// AnalyzeInput captures one analysis request.
type AnalyzeInput struct {
	Text        string
	Attachments []Attachment
}

// Attachment is one uploaded file carried with a submission.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// IsImage reports whether the attachment should go through the vision path
// rather than the document index.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.MimeType)), "image/")
}

// Protocol step names used by StepError.
const (
	StepThread  = "thread_create"
	StepMessage = "message_post"
	StepRun     = "run_create"
	StepUpload  = "file_upload"
	StepVision  = "vision_describe"
)

// StepError identifies which step of the model call sequence failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunError is a run that reached a terminal failure status. The upstream
// message is preserved verbatim for diagnostics.
type RunError struct {
	Status  string
	Message string
}

func (e *RunError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("run %s", e.Status)
	}
	return fmt.Sprintf("run %s: %s", e.Status, e.Message)
}

// ErrRunTimeout is returned when run polling exhausts its attempt budget
// without the run reaching a terminal status.
var ErrRunTimeout = errors.New("run polling attempts exhausted")

// ErrNoResponse is returned when a completed run produced no
// assistant-authored message.
var ErrNoResponse = errors.New("no assistant response message")

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("model client not configured")

// PlaceholderClient is used in dev mode when no API key is present.
type PlaceholderClient struct{}

// Analyze returns ErrNotConfigured.
func (PlaceholderClient) Analyze(ctx context.Context, input AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}
