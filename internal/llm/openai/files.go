package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadFile pushes one attachment to the files endpoint with the
// assistants purpose and returns its file id.
func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiError(resp.StatusCode, body)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("file upload returned no id")
	}
	return out.ID, nil
}

// CreateVectorStore builds a temporary per-request document index over the
// uploaded files. The store auto-expires after a day of inactivity so
// nothing accumulates server-side.
func (c *Client) CreateVectorStore(ctx context.Context, fileIDs []string) (string, error) {
	body := map[string]any{
		"file_ids": fileIDs,
		"expires_after": map[string]any{
			"anchor": "last_active_at",
			"days":   1,
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("vector store create returned no id")
	}
	return out.ID, nil
}
