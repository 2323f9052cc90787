package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"situation-backend/internal/llm"
)

// DescribeImages sends image attachments through a vision-capable chat
// completion and returns a text description suitable for merging into the
// assistant prompt.
func (c *Client) DescribeImages(ctx context.Context, images []llm.Attachment) (string, error) {
	model := c.visionModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}

	content := []map[string]any{
		{
			"type": "text",
			"text": "Describe what these images show about the interpersonal situation. Focus on tone, relationships, and anything relevant to conflict dynamics.",
		},
	}
	for _, img := range images {
		dataURL := "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURL},
		})
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("vision response missing choices")
	}
	description := strings.TrimSpace(out.Choices[0].Message.Content)
	if description == "" {
		return "", fmt.Errorf("vision response empty content")
	}
	return description, nil
}
