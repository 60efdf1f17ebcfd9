package genai

import (
	"context"
	"fmt"
	"strings"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"financebackend/internal/core"
)

// GeminiClient generates spending insight text from a transaction prompt
// through the Generative Language API.
type GeminiClient struct {
	svc   *generativelanguage.Service
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key: %w", core.ErrConfiguration)
	}
	if model == "" {
		return nil, fmt.Errorf("missing Gemini model: %w", core.ErrConfiguration)
	}

	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}

	return &GeminiClient{svc: svc, model: model}, nil
}

// Generate implements jobs.InsightGenerator.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{
			{
				Role:  "user",
				Parts: []*generativelanguage.Part{{Text: prompt}},
			},
		},
	}

	resp, err := c.svc.Models.GenerateContent(c.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w: %w", core.ErrTransient, err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("model returned no text: %w", core.ErrTransient)
	}
	return text, nil
}

func extractText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		// One candidate is enough for an email body.
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
