package genai

import (
	"context"
	"errors"
	"testing"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"

	"financebackend/internal/core"
)

func TestNewGeminiClientRequiresKeyAndModel(t *testing.T) {
	ctx := context.Background()

	if _, err := NewGeminiClient(ctx, "", "models/gemini-1.5-flash"); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("NewGeminiClient(no key) error = %v, want ErrConfiguration", err)
	}
	if _, err := NewGeminiClient(ctx, "key", ""); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("NewGeminiClient(no model) error = %v, want ErrConfiguration", err)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		resp *generativelanguage.GenerateContentResponse
		want string
	}{
		{
			name: "nil response",
			resp: nil,
			want: "",
		},
		{
			name: "no candidates",
			resp: &generativelanguage.GenerateContentResponse{},
			want: "",
		},
		{
			name: "single part",
			resp: &generativelanguage.GenerateContentResponse{
				Candidates: []*generativelanguage.Candidate{
					{Content: &generativelanguage.Content{
						Parts: []*generativelanguage.Part{{Text: "Spending is up 12%."}},
					}},
				},
			},
			want: "Spending is up 12%.",
		},
		{
			name: "joins parts of first non-empty candidate",
			resp: &generativelanguage.GenerateContentResponse{
				Candidates: []*generativelanguage.Candidate{
					{Content: nil},
					{Content: &generativelanguage.Content{
						Parts: []*generativelanguage.Part{{Text: "First. "}, {Text: "Second."}},
					}},
					{Content: &generativelanguage.Content{
						Parts: []*generativelanguage.Part{{Text: "ignored"}},
					}},
				},
			},
			want: "First. Second.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.resp); got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}
