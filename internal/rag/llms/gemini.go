package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"cymbalrag/internal/rag/interfaces"
)

const generateAttempts = 2

// GeminiLLM generates text with the Google GenAI API.
type GeminiLLM struct {
	model *genai.GenerativeModel
}

// NewGeminiLLM creates a GeminiLLM for the named model.
func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("cannot create GenAI client: %w", err)
	}
	return &GeminiLLM{model: client.GenerativeModel(modelName)}, nil
}

// Generate returns the model's text response to the prompt, retrying once on
// a transient failure.
func (l *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		resp, err := l.model.GenerateContent(ctx, genai.Text(prompt))
		if err == nil {
			return ExtractText(resp)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return "", fmt.Errorf("generation failed: %w", lastErr)
}

// ExtractText concatenates the text parts of the first candidate.
func ExtractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return out, nil
}

var _ interfaces.LLM = (*GeminiLLM)(nil)
