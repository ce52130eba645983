// Package docai wraps the Gemini multimodal API for document understanding:
// page text extraction, pre-upload content analysis, and title generation.
package docai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"cymbalrag/internal/models"
	"cymbalrag/pkg/logger"
)

const extractionPrompt = `Analyze this document page comprehensively and extract all content.
Handle different content types as follows:

1. Text content: extract and preserve structure.
2. Tables: list column headers as bullet points and describe each row under
   the relevant header.
3. Diagrams and charts: describe the type, key components, and insights.
4. Images: describe what you see and any relevant text.

Organize the output clearly with appropriate headers and formatting.
Return only the extracted content.`

const analysisPrompt = `Analyze this document for its suitability for a corporate knowledge base. Consider:

1. CONTENT QUALITY ASSESSMENT:
- Does this document contain meaningful, professional information?
- Is it relevant for business documentation or knowledge sharing?
- Does it contain substantial data or valuable content?
- Is it a blank, placeholder, or low-quality document?

2. FAQ STRUCTURE ASSESSMENT:
- Is this document organized as questions with answers?
- Do question and answer pairs cover the content completely?

Respond with your analysis in exactly this JSON format:
{
    "content_quality": {
        "score": 1-10,
        "is_sufficient": true/false,
        "reasoning": "ONE SHORT SENTENCE explaining why this document is or isn't suitable for a corporate knowledge base"
    },
    "faq_structure": {
        "is_faq": true/false,
        "score": 1-10,
        "has_proper_qa_pairs": true/false,
        "reasoning": "ONE SHORT SENTENCE about the FAQ structure"
    }
}`

const titlePrompt = `Extract the main title or heading from this document.
If there is no clear title, generate a descriptive title based on the content.
Return only the title, nothing else.`

// Filename markers that short-circuit content analysis as insufficient.
var lowQualityMarkers = []string{"no_info", "empty", "blank", "placeholder"}

// analysisPreviewLimit caps how much text is sent for content analysis.
const analysisPreviewLimit = 5000

// Client calls Gemini for document understanding tasks.
type Client struct {
	model      *genai.GenerativeModel
	log        *logger.Logger
	maxRetries int
}

// NewClient creates a document understanding client for the named model.
func NewClient(ctx context.Context, apiKey, modelName string, maxRetries int, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("cannot create GenAI client: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		model:      client.GenerativeModel(modelName),
		log:        log,
		maxRetries: maxRetries,
	}, nil
}

// ExtractText runs multimodal extraction over a binary page or image and
// returns its text rendering. Transient failures are retried with backoff;
// exhaustion surfaces as an error so the caller can fail the document.
func (c *Client) ExtractText(ctx context.Context, mimeType string, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.model.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(extractionPrompt))
		if err != nil {
			lastErr = err
			continue
		}
		text, err := responseText(resp)
		if err != nil {
			lastErr = err
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("text extraction failed after %d attempts: %w", c.maxRetries, lastErr)
}

// AnalyzeContent judges a file's quality and FAQ structure before upload.
// Files whose names flag them as placeholders are rejected without a model
// call. When the model is unreachable or returns unparseable output, a
// heuristic verdict keeps validation available.
func (c *Client) AnalyzeContent(ctx context.Context, filename, contentType string, data []byte) models.ContentAnalysis {
	if verdict, flagged := filenameVerdict(filename); flagged {
		return verdict
	}

	var parts []genai.Part
	if strings.HasPrefix(contentType, "image/") || contentType == "application/pdf" {
		parts = []genai.Part{genai.Blob{MIMEType: contentType, Data: data}, genai.Text(analysisPrompt)}
	} else {
		preview := textPreview(data, filename)
		prompt := analysisPrompt + "\n\nDocument content preview:\n" + preview
		parts = []genai.Part{genai.Text(prompt)}
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		c.log.WithError(err).WithField("filename", filename).Warn("content analysis unavailable, using fallback verdict")
		return fallbackAnalysis(filename)
	}
	text, err := responseText(resp)
	if err != nil {
		return fallbackAnalysis(filename)
	}

	analysis, err := ParseAnalysis(text)
	if err != nil {
		c.log.WithError(err).WithField("filename", filename).Warn("unparseable analysis response, using fallback verdict")
		return fallbackAnalysis(filename)
	}
	return analysis
}

// GenerateTitle produces a short title for the document. PDFs and images go
// through multimodal extraction of the first page; text formats use a
// content preview. Failures fall back to the filename.
func (c *Client) GenerateTitle(ctx context.Context, filename, contentType string, data []byte) string {
	var parts []genai.Part
	if strings.HasPrefix(contentType, "image/") || contentType == "application/pdf" {
		parts = []genai.Part{genai.Blob{MIMEType: contentType, Data: data}, genai.Text(titlePrompt)}
	} else {
		preview := textPreview(data, filename)
		if len(preview) > 1000 {
			preview = preview[:1000]
		}
		parts = []genai.Part{genai.Text(titlePrompt + "\n\nDocument content:\n" + preview)}
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		c.log.WithError(err).WithField("filename", filename).Warn("title generation unavailable, using filename")
		return filename
	}
	title, err := responseText(resp)
	if err != nil {
		return filename
	}
	return strings.Trim(title, `" `)
}

// ParseAnalysis extracts the analysis JSON from a model response, tolerating
// surrounding prose and markdown fences.
func ParseAnalysis(text string) (models.ContentAnalysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return models.ContentAnalysis{}, fmt.Errorf("no JSON object in analysis response")
	}

	var analysis models.ContentAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return models.ContentAnalysis{}, fmt.Errorf("cannot decode analysis response: %w", err)
	}
	return analysis, nil
}

// filenameVerdict rejects files whose names mark them as placeholders.
func filenameVerdict(filename string) (models.ContentAnalysis, bool) {
	lower := strings.ToLower(filename)
	for _, marker := range lowQualityMarkers {
		if strings.Contains(lower, marker) {
			return models.ContentAnalysis{
				ContentQuality: models.QualityVerdict{
					Score:        2,
					IsSufficient: false,
					Reasoning:    "Filename indicates this file contains no meaningful information suitable for a corporate knowledge base.",
				},
				FAQStructure: models.FAQVerdict{
					IsFAQ:            false,
					Score:            3,
					HasProperQAPairs: false,
					Reasoning:        "Document does not appear to be an FAQ format",
				},
			}, true
		}
	}
	return models.ContentAnalysis{}, false
}

// fallbackAnalysis produces a permissive verdict when the model is
// unavailable, so validation keeps working during provider outages.
func fallbackAnalysis(filename string) models.ContentAnalysis {
	if verdict, flagged := filenameVerdict(filename); flagged {
		return verdict
	}
	return models.ContentAnalysis{
		ContentQuality: models.QualityVerdict{
			Score:        6,
			IsSufficient: true,
			Reasoning:    "Document appears to contain content that could be valuable, but specific analysis was not available.",
		},
		FAQStructure: models.FAQVerdict{
			IsFAQ:            false,
			Score:            3,
			HasProperQAPairs: false,
			Reasoning:        "Document does not appear to be an FAQ format",
		},
	}
}

func textPreview(data []byte, filename string) string {
	text := string(data)
	if !strings.ContainsRune(text, 0) {
		if len(text) > analysisPreviewLimit {
			text = text[:analysisPreviewLimit] + "..."
		}
		return text
	}
	return "Binary file: " + filename
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
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
