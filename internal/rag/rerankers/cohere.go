package rerankers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/schema"
)

const defaultRerankURL = "https://api.cohere.ai/v1/rerank"

// CohereReranker re-orders documents by relevance using the Cohere Rerank
// API. Callers that want graceful degradation catch the error and keep the
// original vector ordering.
type CohereReranker struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

type cohereRerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

// NewCohereReranker creates a CohereReranker against the public API.
func NewCohereReranker(apiKey, model string) *CohereReranker {
	return &CohereReranker{
		apiKey:     apiKey,
		model:      model,
		endpoint:   defaultRerankURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewCohereRerankerWithEndpoint is like NewCohereReranker but targets a
// custom endpoint. Used by tests.
func NewCohereRerankerWithEndpoint(apiKey, model, endpoint string) *CohereReranker {
	r := NewCohereReranker(apiKey, model)
	r.endpoint = endpoint
	return r
}

// Rerank scores every document against the query and returns them ordered by
// descending relevance with the relevance score replacing the vector score.
func (r *CohereReranker) Rerank(ctx context.Context, query string, docs []*schema.Document) ([]*schema.Document, error) {
	if len(docs) == 0 {
		return docs, nil
	}

	docTexts := make([]string, len(docs))
	for i, doc := range docs {
		docTexts[i] = doc.Text
	}

	reqBody := cohereRerankRequest{
		Model:           r.model,
		Query:           query,
		Documents:       docTexts,
		TopN:            len(docs),
		ReturnDocuments: false,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cohere request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create cohere request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call cohere api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere api returned non-200 status: %s", resp.Status)
	}

	var cohereResp cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&cohereResp); err != nil {
		return nil, fmt.Errorf("failed to decode cohere response: %w", err)
	}

	reranked := make([]*schema.Document, 0, len(cohereResp.Results))
	for _, result := range cohereResp.Results {
		if result.Index >= len(docs) {
			continue
		}
		doc := docs[result.Index]
		doc.Metadata[schema.MetadataKeyScore] = result.RelevanceScore
		reranked = append(reranked, doc)
	}

	sort.Slice(reranked, func(i, j int) bool {
		iScore, _ := reranked[i].Metadata[schema.MetadataKeyScore].(float64)
		jScore, _ := reranked[j].Metadata[schema.MetadataKeyScore].(float64)
		return iScore > jScore
	})

	return reranked, nil
}

var _ interfaces.Reranker = (*CohereReranker)(nil)
