package rerankers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cymbalrag/internal/rag/schema"
)

func testDocs() []*schema.Document {
	return []*schema.Document{
		{ID: "a", Text: "first", Metadata: map[string]interface{}{schema.MetadataKeyScore: 0.9}},
		{ID: "b", Text: "second", Metadata: map[string]interface{}{schema.MetadataKeyScore: 0.8}},
		{ID: "c", Text: "third", Metadata: map[string]interface{}{schema.MetadataKeyScore: 0.7}},
	}
}

func TestRerankReorders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req cohereRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Documents) != 3 {
			t.Errorf("got %d documents", len(req.Documents))
		}
		// Reverse the vector ordering.
		json.NewEncoder(w).Encode(cohereRerankResponse{Results: []cohereRerankResult{
			{Index: 2, RelevanceScore: 0.95},
			{Index: 0, RelevanceScore: 0.4},
			{Index: 1, RelevanceScore: 0.1},
		}})
	}))
	defer server.Close()

	r := NewCohereRerankerWithEndpoint("test-key", "rerank-v3", server.URL)
	got, err := r.Rerank(context.Background(), "query", testDocs())
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{"c", "a", "b"}
	for i, doc := range got {
		if doc.ID != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, doc.ID, wantOrder[i])
		}
	}
	if score, _ := got[0].Metadata[schema.MetadataKeyScore].(float64); score != 0.95 {
		t.Errorf("top score = %v, want 0.95", score)
	}
}

func TestRerankServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := NewCohereRerankerWithEndpoint("test-key", "rerank-v3", server.URL)
	if _, err := r.Rerank(context.Background(), "query", testDocs()); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := NewCohereReranker("test-key", "rerank-v3")
	got, err := r.Rerank(context.Background(), "query", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d docs", len(got))
	}
}
