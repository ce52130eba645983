package splitters

import (
	"context"
	"strings"
	"testing"

	"cymbalrag/internal/rag/schema"
)

func doc(text string) *schema.Document {
	return &schema.Document{Text: text, Metadata: map[string]interface{}{}}
}

func TestSplitWindows(t *testing.T) {
	s, err := NewWindowSplitter(1000, 200, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("a", 2300)
	chunks, truncated, err := s.SplitDocuments(context.Background(), []*schema.Document{doc(text)})
	if err != nil {
		t.Fatal(err)
	}
	if truncated {
		t.Fatal("unexpected truncation")
	}

	wantLens := []int{1000, 1000, 700}
	if len(chunks) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantLens))
	}
	for i, c := range chunks {
		if len(c.Text) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(c.Text), wantLens[i])
		}
		if got := c.Metadata[schema.MetadataKeyChunkIndex].(int); got != i {
			t.Errorf("chunk %d index = %d", i, got)
		}
	}
}

func TestSplitShortDocument(t *testing.T) {
	s, _ := NewWindowSplitter(1000, 200, 0)
	chunks, _, err := s.SplitDocuments(context.Background(), []*schema.Document{doc("short text")})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Text != "short text" {
		t.Fatalf("got %v", chunks)
	}
}

func TestSplitTruncatesAtCap(t *testing.T) {
	s, _ := NewWindowSplitter(1000, 200, 2)
	text := strings.Repeat("a", 5000)
	chunks, truncated, err := s.SplitDocuments(context.Background(), []*schema.Document{doc(text)})
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Fatal("expected truncation")
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
}

func TestSplitSkipsBlankText(t *testing.T) {
	s, _ := NewWindowSplitter(1000, 200, 0)
	chunks, _, err := s.SplitDocuments(context.Background(), []*schema.Document{
		doc("   \n\t  "),
		doc("real content"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got := chunks[0].Metadata[schema.MetadataKeyChunkIndex].(int); got != 0 {
		t.Errorf("index = %d, want 0", got)
	}
}

func TestSplitNumbersAcrossDocuments(t *testing.T) {
	s, _ := NewWindowSplitter(1000, 200, 0)
	chunks, _, err := s.SplitDocuments(context.Background(), []*schema.Document{
		doc("page one"),
		doc("page two"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if got := c.Metadata[schema.MetadataKeyChunkIndex].(int); got != i {
			t.Errorf("chunk %d index = %d", i, got)
		}
	}
}

func TestNewWindowSplitterRejectsBadParams(t *testing.T) {
	if _, err := NewWindowSplitter(0, 0, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
	if _, err := NewWindowSplitter(100, 100, 0); err == nil {
		t.Error("expected error for overlap >= size")
	}
	if _, err := NewWindowSplitter(100, -1, 0); err == nil {
		t.Error("expected error for negative overlap")
	}
}
