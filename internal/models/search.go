package models

import "time"

// MatchedChunk is one retrieved chunk with its similarity score, used as a
// citation in the grounded answer.
type MatchedChunk struct {
	Content    string  `json:"content"`
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
	Title      string  `json:"title,omitempty"`
}

// SearchFileInfo groups the matched chunks of one source file together with
// the file's registry metadata.
type SearchFileInfo struct {
	Name          string         `json:"name"`
	FileType      string         `json:"file_type"`
	LastUpdated   time.Time      `json:"last_updated"`
	Size          int64          `json:"size"`
	Tags          []string       `json:"tags"`
	Title         string         `json:"title,omitempty"`
	MatchedChunks []MatchedChunk `json:"matched_chunks"`
}

// SearchResponse is the full result of a RAG search: the grounded answer, the
// citation trail grouped per file, and timing. When the generation service is
// unavailable after retries, Answer is empty, GenerationFailed is set, and
// the retrieved chunks are still returned.
type SearchResponse struct {
	Query            string           `json:"query"`
	Files            []SearchFileInfo `json:"files"`
	TotalFiles       int              `json:"total_files"`
	TotalChunks      int              `json:"total_chunks"`
	Answer           string           `json:"answer"`
	Reranked         bool             `json:"reranked"`
	GenerationFailed bool             `json:"generation_failed,omitempty"`
	ProcessingTimeMS float64          `json:"processing_time_ms"`
}

// IngestResult summarizes a completed ingestion for one file.
type IngestResult struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Truncated  bool   `json:"truncated"`
	// TruncationWarning is set when chunk windows beyond the per-document cap
	// were dropped.
	TruncationWarning string `json:"truncation_warning,omitempty"`
}
