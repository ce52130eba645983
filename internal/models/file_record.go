package models

import (
	"sort"
	"strings"
	"time"
)

// FileStatus is the lifecycle state of a logical file in the knowledge base.
type FileStatus string

const (
	StatusValidated    FileStatus = "validated"
	StatusUploading    FileStatus = "uploading"
	StatusProcessing   FileStatus = "processing"
	StatusProcessed    FileStatus = "processed"
	StatusReprocessing FileStatus = "reprocessing"
	StatusFailed       FileStatus = "failed"
	StatusDeleted      FileStatus = "deleted"
)

// transitions is the allowed edge set of the lifecycle state machine. A stage
// only advances status after its own writes have durably succeeded.
var transitions = map[FileStatus][]FileStatus{
	StatusValidated:    {StatusUploading, StatusDeleted},
	StatusUploading:    {StatusProcessing, StatusFailed, StatusDeleted},
	StatusProcessing:   {StatusProcessed, StatusFailed, StatusDeleted},
	StatusProcessed:    {StatusReprocessing, StatusDeleted},
	StatusReprocessing: {StatusProcessed, StatusFailed, StatusDeleted},
	// failed is terminal until a fresh upload or replace restarts the cycle.
	StatusFailed:  {StatusUploading, StatusReprocessing, StatusDeleted},
	StatusDeleted: {},
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to FileStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EmbeddingStats records the outcome of the most recent embedding job for a
// file.
type EmbeddingStats struct {
	ChunksEmbedded   int           `bson:"chunks_embedded" json:"chunks_embedded"`
	ChunksFailed     int           `bson:"chunks_failed" json:"chunks_failed"`
	ProcessingTimeMS int64         `bson:"processing_time_ms" json:"processing_time_ms"`
	Duration         time.Duration `bson:"-" json:"-"`
}

// FileRecord is the durable registry entry for one logical file. The filename
// (cleaned) is the unique key within the knowledge base; FileID is generated
// at the first successful ingestion and stays stable across replaces.
type FileRecord struct {
	FileID          string         `bson:"file_id" json:"file_id"`
	Filename        string         `bson:"_id" json:"filename"`
	OriginalName    string         `bson:"original_name" json:"original_name"`
	ContentType     string         `bson:"content_type" json:"content_type"`
	Size            int64          `bson:"size" json:"size"`
	Tags            []string       `bson:"tags" json:"tags"`
	Title           string         `bson:"title,omitempty" json:"title,omitempty"`
	Status          FileStatus     `bson:"status" json:"status"`
	UploadTimestamp time.Time      `bson:"upload_timestamp" json:"upload_timestamp"`
	LastModified    time.Time      `bson:"last_modified" json:"last_modified"`
	ChunkCount      int            `bson:"chunk_count" json:"chunk_count"`
	EmbeddingStats  EmbeddingStats `bson:"embedding_stats" json:"embedding_stats"`
	// Truncated marks that the chunk window cap was hit and content beyond it
	// was dropped.
	Truncated bool `bson:"truncated,omitempty" json:"truncated,omitempty"`
	// CorrelationID identifies the job behind the most recent failure.
	CorrelationID string `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
}

// CleanFilename rewrites a user-supplied filename into the form used as the
// registry key and object name: spaces to underscores, path and label
// separators to dashes.
func CleanFilename(name string) string {
	r := strings.NewReplacer(" ", "_", ":", "-", "/", "-")
	return r.Replace(name)
}

// NormalizeTags lowercases, trims, deduplicates, and sorts a tag set. The
// same normalization runs on write and on filter so exact-match filtering
// holds.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTags splits a comma-separated tag string and normalizes the result.
func ParseTags(s string) []string {
	if s == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}
