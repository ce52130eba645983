package models

import "time"

// QualityVerdict is the document-understanding service's judgment of a
// file's content quality.
type QualityVerdict struct {
	Score        int    `json:"score"`
	IsSufficient bool   `json:"is_sufficient"`
	Reasoning    string `json:"reasoning"`
}

// FAQVerdict is the judgment of whether a file follows an FAQ structure.
type FAQVerdict struct {
	IsFAQ            bool   `json:"is_faq"`
	Score            int    `json:"score"`
	HasProperQAPairs bool   `json:"has_proper_qa_pairs"`
	Reasoning        string `json:"reasoning"`
}

// ContentAnalysis is the full pre-upload content report for a file.
type ContentAnalysis struct {
	ContentQuality QualityVerdict `json:"content_quality"`
	FAQStructure   FAQVerdict     `json:"faq_structure"`
}

// ValidationSession records a validated file parked in temporary storage,
// pending promotion to a full upload. Sessions expire after a bounded window
// and are purged together with their temp blob.
type ValidationSession struct {
	ValidationID string          `json:"validation_id"`
	Filename     string          `json:"filename"`
	TempPath     string          `json:"temp_path"`
	ContentType  string          `json:"content_type"`
	Size         int64           `json:"size"`
	Tags         []string        `json:"tags,omitempty"`
	Analysis     ContentAnalysis `json:"content_analysis"`
	CreatedAt    time.Time       `json:"created_at"`
}
