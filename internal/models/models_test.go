package models

import (
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to FileStatus
		want     bool
	}{
		{StatusValidated, StatusUploading, true},
		{StatusUploading, StatusProcessing, true},
		{StatusProcessing, StatusProcessed, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessed, StatusReprocessing, true},
		{StatusReprocessing, StatusProcessed, true},
		{StatusReprocessing, StatusFailed, true},
		{StatusFailed, StatusUploading, true},
		{StatusProcessing, StatusDeleted, true},
		{StatusProcessed, StatusDeleted, true},

		// deleted is terminal
		{StatusDeleted, StatusUploading, false},
		{StatusDeleted, StatusProcessed, false},
		// no skipping stages
		{StatusValidated, StatusProcessed, false},
		{StatusUploading, StatusProcessed, false},
		// processed never regresses to processing
		{StatusProcessed, StatusProcessing, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" HR ", "hr", "Finance", "", "finance "})
	want := []string{"finance", "hr"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags("HR, Finance,hr,")
	want := []string{"finance", "hr"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTags() = %v, want %v", got, want)
	}

	if got := ParseTags(""); got != nil {
		t.Errorf("ParseTags(\"\") = %v, want nil", got)
	}
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"quarterly report.pdf", "quarterly_report.pdf"},
		{"notes:v2.txt", "notes-v2.txt"},
		{"a/b.csv", "a-b.csv"},
		{"plain.pdf", "plain.pdf"},
	}
	for _, tt := range tests {
		if got := CleanFilename(tt.in); got != tt.want {
			t.Errorf("CleanFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
