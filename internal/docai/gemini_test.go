package docai

import (
	"strings"
	"testing"
)

func TestParseAnalysis(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" + `{
		"content_quality": {"score": 8, "is_sufficient": true, "reasoning": "Substantial policy content."},
		"faq_structure": {"is_faq": true, "score": 7, "has_proper_qa_pairs": true, "reasoning": "Clear Q&A pairs."}
	}` + "\n```\nLet me know if you need more."

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatal(err)
	}
	if analysis.ContentQuality.Score != 8 || !analysis.ContentQuality.IsSufficient {
		t.Errorf("content quality = %+v", analysis.ContentQuality)
	}
	if !analysis.FAQStructure.IsFAQ || !analysis.FAQStructure.HasProperQAPairs {
		t.Errorf("faq structure = %+v", analysis.FAQStructure)
	}
}

func TestParseAnalysisNoJSON(t *testing.T) {
	if _, err := ParseAnalysis("the model refused to answer"); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestFilenameVerdict(t *testing.T) {
	for _, name := range []string{"no_info_doc.pdf", "EMPTY_report.txt", "blank.csv", "some_placeholder_v2.xlsx"} {
		verdict, flagged := filenameVerdict(name)
		if !flagged {
			t.Errorf("%s: expected flagged", name)
			continue
		}
		if verdict.ContentQuality.IsSufficient {
			t.Errorf("%s: expected insufficient verdict", name)
		}
	}

	if _, flagged := filenameVerdict("quarterly_report.pdf"); flagged {
		t.Error("quarterly_report.pdf should not be flagged")
	}
}

func TestFallbackAnalysisIsPermissive(t *testing.T) {
	analysis := fallbackAnalysis("quarterly_report.pdf")
	if !analysis.ContentQuality.IsSufficient {
		t.Error("fallback should accept unflagged files")
	}

	analysis = fallbackAnalysis("blank_form.pdf")
	if analysis.ContentQuality.IsSufficient {
		t.Error("fallback should still reject flagged filenames")
	}
}

func TestTextPreview(t *testing.T) {
	long := strings.Repeat("x", analysisPreviewLimit+100)
	got := textPreview([]byte(long), "long.txt")
	if len(got) != analysisPreviewLimit+3 {
		t.Errorf("preview length = %d", len(got))
	}

	got = textPreview([]byte{0x00, 0x01, 0x02}, "image.png")
	if got != "Binary file: image.png" {
		t.Errorf("binary preview = %q", got)
	}
}
