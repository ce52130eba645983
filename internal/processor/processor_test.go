package processor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/pkg/logger"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(ctx context.Context, mimeType string, data []byte) (string, error) {
	return s.text, s.err
}

func newTestProcessor(ex TextExtractor) *Processor {
	return New(ex, 20, logger.New("processor-test"))
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		contentType, filename, want string
	}{
		{"application/pdf", "doc.pdf", "application/pdf"},
		{"application/octet-stream", "doc.pdf", "application/pdf"},
		{"application/octet-stream", "image.JPG", "image/jpeg"},
		{"", "sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"text/csv; charset=utf-8", "data.csv", "text/csv"},
	}
	for _, tt := range tests {
		if got := NormalizeContentType(tt.contentType, tt.filename, nil); got != tt.want {
			t.Errorf("NormalizeContentType(%q, %q) = %q, want %q", tt.contentType, tt.filename, got, tt.want)
		}
	}
}

func TestNormalizeContentTypeSniffsUnknownExtension(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	got := NormalizeContentType("application/octet-stream", "upload.bin", pngHeader)
	if got != "image/png" {
		t.Errorf("sniffed content type = %q, want image/png", got)
	}
}

func TestValidateFormat(t *testing.T) {
	if err := ValidateFormat("application/pdf", "doc.pdf"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateFormat("application/zip", "doc.zip")
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("unsupported format error = %v", err)
	}

	err = ValidateFormat("application/pdf", "doc.csv")
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("extension mismatch error = %v", err)
	}
}

func TestCapabilityFor(t *testing.T) {
	tests := map[string]Capability{
		"application/pdf": CapabilityPDF,
		"image/png":       CapabilityImage,
		"image/jpeg":      CapabilityImage,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": CapabilitySpreadsheet,
		"text/csv":   CapabilityText,
		"text/plain": CapabilityText,
	}
	for ct, want := range tests {
		got, err := CapabilityFor(ct)
		if err != nil || got != want {
			t.Errorf("CapabilityFor(%q) = %v, %v", ct, got, err)
		}
	}
	if _, err := CapabilityFor("application/zip"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestProcessText(t *testing.T) {
	p := newTestProcessor(&stubExtractor{})
	docs, err := p.Process(context.Background(), "notes.txt", "text/plain", []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "hello world" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestProcessEmptyTextFails(t *testing.T) {
	p := newTestProcessor(&stubExtractor{})
	_, err := p.Process(context.Background(), "empty.txt", "text/plain", []byte("   \n  "))
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestProcessImageUsesExtractor(t *testing.T) {
	p := newTestProcessor(&stubExtractor{text: "diagram of the org chart"})
	docs, err := p.Process(context.Background(), "chart.png", "image/png", []byte{0x89})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "diagram of the org chart" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestProcessImageExtractorFailure(t *testing.T) {
	p := newTestProcessor(&stubExtractor{err: errors.New("quota exceeded")})
	_, err := p.Process(context.Background(), "chart.png", "image/png", []byte{0x89})
	if !errors.Is(err, errs.ErrExternalService) {
		t.Fatalf("err = %v, want external service error", err)
	}
}

func TestProcessCSV(t *testing.T) {
	p := newTestProcessor(&stubExtractor{})
	csvData := []byte("name,role\nalice,engineer\nbob,designer\n")
	docs, err := p.Process(context.Background(), "team.csv", "text/csv", csvData)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs", len(docs))
	}
	text := docs[0].Text
	for _, want := range []string{"### Row 1:", "- **name**: alice", "- **role**: engineer", "### Row 2:", "- **name**: bob"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestProcessCSVHeaderOnlyFails(t *testing.T) {
	p := newTestProcessor(&stubExtractor{})
	_, err := p.Process(context.Background(), "team.csv", "text/csv", []byte("name,role\n"))
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestProcessSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "product")
	f.SetCellValue(sheet, "B1", "price")
	f.SetCellValue(sheet, "A2", "widget")
	f.SetCellValue(sheet, "B2", 42)
	// Second sheet with only a header row should be dropped.
	f.NewSheet("Empty")
	f.SetCellValue("Empty", "A1", "header")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	p := newTestProcessor(&stubExtractor{})
	docs, err := p.Process(context.Background(), "products.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	text := docs[0].Text
	for _, want := range []string{"## Sheet: " + sheet, "- **product**: widget", "- **price**: 42"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
	if docs[0].Metadata[schema.MetadataKeyPageLabel] != sheet {
		t.Errorf("page label = %v", docs[0].Metadata[schema.MetadataKeyPageLabel])
	}
}

func TestLinearizeRowsSkipsBlankCells(t *testing.T) {
	got := linearizeRows("S", [][]string{
		{"a", "b"},
		{"", ""},
		{"1", ""},
	})
	if strings.Contains(got, "Row 1") {
		t.Errorf("blank row should be dropped:\n%s", got)
	}
	if !strings.Contains(got, "- **a**: 1") {
		t.Errorf("missing populated cell:\n%s", got)
	}
}
