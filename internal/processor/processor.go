// Package processor turns uploaded files into extraction units, one document
// per page, sheet, or text body, ready for chunking.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/pkg/logger"
)

// TextExtractor is the document-understanding dependency used for images and
// scanned PDF pages.
type TextExtractor interface {
	ExtractText(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Processor dispatches files to a processing capability based on content
// type.
type Processor struct {
	extractor TextExtractor
	// minPageTextLen is the threshold below which a PDF page is considered
	// scanned and handed to the extractor.
	minPageTextLen int
	log            *logger.Logger
}

// New creates a Processor.
func New(extractor TextExtractor, minPageTextLen int, log *logger.Logger) *Processor {
	if minPageTextLen <= 0 {
		minPageTextLen = 20
	}
	return &Processor{extractor: extractor, minPageTextLen: minPageTextLen, log: log}
}

// Process extracts one document per unit of the file. Empty units are
// dropped; a file reduced to nothing is a validation failure.
func (p *Processor) Process(ctx context.Context, filename, contentType string, data []byte) ([]*schema.Document, error) {
	capability, err := CapabilityFor(contentType)
	if err != nil {
		return nil, errs.Validationf("%v", err)
	}

	var docs []*schema.Document
	switch capability {
	case CapabilityPDF:
		docs, err = p.processPDF(ctx, filename, data)
	case CapabilityImage:
		docs, err = p.processImage(ctx, filename, contentType, data)
	case CapabilitySpreadsheet:
		docs, err = p.processSpreadsheet(ctx, filename, data)
	case CapabilityText:
		docs, err = p.processText(ctx, filename, contentType, data)
	}
	if err != nil {
		return nil, err
	}

	docs = dropEmpty(docs)
	if len(docs) == 0 {
		return nil, errs.Validationf("file '%s' contains no extractable content", filename)
	}
	return docs, nil
}

// processPDF extracts text page by page. Pages with too little embedded text
// are treated as scanned; a single multimodal extraction pass over the whole
// file then recovers their content.
func (p *Processor) processPDF(ctx context.Context, filename string, data []byte) ([]*schema.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Validationf("cannot read PDF '%s': %v", filename, err)
	}

	var docs []*schema.Document
	shortPages := 0
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			shortPages++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || len(strings.TrimSpace(text)) < p.minPageTextLen {
			shortPages++
			continue
		}
		docs = append(docs, &schema.Document{
			Text: text,
			Metadata: map[string]interface{}{
				schema.MetadataKeyFileName:  filename,
				schema.MetadataKeyPageLabel: fmt.Sprintf("%d", i),
			},
		})
	}

	if shortPages > 0 {
		p.log.WithField("filename", filename).
			WithField("scanned_pages", shortPages).
			Info("PDF has pages without embedded text, running multimodal extraction")
		extracted, err := p.extractor.ExtractText(ctx, "application/pdf", data)
		if err != nil {
			return nil, errs.Externalf("extraction failed for '%s': %v", filename, err)
		}
		// When every page is scanned the extraction replaces the local
		// result; otherwise it supplements the pages that had no text.
		docs = append(docs, &schema.Document{
			Text: extracted,
			Metadata: map[string]interface{}{
				schema.MetadataKeyFileName:  filename,
				schema.MetadataKeyPageLabel: "extracted",
			},
		})
	}

	return docs, nil
}

func (p *Processor) processImage(ctx context.Context, filename, contentType string, data []byte) ([]*schema.Document, error) {
	text, err := p.extractor.ExtractText(ctx, contentType, data)
	if err != nil {
		return nil, errs.Externalf("extraction failed for '%s': %v", filename, err)
	}
	return []*schema.Document{{
		Text:     text,
		Metadata: map[string]interface{}{schema.MetadataKeyFileName: filename},
	}}, nil
}

func (p *Processor) processText(_ context.Context, filename, contentType string, data []byte) ([]*schema.Document, error) {
	if contentType == "text/csv" {
		return processCSV(filename, data)
	}
	if !utf8.Valid(data) {
		return nil, errs.Validationf("file '%s' is not valid UTF-8 text", filename)
	}
	return []*schema.Document{{
		Text:     string(data),
		Metadata: map[string]interface{}{schema.MetadataKeyFileName: filename},
	}}, nil
}

func dropEmpty(docs []*schema.Document) []*schema.Document {
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			out = append(out, d)
		}
	}
	return out
}
