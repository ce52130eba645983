package processor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/rag/schema"
)

// processSpreadsheet converts each sheet into a structured text document,
// linearizing rows into header and value bullets so tabular relationships
// survive chunking.
func (p *Processor) processSpreadsheet(_ context.Context, filename string, data []byte) ([]*schema.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Validationf("cannot read spreadsheet '%s': %v", filename, err)
	}
	defer f.Close()

	var docs []*schema.Document
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			p.log.WithError(err).WithField("sheet", sheetName).Warn("skipping unreadable sheet")
			continue
		}
		content := linearizeRows(sheetName, rows)
		if content == "" {
			continue
		}
		docs = append(docs, &schema.Document{
			Text: content,
			Metadata: map[string]interface{}{
				schema.MetadataKeyFileName: filename,
				schema.MetadataKeyPageLabel: sheetName,
			},
		})
	}
	return docs, nil
}

func processCSV(filename string, data []byte) ([]*schema.Document, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errs.Validationf("cannot parse CSV '%s': %v", filename, err)
	}
	content := linearizeRows("", rows)
	if content == "" {
		return nil, nil
	}
	return []*schema.Document{{
		Text:     content,
		Metadata: map[string]interface{}{schema.MetadataKeyFileName: filename},
	}}, nil
}

// linearizeRows renders a header row plus data rows as bullet statements.
// Sheets without data rows produce nothing.
func linearizeRows(sheetName string, rows [][]string) string {
	if len(rows) < 2 {
		return ""
	}
	headers := rows[0]

	var sb strings.Builder
	if sheetName != "" {
		fmt.Fprintf(&sb, "## Sheet: %s\n\n", sheetName)
	}

	wrote := false
	for i, row := range rows[1:] {
		rowHasData := false
		var rowSb strings.Builder
		fmt.Fprintf(&rowSb, "### Row %d:\n", i+1)
		for j, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			header := fmt.Sprintf("Column %d", j+1)
			if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
				header = headers[j]
			}
			fmt.Fprintf(&rowSb, "- **%s**: %s\n", header, value)
			rowHasData = true
		}
		if rowHasData {
			sb.WriteString(rowSb.String())
			sb.WriteString("\n")
			wrote = true
		}
	}

	if !wrote {
		return ""
	}
	return strings.TrimSpace(sb.String())
}
