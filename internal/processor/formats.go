package processor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"cymbalrag/internal/errs"
)

// SupportedFormats maps each accepted content type to its file extensions.
var SupportedFormats = map[string][]string{
	"application/pdf": {".pdf"},
	"image/png":       {".png"},
	"image/jpeg":      {".jpg", ".jpeg"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {".xlsx"},
	"application/vnd.ms-excel": {".xls"},
	"text/csv":                 {".csv"},
	"text/plain":               {".txt"},
}

// extensionContentTypes reverses SupportedFormats for octet-stream remapping.
var extensionContentTypes = func() map[string]string {
	m := make(map[string]string)
	for ct, exts := range SupportedFormats {
		for _, ext := range exts {
			m[ext] = ct
		}
	}
	return m
}()

// SupportedExtensions returns every accepted extension, sorted.
func SupportedExtensions() []string {
	var exts []string
	for _, list := range SupportedFormats {
		exts = append(exts, list...)
	}
	sort.Strings(exts)
	return exts
}

// NormalizeContentType resolves a usable content type for the file. Browsers
// frequently send application/octet-stream; the extension is authoritative
// then, with content sniffing as a second opinion.
func NormalizeContentType(contentType, filename string, data []byte) string {
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data)
		for ct := range SupportedFormats {
			if detected.Is(ct) {
				return ct
			}
		}
		return detected.String()
	}
	return "application/octet-stream"
}

// ValidateFormat checks that the content type is supported and matches the
// filename's extension.
func ValidateFormat(contentType, filename string) error {
	exts, ok := SupportedFormats[contentType]
	if !ok {
		return errs.Validationf("unsupported file format '%s', supported extensions: %s",
			contentType, strings.Join(SupportedExtensions(), ", "))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if e == ext {
			return nil
		}
	}
	return errs.Validationf("file extension '%s' does not match content type '%s' (expected %s)",
		ext, contentType, strings.Join(exts, " or "))
}

// Capability names the processing path a content type dispatches to.
type Capability string

const (
	CapabilityPDF         Capability = "pdf"
	CapabilityImage       Capability = "image"
	CapabilitySpreadsheet Capability = "spreadsheet"
	CapabilityText        Capability = "text"
)

// CapabilityFor returns the processing path for a supported content type.
func CapabilityFor(contentType string) (Capability, error) {
	switch contentType {
	case "application/pdf":
		return CapabilityPDF, nil
	case "image/png", "image/jpeg":
		return CapabilityImage, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.ms-excel":
		return CapabilitySpreadsheet, nil
	case "text/csv", "text/plain":
		return CapabilityText, nil
	default:
		return "", fmt.Errorf("no processing capability for content type '%s'", contentType)
	}
}
