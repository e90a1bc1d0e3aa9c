// Package files extracts text from uploaded documents so the agent can
// include them as conversation context. PDF and text-family formats are
// supported.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned when the MIME type is outside AllowedTypes.
var ErrUnsupportedType = errors.New("unsupported file type")

// MaxFileSize is the largest upload accepted, in bytes.
const MaxFileSize = 10 * 1024 * 1024

// AllowedTypes lists the MIME types accepted for upload.
var AllowedTypes = []string{
	"application/pdf",
	"text/plain",
	"text/markdown",
	"text/csv",
	"text/html",
	"application/json",
	"application/xml",
}

// Extracted is the text content pulled from one uploaded file.
type Extracted struct {
	Text     string
	Pages    int
	Filename string
}

// Allowed reports whether the MIME type is accepted for upload.
// Parameters after a semicolon (e.g. charset) are ignored.
func Allowed(mimeType string) bool {
	base := baseType(mimeType)
	for _, t := range AllowedTypes {
		if base == t {
			return true
		}
	}
	return false
}

// Extract pulls text from the file bytes according to its MIME type.
// Text-family content is taken verbatim as UTF-8 with a page count of 1.
func Extract(data []byte, mimeType, filename string) (Extracted, error) {
	base := baseType(mimeType)

	if base == "application/pdf" {
		text, pages, err := extractPDF(data)
		if err != nil {
			return Extracted{}, fmt.Errorf("extracting PDF text: %w", err)
		}
		return Extracted{Text: text, Pages: pages, Filename: filename}, nil
	}

	if strings.HasPrefix(base, "text/") || base == "application/json" || base == "application/xml" {
		return Extracted{Text: string(data), Pages: 1, Filename: filename}, nil
	}

	return Extracted{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
}

func extractPDF(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not void the whole document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), pages, nil
}

func baseType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(base))
}
