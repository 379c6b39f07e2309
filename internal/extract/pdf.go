// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractionError means no usable text could be recovered from the input.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

const noTextReason = "no text could be extracted from the document, provide text instead"

// PDF returns the concatenated plain text of every page. Malformed documents
// and documents without a text layer yield an ExtractionError.
func PDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", &ExtractionError{Reason: "document is empty, provide text instead"}
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Reason: noTextReason, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Reason: noTextReason, Err: err}
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Reason: noTextReason, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}

	text = strings.TrimSpace(builder.String())
	if text == "" {
		return "", &ExtractionError{Reason: noTextReason, Err: errors.New("document has no text layer")}
	}
	return text, nil
}

// IsPDF reports whether an upload looks like a PDF by extension and, when
// present, content type.
func IsPDF(filename, contentType string) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return false
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	return strings.HasPrefix(contentType, "application/pdf")
}
