package feedback

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const lineHeight = 6

// Render lays the summary out as a PDF: title, one header per agent, body
// text, then the overall section.
func Render(s *Summary) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("render feedback: nil summary")
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(s.Title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, tr(s.Title), "", "L", false)
	if !s.GeneratedAt.IsZero() {
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr(s.GeneratedAt.Format("2006-01-02 15:04 MST")), "", "L", false)
	}
	pdf.Ln(4)

	writeSection := func(header, body string) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 8, tr(header), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range strings.Split(plainText(body), "\n") {
			if strings.TrimSpace(line) == "" {
				pdf.Ln(2)
				continue
			}
			pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
		}
		pdf.Ln(4)
	}

	for _, section := range s.Sections {
		writeSection(section.Agent, section.Body)
	}
	if strings.TrimSpace(s.Overall) != "" {
		writeSection(overallRole, s.Overall)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render feedback pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// plainText drops the markdown markers the PDF cannot show.
func plainText(md string) string {
	lines := strings.Split(strings.TrimSpace(md), "\n")
	for i, line := range lines {
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "__", "")
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case strings.HasPrefix(trimmed, "#"):
			line = strings.TrimLeft(trimmed, "# ")
		case strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "- "):
			line = "- " + trimmed[2:]
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// HTML renders the summary markdown with GitHub flavored extensions. Raw
// HTML from the model is not passed through.
func HTML(s *Summary) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("render feedback: nil summary")
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(s.Markdown()), &buf); err != nil {
		return nil, fmt.Errorf("render feedback html: %w", err)
	}
	return buf.Bytes(), nil
}
