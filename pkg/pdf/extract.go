// Package pdf extracts plain text from PDF files page by page.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("pdf: missing %PDF header")

var spaceRe = regexp.MustCompile(`[ \t\f\v]+`)

// Document holds the text of each page; Pages[0] is page 1.
type Document struct {
	Pages []string
}

func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Range joins the text of pages start..end (1-based, inclusive), clamped to
// the document.
func (d *Document) Range(start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(d.Pages) {
		end = len(d.Pages)
	}
	if start > end {
		return ""
	}
	parts := make([]string, 0, end-start+1)
	for _, p := range d.Pages[start-1 : end] {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// Extract reads every page. Pages that fail to decode are kept as empty
// strings so page numbers stay aligned with the outline.
func Extract(data []byte) (*Document, error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	doc := &Document{Pages: make([]string, r.NumPage())}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		doc.Pages[i-1] = Clean(text)
	}
	return doc, nil
}

// Clean collapses runs of horizontal whitespace and trims each line while
// keeping paragraph breaks.
func Clean(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
