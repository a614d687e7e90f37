package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads the text layer page by page. Pages that fail to parse are
// skipped; an empty result means the PDF is probably a scan.
func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		// The pdf reader panics on some malformed xref tables.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pt, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		if pt = strings.TrimSpace(pt); pt != "" {
			parts = append(parts, pt)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}
