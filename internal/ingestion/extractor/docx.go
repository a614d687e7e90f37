package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxDOCXPartBytes bounds the decompressed document part. Uploads are
// untrusted and a small zip can inflate to gigabytes.
var maxDOCXPartBytes int64 = 32 << 20

// extractDOCX reads word/document.xml and emits one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("word/document.xml not found")
	}
	if part.UncompressedSize64 > uint64(maxDOCXPartBytes) {
		return "", fmt.Errorf("%w: word/document.xml declares %d bytes", ErrTooLarge, part.UncompressedSize64)
	}
	rc, err := part.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	// The declared size can lie; the read itself is bounded too.
	raw, err := io.ReadAll(io.LimitReader(rc, maxDOCXPartBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > maxDOCXPartBytes {
		return "", fmt.Errorf("%w: word/document.xml exceeds %d bytes", ErrTooLarge, maxDOCXPartBytes)
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	var (
		out  strings.Builder
		para strings.Builder
	)
	flush := func() {
		if line := collapseWhitespace(para.String()); line != "" {
			out.WriteString(line)
			out.WriteString("\n")
		}
		para.Reset()
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var v string
				if err := dec.DecodeElement(&v, &el); err == nil {
					para.WriteString(v)
				}
			case "tab":
				para.WriteString(" ")
			case "br":
				para.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				flush()
			}
		}
	}
	flush()
	return out.String(), nil
}
