package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Kind string

const (
	KindPDF     Kind = "pdf"
	KindHTML    Kind = "html"
	KindDOCX    Kind = "docx"
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

const (
	defaultMaxTextRunes   = 2_000_000
	shortDocumentRunes    = 200
	defaultOCRContentType = "application/pdf"
)

var (
	ErrEmptyFile   = errors.New("extractor: empty file")
	ErrUnsupported = errors.New("extractor: unsupported file type")
	ErrNoText      = errors.New("extractor: no extractable text")
	ErrTooLarge    = errors.New("extractor: document part exceeds size limit")
)

type Input struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Result struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	Pages int    `json:"pages,omitempty"`
	OCR   bool   `json:"ocr"`
	// Issues holds data quality flags for the extracted text.
	Issues []string `json:"issues,omitempty"`
}

type Option func(*Extractor)

// WithOCR enables Document AI for images and PDFs without a text layer.
func WithOCR(ocr gcp.OCR) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

func WithMaxTextRunes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTextRunes = n
		}
	}
}

type Extractor struct {
	log          *logger.Logger
	ocr          gcp.OCR
	html         *htmlConverter
	maxTextRunes int
}

func New(log *logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	e := &Extractor{
		log:          log.With("component", "DocumentExtractor"),
		html:         newHTMLConverter(),
		maxTextRunes: defaultMaxTextRunes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) OCREnabled() bool { return e.ocr != nil }

// Extract turns an uploaded file into normalized plain text.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}
	kind := Classify(in.FileName, in.ContentType, in.Data)
	res := &Result{Kind: kind}

	switch kind {
	case KindPDF:
		text, pages, err := extractPDF(in.Data)
		if err != nil {
			e.log.Warn("pdf text layer unreadable", "file", in.FileName, "error", err)
		}
		res.Pages = pages
		res.Text = text
		if strings.TrimSpace(text) == "" {
			if err := e.applyOCR(ctx, res, "application/pdf", in.Data); err != nil {
				return nil, err
			}
		}
	case KindHTML:
		title, text, err := e.html.Convert(in.Data)
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		res.Title = title
		res.Text = text
	case KindDOCX:
		text, err := extractDOCX(in.Data)
		if err != nil {
			return nil, fmt.Errorf("extract docx: %w", err)
		}
		res.Text = text
	case KindText:
		res.Text = string(in.Data)
		if strings.EqualFold(filepath.Ext(in.FileName), ".md") || strings.EqualFold(filepath.Ext(in.FileName), ".markdown") {
			res.Title = markdownTitle(res.Text)
		}
	case KindImage:
		if err := e.applyOCR(ctx, res, imageContentType(in), in.Data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: name=%s mime=%s head=%s", ErrUnsupported, in.FileName, in.ContentType, firstBytesHex(in.Data, 8))
	}

	res.Text = NormalizeText(res.Text)
	if res.Text == "" {
		return nil, fmt.Errorf("%w: kind=%s file=%s", ErrNoText, kind, in.FileName)
	}
	n := utf8.RuneCountInString(res.Text)
	if n > e.maxTextRunes {
		res.Text = string([]rune(res.Text)[:e.maxTextRunes])
		res.Issues = append(res.Issues, observability.IssueTruncated)
	}
	if n < shortDocumentRunes {
		res.Issues = append(res.Issues, observability.IssueShortDocument)
	}
	return res, nil
}

func (e *Extractor) applyOCR(ctx context.Context, res *Result, mimeType string, data []byte) error {
	if e.ocr == nil {
		return fmt.Errorf("%w: %s has no text layer and OCR is not configured", ErrNoText, res.Kind)
	}
	out, err := e.ocr.Extract(ctx, mimeType, data)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	res.OCR = true
	res.Text = out.PlainText()
	if len(out.Pages) > res.Pages {
		res.Pages = len(out.Pages)
	}
	res.Issues = append(res.Issues, observability.IssueOCRFallback)
	return nil
}

// Classify sniffs magic bytes first, then falls back to the declared content
// type and the file extension.
func Classify(name, contentType string, data []byte) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case isPDF(data):
		return KindPDF
	case isZip(data) && (ext == ".docx" || strings.Contains(mt, "wordprocessingml")):
		return KindDOCX
	case isImage(data) || strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == "text/html" || ext == ".html" || ext == ".htm" || looksLikeHTML(data):
		return KindHTML
	case mt == "application/pdf" || ext == ".pdf":
		// Claims to be a PDF but has no header.
		return KindUnknown
	case isTextType(mt, ext) || isProbablyText(data):
		return KindText
	}
	return KindUnknown
}

func isTextType(mt, ext string) bool {
	if strings.HasPrefix(mt, "text/") || mt == "application/json" || mt == "application/xml" {
		return true
	}
	switch ext {
	case ".txt", ".md", ".markdown", ".csv", ".json", ".xml", ".yaml", ".yml", ".log":
		return true
	}
	return false
}

func imageContentType(in Input) string {
	mt := strings.ToLower(strings.TrimSpace(in.ContentType))
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	if ct := sniffImageType(in.Data); ct != "" {
		return ct
	}
	return defaultOCRContentType
}
