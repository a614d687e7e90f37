package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// OCR recovers text from scanned PDFs and images.
type OCR interface {
	Extract(ctx context.Context, mimeType string, data []byte) (*OCRResult, error)
	Close() error
}

type OCRConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

func OCRConfigFromEnv() OCRConfig {
	return OCRConfig{
		ProjectID:        envutil.String("DOCUMENTAI_PROJECT_ID", envutil.String("GOOGLE_CLOUD_PROJECT", "")),
		Location:         envutil.String("DOCUMENTAI_LOCATION", "us"),
		ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
		Timeout:          envutil.Seconds("DOCUMENTAI_TIMEOUT_SECONDS", 3*time.Minute),
	}
}

// Enabled reports whether a processor is configured at all.
func (c OCRConfig) Enabled() bool {
	return processorName(c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion) != ""
}

type OCRPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type OCRResult struct {
	Processor string    `json:"processor"`
	MimeType  string    `json:"mime_type"`
	Text      string    `json:"text"`
	Pages     []OCRPage `json:"pages,omitempty"`
	// Tables are rendered as markdown.
	Tables []string `json:"tables,omitempty"`
}

// PlainText joins page text and tables, falling back to the raw document
// text when the processor returned no layout.
func (r *OCRResult) PlainText() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Pages)+len(r.Tables))
	for _, p := range r.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	parts = append(parts, r.Tables...)
	if len(parts) == 0 {
		return r.Text
	}
	return strings.Join(parts, "\n\n")
}

type documentAIOCR struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
	timeout   time.Duration
}

func NewOCR(ctx context.Context, log *logger.Logger, cfg OCRConfig) (OCR, error) {
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, errors.New("documentai: DOCUMENTAI_PROJECT_ID and DOCUMENTAI_PROCESSOR_ID are required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", strings.TrimSpace(cfg.Location))
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	serviceLog := log.With("service", "DocumentAIOCR")
	serviceLog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &documentAIOCR{log: serviceLog, client: c, processor: name, timeout: timeout}, nil
}

func (s *documentAIOCR) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentAIOCR) Extract(ctx context.Context, mimeType string, data []byte) (*OCRResult, error) {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	if len(data) == 0 {
		return &OCRResult{Processor: s.processor, MimeType: mimeType}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	return buildOCRResult(resp.GetDocument(), s.processor, mimeType), nil
}

func buildOCRResult(doc *documentaipb.Document, processor, mimeType string) *OCRResult {
	out := &OCRResult{Processor: processor, MimeType: mimeType}
	if doc == nil {
		return out
	}
	out.Text = strings.TrimSpace(doc.Text)

	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		var b strings.Builder
		for _, para := range p.Paragraphs {
			if para == nil || para.Layout == nil {
				continue
			}
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor))
			if t == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t)
		}
		if b.Len() > 0 {
			out.Pages = append(out.Pages, OCRPage{Number: int(p.PageNumber), Text: b.String()})
		}
		for _, table := range p.Tables {
			if md := strings.TrimSpace(tableToMarkdown(doc.Text, table)); md != "" {
				out.Tables = append(out.Tables, md)
			}
		}
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func tableToMarkdown(full string, t *documentaipb.Document_Page_Table) string {
	if t == nil {
		return ""
	}
	var header []string
	if len(t.HeaderRows) > 0 {
		header = tableRowCells(full, t.HeaderRows[0])
	}
	body := t.BodyRows
	if len(header) == 0 && len(body) > 0 {
		header = tableRowCells(full, body[0])
		body = body[1:]
	}
	if len(header) == 0 {
		return ""
	}
	rows := [][]string{header}
	for _, r := range body {
		if r != nil {
			rows = append(rows, tableRowCells(full, r))
		}
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var out strings.Builder
	writeRow := func(cells []string) {
		padded := make([]string, width)
		for i := range padded {
			if i < len(cells) {
				padded[i] = strings.ReplaceAll(cells[i], "|", "\\|")
			}
		}
		out.WriteString("| " + strings.Join(padded, " | ") + " |\n")
	}
	writeRow(rows[0])
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	out.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return out.String()
}

func tableRowCells(full string, r *documentaipb.Document_Page_Table_TableRow) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		if c == nil || c.Layout == nil {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimSpace(textFromAnchor(full, c.Layout.TextAnchor)))
	}
	return out
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
