package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

const (
	defaultSignedURLTTL   = 15 * time.Minute
	defaultMaxUploadBytes = 50 << 20
	defaultListLimit      = 50
	maxListLimit          = 200
	maxTitleRunes         = 255
)

var ErrFileTooLarge = errors.New("upload exceeds size limit")

// Dispatcher schedules processing of an uploaded document.
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID uuid.UUID) error
}

type Processor interface {
	Run(ctx context.Context, documentID uuid.UUID) (*pipeline.Summary, error)
}

type Deps struct {
	Log        *logger.Logger
	Tx         pipeline.TxRunner
	Documents  documents.DocumentRepo
	Chunks     documents.DocumentChunkRepo
	Blobs      gcp.BlobStore
	Processor  Processor
	Dispatcher Dispatcher
	// Optional.
	Vectors    qdrant.VectorStore
	Namespaces func(hotelID uuid.UUID) string
}

type Config struct {
	SignedURLTTL   time.Duration
	MaxUploadBytes int64
}

type UploadInput struct {
	HotelID     uuid.UUID
	Title       string
	Description *string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Service owns the document lifecycle: upload, processing, listing, viewing
// and archiving. Every read and write is scoped to one hotel.
type Service struct {
	log  *logger.Logger
	deps Deps
	cfg  Config
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Tx == nil || deps.Documents == nil || deps.Chunks == nil || deps.Blobs == nil || deps.Processor == nil {
		return nil, fmt.Errorf("ingestion service: missing deps")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Vectors != nil && deps.Namespaces == nil {
		return nil, fmt.Errorf("ingestion service: vector store requires a namespace func")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedURLTTL
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Service{log: deps.Log.With("service", "DocumentService"), deps: deps, cfg: cfg}
	if s.deps.Dispatcher == nil {
		s.deps.Dispatcher = NewInlineDispatcher(s.log, deps.Processor, false)
	}
	return s, nil
}

// StorageKey is the object key of a document's original file.
func StorageKey(hotelID, documentID uuid.UUID, fileName string) string {
	return path.Join("hotels", hotelID.String(), "documents", documentID.String(), SanitizeFileName(fileName))
}

// Upload stores the file, creates the document row unprocessed and hands it
// to the dispatcher. A dispatch failure is recorded on the document and does
// not fail the upload.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*types.Document, error) {
	if in.HotelID == uuid.Nil {
		return nil, fmt.Errorf("%w: hotel_id is required", pkgerrors.ErrInvalidArgument)
	}
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: file is required", pkgerrors.ErrInvalidArgument)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.FileName), filepath.Ext(in.FileName))
	}
	if r := []rune(title); len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes])
	}
	fileName := SanitizeFileName(in.FileName)
	contentType := resolveContentType(in.ContentType, fileName)

	dbc := dbctx.Context{Ctx: ctx}
	doc, err := s.deps.Documents.Create(dbc, &types.Document{
		HotelID:     in.HotelID,
		Title:       title,
		Description: trimmedOrNil(in.Description),
		FileName:    fileName,
		FileType:    contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	log := s.log.With("document_id", doc.ID, "hotel_id", doc.HotelID)

	key := StorageKey(doc.HotelID, doc.ID, fileName)
	counter := &countingReader{r: io.LimitReader(in.Body, s.cfg.MaxUploadBytes+1)}
	uploadErr := s.deps.Blobs.Upload(ctx, key, contentType, counter)
	if uploadErr == nil && counter.n > s.cfg.MaxUploadBytes {
		_ = s.deps.Blobs.Delete(ctx, key)
		uploadErr = fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, s.cfg.MaxUploadBytes)
	}
	if uploadErr == nil && counter.n == 0 {
		_ = s.deps.Blobs.Delete(ctx, key)
		uploadErr = fmt.Errorf("%w: file is empty", pkgerrors.ErrInvalidArgument)
	}
	if uploadErr != nil {
		if err := s.deps.Documents.SoftDelete(dbc, doc.HotelID, doc.ID); err != nil {
			log.Error("failed to discard document after upload error", "error", err)
		}
		return nil, fmt.Errorf("upload document: %w", uploadErr)
	}

	doc.StorageKey = key
	doc.StorageURL = s.deps.Blobs.PublicURL(key)
	if err := s.deps.Documents.UpdateFields(dbc, doc.ID, map[string]interface{}{
		"storage_key": doc.StorageKey,
		"storage_url": doc.StorageURL,
	}); err != nil {
		return nil, fmt.Errorf("store document location: %w", err)
	}
	log.Info("document uploaded", "file_name", fileName, "content_type", contentType, "bytes", counter.n)

	s.dispatch(ctx, log, doc.ID)
	return s.reload(ctx, doc)
}

// Process runs the ingestion pipeline synchronously. Workers and the admin CLI
// call it.
func (s *Service) Process(ctx context.Context, documentID uuid.UUID) (*pipeline.Summary, error) {
	return s.deps.Processor.Run(ctx, documentID)
}

// Reprocess re-runs ingestion for a stored document. The current chunks stay
// searchable until the new set is committed.
func (s *Service) Reprocess(ctx context.Context, hotelID, documentID uuid.UUID) (*types.Document, error) {
	doc, err := s.Get(ctx, hotelID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.StorageKey == "" {
		return nil, fmt.Errorf("%w: document has no stored file", pkgerrors.ErrInvalidArgument)
	}
	s.dispatch(ctx, s.log.With("document_id", doc.ID, "hotel_id", doc.HotelID), doc.ID)
	return s.reload(ctx, doc)
}

// Archive soft-deletes the document and removes its chunks. The stored file
// is kept.
func (s *Service) Archive(ctx context.Context, hotelID, documentID uuid.UUID) error {
	doc, err := s.Get(ctx, hotelID, documentID)
	if err != nil {
		return err
	}
	if err := s.deps.Tx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.deps.Chunks.DeleteByDocumentID(dbc, doc.ID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		return s.deps.Documents.SoftDelete(dbc, doc.HotelID, doc.ID)
	}); err != nil {
		return fmt.Errorf("archive document: %w", err)
	}

	if s.deps.Vectors != nil {
		if err := pipeline.DeleteDocumentVectors(ctx, s.deps.Vectors, s.deps.Namespaces(doc.HotelID), doc.ID); err != nil {
			s.log.Warn("failed to delete archived document vectors", "document_id", doc.ID, "error", err)
		}
	}
	s.log.Info("document archived", "document_id", doc.ID, "hotel_id", doc.HotelID)
	return nil
}

// ViewURL returns a time-limited URL for the original file.
func (s *Service) ViewURL(ctx context.Context, hotelID, documentID uuid.UUID) (string, time.Time, error) {
	doc, err := s.Get(ctx, hotelID, documentID)
	if err != nil {
		return "", time.Time{}, err
	}
	if doc.StorageKey == "" {
		return "", time.Time{}, fmt.Errorf("%w: document has no stored file", pkgerrors.ErrNotFound)
	}
	expires := time.Now().Add(s.cfg.SignedURLTTL).UTC()
	url, err := s.deps.Blobs.SignedURL(ctx, doc.StorageKey, s.cfg.SignedURLTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign url: %w", err)
	}
	return url, expires, nil
}

func (s *Service) List(ctx context.Context, hotelID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	if hotelID == uuid.Nil {
		return nil, fmt.Errorf("%w: hotel_id is required", pkgerrors.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.deps.Documents.ListByHotel(dbctx.Context{Ctx: ctx}, hotelID, limit, offset)
}

func (s *Service) Get(ctx context.Context, hotelID, documentID uuid.UUID) (*types.Document, error) {
	if hotelID == uuid.Nil || documentID == uuid.Nil {
		return nil, fmt.Errorf("%w: hotel_id and document id are required", pkgerrors.ErrInvalidArgument)
	}
	doc, err := s.deps.Documents.GetForHotel(dbctx.Context{Ctx: ctx}, hotelID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, pkgerrors.ErrNotFound)
	}
	return doc, nil
}

func (s *Service) dispatch(ctx context.Context, log *logger.Logger, id uuid.UUID) {
	if err := s.deps.Dispatcher.Dispatch(ctx, id); err != nil {
		log.Warn("document processing dispatch failed", "error", err)
		if mErr := s.deps.Documents.MarkFailed(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, id, "dispatch: "+err.Error()); mErr != nil {
			log.Error("failed to record dispatch error", "error", mErr)
		}
	}
}

func (s *Service) reload(ctx context.Context, doc *types.Document) (*types.Document, error) {
	fresh, err := s.deps.Documents.GetByID(dbctx.Context{Ctx: ctx}, doc.ID)
	if err != nil || fresh == nil {
		return doc, nil
	}
	return fresh, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// SanitizeFileName keeps the base name and replaces characters that are
// awkward in object keys and URLs.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}

func resolveContentType(declared, fileName string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); ct != "" {
		return ct
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
