package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/ingestion"
	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const multipartMemory = 32 << 20

type DocumentService interface {
	Upload(ctx context.Context, in ingestion.UploadInput) (*types.Document, error)
	List(ctx context.Context, hotelID uuid.UUID, limit, offset int) ([]*types.Document, error)
	Get(ctx context.Context, hotelID, documentID uuid.UUID) (*types.Document, error)
	ViewURL(ctx context.Context, hotelID, documentID uuid.UUID) (string, time.Time, error)
	Reprocess(ctx context.Context, hotelID, documentID uuid.UUID) (*types.Document, error)
	Archive(ctx context.Context, hotelID, documentID uuid.UUID) error
}

type DocumentHandler struct {
	log  *logger.Logger
	docs DocumentService
}

func NewDocumentHandler(log *logger.Logger, docs DocumentService) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "DocumentHandler"), docs: docs}
}

// POST /api/documents (multipart: file, hotel_id, title, description)
func (h *DocumentHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		response.Fail(c, fmt.Errorf("%w: expected multipart form: %v", pkgerrors.ErrInvalidArgument, err))
		return
	}
	hotelID, err := resolveHotel(c, c.PostForm("hotel_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, fmt.Errorf("%w: file is required", pkgerrors.ErrInvalidArgument))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	var description *string
	if d, ok := c.GetPostForm("description"); ok {
		description = &d
	}
	doc, err := h.docs.Upload(c.Request.Context(), ingestion.UploadInput{
		HotelID:     hotelID,
		Title:       c.PostForm("title"),
		Description: description,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.fail(c, "Upload failed", hotelID, uuid.Nil, err)
		return
	}
	response.RespondCreated(c, gin.H{"success": true, "document": doc})
}

// GET /api/documents?hotel_id=&limit=&offset=
func (h *DocumentHandler) List(c *gin.Context) {
	hotelID, err := resolveHotel(c, c.Query("hotel_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.Fail(c, err)
		return
	}
	docs, err := h.docs.List(c.Request.Context(), hotelID, limit, offset)
	if err != nil {
		h.fail(c, "List failed", hotelID, uuid.Nil, err)
		return
	}
	if docs == nil {
		docs = []*types.Document{}
	}
	response.RespondOK(c, gin.H{"success": true, "documents": docs, "count": len(docs)})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	hotelID, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), hotelID, id)
	if err != nil {
		h.fail(c, "Get failed", hotelID, id, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "document": doc})
}

// GET /api/documents/:id/view
func (h *DocumentHandler) View(c *gin.Context) {
	hotelID, id, ok := h.target(c)
	if !ok {
		return
	}
	url, expires, err := h.docs.ViewURL(c.Request.Context(), hotelID, id)
	if err != nil {
		h.fail(c, "View URL failed", hotelID, id, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "url": url, "expires_at": expires.UTC()})
}

// POST /api/documents/:id/reprocess
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	hotelID, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docs.Reprocess(c.Request.Context(), hotelID, id)
	if err != nil {
		h.fail(c, "Reprocess failed", hotelID, id, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "document": doc})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Archive(c *gin.Context) {
	hotelID, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.docs.Archive(c.Request.Context(), hotelID, id); err != nil {
		h.fail(c, "Archive failed", hotelID, id, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "id": id})
}

func (h *DocumentHandler) target(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	hotelID, err := resolveHotel(c, c.Query("hotel_id"))
	if err != nil {
		response.Fail(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return hotelID, id, true
}

func (h *DocumentHandler) fail(c *gin.Context, msg string, hotelID, documentID uuid.UUID, err error) {
	ae, _ := response.FromError(err)
	if ae.Status >= http.StatusInternalServerError {
		h.log.Error(msg, "hotel_id", hotelID, "document_id", documentID, "error", err)
	}
	response.Fail(c, err)
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", pkgerrors.ErrInvalidArgument, name)
	}
	return n, nil
}
