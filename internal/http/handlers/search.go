package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/search"
)

type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

type SearchHandler struct {
	log    *logger.Logger
	engine Searcher
}

func NewSearchHandler(log *logger.Logger, engine Searcher) *SearchHandler {
	return &SearchHandler{log: log.With("handler", "SearchHandler"), engine: engine}
}

// searchRequest uses pointers so absent fields take engine defaults rather
// than JSON zero values.
type searchRequest struct {
	Query          string          `json:"query"`
	HotelID        string          `json:"hotel_id"`
	Limit          *int            `json:"limit"`
	DocumentID     *string         `json:"document_id"`
	DocumentIDs    json.RawMessage `json:"document_ids"`
	MatchThreshold *float64        `json:"match_threshold"`
	UseChunks      *bool           `json:"use_chunks"`
}

type searchResponse struct {
	Success bool `json:"success"`
	*search.Response
}

// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	req, err := decodeSearchRequest(c.Request.Body)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := checkHotel(c, req.HotelID); err != nil {
		response.Fail(c, err)
		return
	}

	resp, err := h.engine.Search(c.Request.Context(), req)
	if err != nil {
		ae, _ := response.FromError(err)
		if ae.Status >= 500 {
			h.log.Error("Search failed", "hotel_id", req.HotelID, "error", err)
		}
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, searchResponse{Success: true, Response: resp})
}

func decodeSearchRequest(body io.Reader) (search.Request, error) {
	var raw searchRequest
	if body != nil {
		dec := json.NewDecoder(body)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return search.Request{}, &search.InvalidInputError{Field: "body", Reason: "must be a JSON object: " + err.Error()}
		}
	}

	opts := search.DefaultOptions()
	if raw.Limit != nil {
		opts.Limit = *raw.Limit
	}
	if raw.MatchThreshold != nil {
		opts.MatchThreshold = *raw.MatchThreshold
	}
	if raw.UseChunks != nil {
		opts.UseChunks = *raw.UseChunks
	}
	if raw.DocumentID != nil {
		opts.DocumentID = *raw.DocumentID
	}
	ids, err := decodeDocumentIDs(raw.DocumentIDs)
	if err != nil {
		return search.Request{}, err
	}
	opts.DocumentIDs = ids

	return search.Request{Query: raw.Query, HotelID: raw.HotelID, Options: opts}, nil
}

func decodeDocumentIDs(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(trimmed, &ids); err != nil {
		return nil, &search.InvalidInputError{Field: "document_ids", Reason: "must be an array of UUID strings"}
	}
	return ids, nil
}
