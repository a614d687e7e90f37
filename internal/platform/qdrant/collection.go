package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const defaultDistance = "Cosine"

// indexedPayloadFields get keyword indexes when the collection is created.
// Every query filters on the namespace; chunk searches also filter on type
// and document id.
var indexedPayloadFields = []string{payloadNamespaceKey, "type", "document_id"}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type payloadIndexRequest struct {
	FieldName   string `json:"field_name"`
	FieldSchema string `json:"field_schema"`
}

// verifyReady pings /readyz, then checks the collection's vector size and
// records its distance. A missing collection is created when AutoCreate is
// set.
func (s *vectorStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	if err := s.ping(ctx, op); err != nil {
		return err
	}

	var info collectionInfo
	err := s.call(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	var oe *OperationError
	if errors.As(err, &oe) && oe.Code == OperationErrorNotFound && s.cfg.AutoCreate {
		return s.createCollection(ctx)
	}
	if err != nil {
		return err
	}

	vectors := info.Config.Params.Vectors
	if vectors.Size != 0 && vectors.Size != s.cfg.VectorDim {
		return opErr(op, OperationErrorValidation, fmt.Sprintf(
			"qdrant collection %q vector size mismatch: expected=%d actual=%d",
			s.cfg.Collection, s.cfg.VectorDim, vectors.Size,
		), nil)
	}
	s.distance = strings.TrimSpace(vectors.Distance)
	return nil
}

func (s *vectorStore) createCollection(ctx context.Context) error {
	const op = "create_collection"
	req := createCollectionRequest{Vectors: vectorParams{Size: s.cfg.VectorDim, Distance: defaultDistance}}
	if err := s.call(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return err
	}
	for _, field := range indexedPayloadFields {
		idx := payloadIndexRequest{FieldName: field, FieldSchema: "keyword"}
		if err := s.call(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), idx, nil); err != nil {
			return err
		}
	}
	s.distance = defaultDistance
	s.log.Info("qdrant collection created",
		"collection", s.cfg.Collection,
		"vector_dim", s.cfg.VectorDim,
		"indexed_fields", indexedPayloadFields,
	)
	return nil
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}
