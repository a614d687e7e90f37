package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// Reserved payload keys written on every point and stripped from matches.
const (
	payloadNamespaceKey = "_ns"
	payloadVectorIDKey  = "_vector_id"
)

var pointIDNamespaceUUID = uuid.MustParse("8a4f0c6e-5b1d-4d7e-9f83-2c61d0b7a9e4")

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorStore is a namespaced ANN index. Namespaces isolate tenants; every
// query is filtered to one namespace.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter Filter) ([]VectorMatch, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	nsPrefix string
	distance string
	retries  int
	http     *http.Client
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type searchRequest struct {
	Vector      []float32      `json:"vector"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	WithVector  bool           `json:"with_vector"`
	Filter      map[string]any `json:"filter"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type deleteRequest struct {
	Points []string       `json:"points,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
}

// NewVectorStore validates cfg and checks the server and collection before
// returning; see verifyReady.
func NewVectorStore(ctx context.Context, log *logger.Logger, cfg Config, httpClient *http.Client) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	s := &vectorStore{
		log:      log.With("service", "QdrantVectorStore"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		nsPrefix: strings.TrimSpace(cfg.NamespacePrefix),
		retries:  max(cfg.MaxRetries, 0),
		http:     httpClient,
	}
	if s.nsPrefix == "" {
		s.nsPrefix = DefaultNamespacePrefix
	}
	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}

	s.log.Info("Qdrant vector store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"namespace_prefix", s.nsPrefix,
		"vector_dim", cfg.VectorDim,
		"distance", s.distance,
		"max_retries", s.retries,
	)
	return s, nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}
	ns := s.qualifyNamespace(namespace)
	req := upsertRequest{Points: make([]point, 0, len(vectors))}
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if err := s.checkDim(op, "vector "+strconv.Quote(id), v.Values); err != nil {
			return err
		}
		payload := make(map[string]any, len(v.Metadata)+2)
		for k, val := range v.Metadata {
			payload[k] = val
		}
		payload[payloadNamespaceKey] = ns
		payload[payloadVectorIDKey] = id
		req.Points = append(req.Points, point{ID: s.pointID(ns, id), Vector: v.Values, Payload: payload})
	}
	return s.call(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

// QueryMatches returns matches ordered by normalised score, best first, with
// ties broken by id.
func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter Filter) ([]VectorMatch, error) {
	const op = "query"
	if len(q) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if err := s.checkDim(op, "query vector", q); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	body, err := filter.body(s.qualifyNamespace(namespace))
	if err != nil {
		return nil, err
	}

	var hits []scoredPoint
	req := searchRequest{Vector: q, Limit: topK, WithPayload: true, Filter: body}
	if err := s.call(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &hits); err != nil {
		return nil, err
	}

	out := make([]VectorMatch, 0, len(hits))
	for _, h := range hits {
		id := h.vectorID()
		if id == "" {
			continue
		}
		out = append(out, VectorMatch{ID: id, Score: s.normalizeScore(h.Score), Metadata: publicPayload(h.Payload)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *vectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	const op = "delete"
	ns := s.qualifyNamespace(namespace)
	seen := make(map[string]bool, len(ids))
	var req deleteRequest
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		pid := s.pointID(ns, id)
		if seen[pid] {
			continue
		}
		seen[pid] = true
		req.Points = append(req.Points, pid)
	}
	if len(req.Points) == 0 {
		return nil
	}
	return s.call(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

// DeleteByFilter removes every point of the namespace matching filter. An
// empty filter is rejected so a namespace is never wiped by accident.
func (s *vectorStore) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	const op = "delete_by_filter"
	if len(filter.Must) == 0 {
		return opErr(op, OperationErrorValidation, "at least one must condition is required", nil)
	}
	body, err := filter.body(s.qualifyNamespace(namespace))
	if err != nil {
		return err
	}
	return s.call(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), deleteRequest{Filter: body}, nil)
}

func (s *vectorStore) checkDim(op, what string, values []float32) error {
	if len(values) == s.cfg.VectorDim {
		return nil
	}
	return opErr(op, OperationErrorValidation,
		fmt.Sprintf("%s dimension mismatch: expected=%d got=%d", what, s.cfg.VectorDim, len(values)), nil)
}

func (s *vectorStore) qualifyNamespace(namespace string) string {
	if ns := strings.TrimSpace(namespace); ns != "" {
		return s.nsPrefix + ":" + ns
	}
	return s.nsPrefix
}

// pointID derives a stable UUID so re-upserting a vector overwrites it.
func (s *vectorStore) pointID(qualifiedNS, vectorID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(qualifiedNS+"|"+vectorID)).String()
}

// normalizeScore maps distance metrics onto (0, 1] so larger is always
// better. Cosine and dot scores pass through.
func (s *vectorStore) normalizeScore(score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(s.distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	}
	return score
}

// vectorID prefers the caller's id stored in the payload and falls back to
// the raw point id, which qdrant returns as a string or an integer.
func (p scoredPoint) vectorID() string {
	if id, ok := p.Payload[payloadVectorIDKey].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	if len(p.ID) == 0 {
		return ""
	}
	var str string
	if json.Unmarshal(p.ID, &str) == nil {
		return strings.TrimSpace(str)
	}
	var num int64
	if json.Unmarshal(p.ID, &num) == nil {
		return strconv.FormatInt(num, 10)
	}
	return strings.TrimSpace(string(p.ID))
}

func publicPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k != payloadNamespaceKey && k != payloadVectorIDKey {
			out[k] = v
		}
	}
	return out
}
