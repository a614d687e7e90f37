package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

// instrumentedVectorStore records a span plus latency and outcome metrics
// for every call to the wrapped store.
type instrumentedVectorStore struct {
	provider string
	inner    qdrant.VectorStore
	metrics  *observability.Metrics
}

func instrumentVectorStore(provider string, inner qdrant.VectorStore) qdrant.VectorStore {
	return instrumentVectorStoreWith(provider, inner, observability.Current())
}

func instrumentVectorStoreWith(provider string, inner qdrant.VectorStore, metrics *observability.Metrics) qdrant.VectorStore {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{provider: provider, inner: inner, metrics: metrics}
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, namespace string, vectors []qdrant.Vector) error {
	return s.track(ctx, "upsert", attribute.Int("vectors", len(vectors)), func(ctx context.Context) error {
		return s.inner.Upsert(ctx, namespace, vectors)
	})
}

func (s *instrumentedVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter qdrant.Filter) ([]qdrant.VectorMatch, error) {
	var out []qdrant.VectorMatch
	err := s.track(ctx, "query_matches", attribute.Int("top_k", topK), func(ctx context.Context) error {
		var err error
		out, err = s.inner.QueryMatches(ctx, namespace, q, topK, filter)
		return err
	})
	return out, err
}

func (s *instrumentedVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return s.track(ctx, "delete_ids", attribute.Int("ids", len(ids)), func(ctx context.Context) error {
		return s.inner.DeleteIDs(ctx, namespace, ids)
	})
}

func (s *instrumentedVectorStore) DeleteByFilter(ctx context.Context, namespace string, filter qdrant.Filter) error {
	return s.track(ctx, "delete_by_filter", attribute.Int("conditions", len(filter.Must)), func(ctx context.Context) error {
		return s.inner.DeleteByFilter(ctx, namespace, filter)
	})
}

func (s *instrumentedVectorStore) track(ctx context.Context, op string, attr attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "vectorstore."+op,
		attribute.String("vector.provider", s.provider),
		attr,
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	s.metrics.ObserveVectorStoreOperation(s.provider, op, status, time.Since(start))
	return err
}
