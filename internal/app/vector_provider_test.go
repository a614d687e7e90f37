package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

func stubQdrantFactory(t *testing.T, fn func(cfg qdrant.Config) (qdrant.VectorStore, error)) {
	t.Helper()
	orig := newQdrantVectorStore
	t.Cleanup(func() { newQdrantVectorStore = orig })
	newQdrantVectorStore = func(_ context.Context, _ *logger.Logger, cfg qdrant.Config) (qdrant.VectorStore, error) {
		return fn(cfg)
	}
}

func setQdrantEnv(t *testing.T, dim string) {
	t.Helper()
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "document_chunks")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "concierge")
	t.Setenv("QDRANT_VECTOR_DIM", dim)
}

func qdrantTestConfig() Config {
	return Config{
		VectorProvider: "qdrant",
		Embedding:      embedding.Config{Dims: embedding.DefaultDimensions},
	}
}

func TestResolveVectorStoreQdrantSelected(t *testing.T) {
	setQdrantEnv(t, "384")

	inner := &fakeInstrumentedInner{}
	var captured qdrant.Config
	stubQdrantFactory(t, func(cfg qdrant.Config) (qdrant.VectorStore, error) {
		captured = cfg
		return inner, nil
	})

	vs, err := resolveVectorStore(context.Background(), logger.Nop(), qdrantTestConfig())
	if err != nil {
		t.Fatalf("resolveVectorStore: %v", err)
	}
	if vs == nil {
		t.Fatalf("vector store: expected non-nil qdrant vector store")
	}
	if err := vs.Upsert(context.Background(), "ns", []qdrant.Vector{{ID: "vec-1", Values: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("vector store upsert: %v", err)
	}
	if inner.upsertCalls != 1 {
		t.Fatalf("underlying qdrant store not called; upsert_calls=%d", inner.upsertCalls)
	}
	if captured.URL != "http://qdrant:6333" {
		t.Fatalf("qdrant.URL: want=%q got=%q", "http://qdrant:6333", captured.URL)
	}
	if captured.Collection != "document_chunks" {
		t.Fatalf("qdrant.Collection: want=%q got=%q", "document_chunks", captured.Collection)
	}
	if captured.VectorDim != 384 {
		t.Fatalf("qdrant.VectorDim: want=%d got=%d", 384, captured.VectorDim)
	}
}

func TestResolveVectorStoreNoneSkipsQdrant(t *testing.T) {
	setQdrantEnv(t, "384")
	calls := 0
	stubQdrantFactory(t, func(qdrant.Config) (qdrant.VectorStore, error) {
		calls++
		return &fakeInstrumentedInner{}, nil
	})

	vs, err := resolveVectorStore(context.Background(), logger.Nop(), Config{VectorProvider: "none"})
	if err != nil {
		t.Fatalf("resolveVectorStore: %v", err)
	}
	if vs != nil {
		t.Fatalf("vector store: expected nil when disabled")
	}
	if calls != 0 {
		t.Fatalf("qdrant init should be skipped; calls=%d", calls)
	}
}

func TestResolveVectorStoreDimensionMismatch(t *testing.T) {
	setQdrantEnv(t, "3072")
	stubQdrantFactory(t, func(qdrant.Config) (qdrant.VectorStore, error) {
		t.Fatalf("qdrant init should not run on a dimension mismatch")
		return nil, nil
	})

	_, err := resolveVectorStore(context.Background(), logger.Nop(), qdrantTestConfig())
	if got := bootstrapCode(err); got != BootstrapDimensionMismatch {
		t.Fatalf("code: want=%q got=%q (err=%v)", BootstrapDimensionMismatch, got, err)
	}
}

func TestResolveVectorStoreClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		env  func(t *testing.T)
		err  error
		want BootstrapErrorCode
	}{
		{
			name: "missing url",
			env: func(t *testing.T) {
				setQdrantEnv(t, "384")
				t.Setenv("QDRANT_URL", "")
			},
			want: BootstrapMissingQdrantURL,
		},
		{
			name: "invalid url",
			env: func(t *testing.T) {
				setQdrantEnv(t, "384")
				t.Setenv("QDRANT_URL", "qdrant:6333")
			},
			want: BootstrapInvalidQdrantURL,
		},
		{
			name: "invalid dim",
			env:  func(t *testing.T) { setQdrantEnv(t, "wide") },
			want: BootstrapInvalidQdrantVectorDim,
		},
		{
			name: "dial failure",
			env:  func(t *testing.T) { setQdrantEnv(t, "384") },
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			want: BootstrapConnectFailed,
		},
		{
			name: "transport failure",
			env:  func(t *testing.T) { setQdrantEnv(t, "384") },
			err:  &qdrant.OperationError{Code: qdrant.OperationErrorTransportFailed, Operation: "ready"},
			want: BootstrapConnectFailed,
		},
		{
			name: "other failure",
			env:  func(t *testing.T) { setQdrantEnv(t, "384") },
			err:  fmt.Errorf("collection vector size mismatch"),
			want: BootstrapProviderInitFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.env(t)
			stubQdrantFactory(t, func(qdrant.Config) (qdrant.VectorStore, error) {
				if tc.err == nil {
					t.Fatalf("qdrant init should not run on a config error")
				}
				return nil, tc.err
			})
			vs, err := resolveVectorStore(context.Background(), logger.Nop(), qdrantTestConfig())
			if vs != nil {
				t.Fatalf("vector store: expected nil on failure")
			}
			var bootstrapErr *BootstrapError
			if !errors.As(err, &bootstrapErr) {
				t.Fatalf("expected BootstrapError, got %T (%v)", err, err)
			}
			if bootstrapErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, bootstrapErr.Code)
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("cause not preserved: %v", err)
			}
		})
	}
}
