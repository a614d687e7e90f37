package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/concierge-backend/internal/domain"
)

// embedAll embeds texts in fixed-size batches on a bounded worker pool. The
// result is index-aligned with texts.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		start := start
		end := min(start+p.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := p.deps.Embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding count mismatch (got %d want %d)", len(vecs), end-start)
			}
			for i, v := range vecs {
				if len(v) != types.EmbeddingDim {
					return fmt.Errorf("chunk %d: embedding has %d dimensions, want %d", start+i, len(v), types.EmbeddingDim)
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// meanVector averages unit vectors into a unit document vector.
func meanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i := range sum {
			if i < len(v) {
				sum[i] += float64(v[i])
			}
		}
	}
	var sq float64
	for _, x := range sum {
		sq += x * x
	}
	if sq == 0 {
		return nil
	}
	norm := math.Sqrt(sq)
	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x / norm)
	}
	return out
}

func pgvectorOf(v []float32) pgvector.Vector { return pgvector.NewVector(v) }
