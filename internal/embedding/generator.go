// Package embedding turns text into fixed-length, unit-norm vectors.
//
// The pipeline is tokenize -> feature extraction -> mean pooling -> L2
// normalisation. Feature extraction is delegated to a Model that is loaded
// lazily, once per Generator, on first use.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/concierge-backend/internal/cache"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const (
	DefaultDimensions  = 384
	DefaultModelName   = "local-hashing-v1"
	defaultLoadTimeout = 2 * time.Minute
	defaultCacheTTL    = 10 * time.Minute
	probeText          = "model readiness probe"
)

// Metrics receives embedding observations. Implementations must tolerate a
// nil receiver.
type Metrics interface {
	ObserveEmbedding(model, op, status string, inputs int, dur time.Duration)
	IncEmbeddingCache(result string)
}

type Option func(*Generator)

func WithDimensions(d int) Option {
	return func(g *Generator) {
		if d > 0 {
			g.dims = d
		}
	}
}

// WithCache fronts EmbedQuery with c. A ttl <= 0 uses the default TTL.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(g *Generator) {
		if c != nil {
			g.cache = c
		}
		if ttl > 0 {
			g.cacheTTL = ttl
		}
	}
}

func WithLoadTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.loadTimeout = d
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(log *logger.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// Generator owns one lazily loaded Model. It is safe for concurrent use.
type Generator struct {
	name        string
	dims        int
	load        Loader
	loadTimeout time.Duration

	cache    cache.Cache
	cacheTTL time.Duration
	metrics  Metrics
	log      *logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	model Model
	loads atomic.Int64
}

func NewGenerator(name string, load Loader, opts ...Option) *Generator {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultModelName
	}
	g := &Generator{
		name:        name,
		dims:        DefaultDimensions,
		load:        load,
		loadTimeout: defaultLoadTimeout,
		cache:       cache.Noop{},
		cacheTTL:    defaultCacheTTL,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Model() string   { return g.name }
func (g *Generator) Dimensions() int { return g.dims }

// Loads reports how many times the model has been successfully loaded.
func (g *Generator) Loads() int64 { return g.loads.Load() }

// Warm loads the model if needed without embedding anything.
func (g *Generator) Warm(ctx context.Context) error {
	_, err := g.ensureModel(ctx)
	return err
}

// Close releases the loaded model, if it holds resources.
func (g *Generator) Close() error {
	g.mu.Lock()
	m := g.model
	g.model = nil
	g.mu.Unlock()
	if c, ok := m.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Embed returns the unit-norm embedding of text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order. Any empty text fails the whole batch.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return g.embed(ctx, "embed_batch", texts)
}

// EmbedQuery is Embed fronted by the TTL cache.
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InvalidInputError{Reason: "text is empty"}
	}
	key := g.cacheKey(text)
	raw, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.log.Warn("embedding cache get failed", "error", err)
	} else if ok {
		if vec, ok := decodeVector(raw, g.dims); ok {
			g.observeCache("hit")
			return vec, nil
		}
	}
	g.observeCache("miss")

	vec, err := g.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, encodeVector(vec), g.cacheTTL); err != nil {
		g.log.Warn("embedding cache set failed", "error", err)
	}
	return vec, nil
}

func (g *Generator) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			if len(texts) == 1 {
				return nil, &InvalidInputError{Reason: "text is empty"}
			}
			return nil, &InvalidInputError{Reason: fmt.Sprintf("text %d is empty", i)}
		}
	}

	m, err := g.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := g.extract(ctx, m, texts)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if g.metrics != nil {
		g.metrics.ObserveEmbedding(g.name, op, status, len(texts), time.Since(start))
	}
	return out, err
}

func (g *Generator) extract(ctx context.Context, m Model, texts []string) ([][]float32, error) {
	feats, err := m.FeatureExtract(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("feature extraction: %w", ctxErr)
		}
		return nil, &ModelUnavailableError{Model: g.name, Err: err}
	}
	if len(feats) != len(texts) {
		return nil, &ModelUnavailableError{
			Model: g.name,
			Err:   fmt.Errorf("model returned %d feature sets for %d texts", len(feats), len(texts)),
		}
	}

	out := make([][]float32, len(texts))
	for i, tokens := range feats {
		pooled, err := MeanPool(tokens)
		if err != nil {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("text %d produced no features: %v", i, err)}
		}
		if len(pooled) != g.dims {
			return nil, &ModelUnavailableError{
				Model: g.name,
				Err:   fmt.Errorf("dimension mismatch: got %d want %d", len(pooled), g.dims),
			}
		}
		vec, err := L2Normalize(pooled)
		if err != nil {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("text %d: %v", i, err)}
		}
		out[i] = vec
	}
	return out, nil
}

func (g *Generator) current() Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

// ensureModel loads the model once. Concurrent first callers share a single
// load; a caller whose ctx ends stops waiting but the load keeps running for
// the others. Failed loads are not remembered.
func (g *Generator) ensureModel(ctx context.Context) (Model, error) {
	if m := g.current(); m != nil {
		return m, nil
	}
	if g.load == nil {
		return nil, &ModelUnavailableError{Model: g.name, Err: errors.New("no model loader configured")}
	}

	ch := g.group.DoChan("model", func() (any, error) {
		if m := g.current(); m != nil {
			return m, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.loadTimeout)
		defer cancel()

		start := time.Now()
		m, err := g.load(loadCtx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errors.New("loader returned nil model")
		}
		if err := g.probe(loadCtx, m); err != nil {
			if c, ok := m.(Closer); ok {
				_ = c.Close()
			}
			return nil, err
		}

		g.mu.Lock()
		g.model = m
		g.mu.Unlock()
		g.loads.Add(1)
		g.log.Info("embedding model loaded", "model", g.name, "dims", g.dims, "elapsed", time.Since(start).String())
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for embedding model: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			var mu *ModelUnavailableError
			if errors.As(res.Err, &mu) {
				return nil, mu
			}
			return nil, &ModelUnavailableError{Model: g.name, Err: res.Err}
		}
		return res.Val.(Model), nil
	}
}

func (g *Generator) probe(ctx context.Context, m Model) error {
	feats, err := m.FeatureExtract(ctx, []string{probeText})
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if len(feats) != 1 {
		return fmt.Errorf("probe: got %d feature sets", len(feats))
	}
	pooled, err := MeanPool(feats[0])
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if len(pooled) != g.dims {
		return fmt.Errorf("probe: dimension mismatch: got %d want %d", len(pooled), g.dims)
	}
	return nil
}

func (g *Generator) observeCache(result string) {
	if g.metrics != nil {
		g.metrics.IncEmbeddingCache(result)
	}
}

func (g *Generator) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(g.name + "|" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(raw []byte, dims int) ([]float32, bool) {
	if len(raw) != 4*dims {
		return nil, false
	}
	out := make([]float32, dims)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, true
}
