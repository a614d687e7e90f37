// Package ingesttest provides in-memory collaborators for ingestion tests.
package ingesttest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

// Tx runs fn without a real transaction.
func Tx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

// Documents is an in-memory DocumentRepo. Soft-deleted rows are removed.
type Documents struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Document
	// FailMarkProcessed makes MarkProcessed return an error.
	FailMarkProcessed error
}

func NewDocuments() *Documents {
	return &Documents{rows: map[uuid.UUID]*types.Document{}}
}

func (d *Documents) Create(_ dbctx.Context, doc *types.Document) (*types.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	cp := *doc
	d.rows[doc.ID] = &cp
	return doc, nil
}

func (d *Documents) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row, ok := d.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (d *Documents) GetForHotel(dbc dbctx.Context, hotelID, id uuid.UUID) (*types.Document, error) {
	doc, err := d.GetByID(dbc, id)
	if err != nil || doc == nil || doc.HotelID != hotelID {
		return nil, err
	}
	return doc, nil
}

func (d *Documents) ListByHotel(_ dbctx.Context, hotelID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*types.Document{}
	for _, row := range d.rows {
		if row.HotelID == hotelID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []*types.Document{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Documents) ListUnprocessed(_ dbctx.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*types.Document{}
	for _, row := range d.rows {
		if !row.Processed && (hotelID == uuid.Nil || row.HotelID == hotelID) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Documents) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.rows[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "storage_key":
			row.StorageKey = v.(string)
		case "storage_url":
			row.StorageURL = v.(string)
		case "processed":
			row.Processed = v.(bool)
		case "processing_error":
			row.ProcessingError = v.(string)
		case "content":
			row.Content = v.(string)
		case "chunk_count":
			row.ChunkCount = v.(int)
		case "metadata":
			if raw, ok := v.([]byte); ok {
				row.Metadata = raw
			} else if js, ok := v.(interface{ MarshalJSON() ([]byte, error) }); ok {
				raw, _ := js.MarshalJSON()
				row.Metadata = raw
			}
		case "embedding":
			if vec, ok := v.(pgvector.Vector); ok {
				row.Embedding = &vec
			} else {
				row.Embedding = nil
			}
		}
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (d *Documents) MarkProcessed(dbc dbctx.Context, id uuid.UUID, content string, embedding []float32, chunkCount int) error {
	if d.FailMarkProcessed != nil {
		return d.FailMarkProcessed
	}
	updates := map[string]interface{}{
		"content":          content,
		"chunk_count":      chunkCount,
		"processed":        true,
		"processing_error": "",
		"embedding":        nil,
	}
	if len(embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(embedding)
	}
	return d.UpdateFields(dbc, id, updates)
}

func (d *Documents) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) error {
	return d.UpdateFields(dbc, id, map[string]interface{}{"processing_error": reason})
}

func (d *Documents) SoftDelete(_ dbctx.Context, hotelID, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row, ok := d.rows[id]; ok && row.HotelID == hotelID {
		delete(d.rows, id)
	}
	return nil
}

// Chunks is an in-memory DocumentChunkRepo.
type Chunks struct {
	mu    sync.Mutex
	byDoc map[uuid.UUID][]*types.DocumentChunk
}

func NewChunks() *Chunks {
	return &Chunks{byDoc: map[uuid.UUID][]*types.DocumentChunk{}}
}

func (c *Chunks) ReplaceForDocument(_ dbctx.Context, documentID uuid.UUID, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chunks {
		ch.DocumentID = documentID
		if ch.ID == uuid.Nil {
			ch.ID = uuid.New()
		}
	}
	c.byDoc[documentID] = append([]*types.DocumentChunk(nil), chunks...)
	return chunks, nil
}

func (c *Chunks) GetByDocumentID(_ dbctx.Context, documentID uuid.UUID) ([]*types.DocumentChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.DocumentChunk{}, c.byDoc[documentID]...), nil
}

func (c *Chunks) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*types.DocumentChunk{}
	for _, rows := range c.byDoc {
		for _, ch := range rows {
			if want[ch.ID] {
				out = append(out, ch)
			}
		}
	}
	return out, nil
}

func (c *Chunks) DeleteByDocumentID(_ dbctx.Context, documentID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.byDoc[documentID]))
	delete(c.byDoc, documentID)
	return n, nil
}

// Blobs is an in-memory BlobStore.
type Blobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// FailDownload makes Download return an error.
	FailDownload error
}

func NewBlobs() *Blobs {
	return &Blobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *Blobs) Put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}

func (b *Blobs) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

func (b *Blobs) Upload(_ context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *Blobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if b.FailDownload != nil {
		return nil, b.FailDownload
	}
	data, ok := b.Get(key)
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Blobs) Attrs(_ context.Context, key string) (*gcp.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return &gcp.ObjectAttrs{Size: int64(len(data)), ContentType: b.types[key]}, nil
}

func (b *Blobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *Blobs) DeletePrefix(_ context.Context, prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return errors.New("empty prefix")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			delete(b.objects, k)
		}
	}
	return nil
}

func (b *Blobs) PublicURL(key string) string {
	return "https://storage.test/docs/" + strings.TrimPrefix(key, "/")
}

func (b *Blobs) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	return b.PublicURL(key) + "?X-Goog-Expires=" + ttl.String(), nil
}

// Vectors records VectorStore calls.
type Vectors struct {
	mu        sync.Mutex
	Points    map[string]map[string]qdrant.Vector
	Deletes   []qdrant.Filter
	UpsertErr error
}

func NewVectors() *Vectors {
	return &Vectors{Points: map[string]map[string]qdrant.Vector{}}
}

func (v *Vectors) Upsert(_ context.Context, namespace string, vectors []qdrant.Vector) error {
	if v.UpsertErr != nil {
		return v.UpsertErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Points[namespace] == nil {
		v.Points[namespace] = map[string]qdrant.Vector{}
	}
	for _, vec := range vectors {
		v.Points[namespace][vec.ID] = vec
	}
	return nil
}

func (v *Vectors) QueryMatches(context.Context, string, []float32, int, qdrant.Filter) ([]qdrant.VectorMatch, error) {
	return nil, nil
}

func (v *Vectors) DeleteIDs(_ context.Context, namespace string, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		delete(v.Points[namespace], id)
	}
	return nil
}

// DeleteByFilter honours equality conditions on payload keys.
func (v *Vectors) DeleteByFilter(_ context.Context, namespace string, filter qdrant.Filter) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Deletes = append(v.Deletes, filter)
	for id, vec := range v.Points[namespace] {
		matched := true
		for _, c := range filter.Must {
			if vec.Metadata[c.Key] != c.Value {
				matched = false
				break
			}
		}
		if matched {
			delete(v.Points[namespace], id)
		}
	}
	return nil
}

// Count returns the number of points in namespace.
func (v *Vectors) Count(namespace string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.Points[namespace])
}
