package testutil

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
)

// UnitVector returns a unit vector of the stored width with equal weight on
// the given positions.
func UnitVector(positions ...int) []float32 {
	v := make([]float32, types.EmbeddingDim)
	if len(positions) == 0 {
		positions = []int{0}
	}
	for _, p := range positions {
		v[p%types.EmbeddingDim] += 1
	}
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(sq))
	for i := range v {
		v[i] /= n
	}
	return v
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, hotelID uuid.UUID, title string, processed bool, createdAt time.Time, embedding []float32) *types.Document {
	tb.Helper()
	doc := &types.Document{
		ID:         uuid.New(),
		HotelID:    hotelID,
		Title:      title,
		FileType:   "text/plain",
		FileName:   title + ".txt",
		StorageKey: "hotels/" + hotelID.String() + "/documents/" + title,
		Content:    title + " content",
		Processed:  processed,
		Metadata:   datatypes.JSON([]byte("{}")),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if embedding != nil {
		vec := pgvector.NewVector(embedding)
		doc.Embedding = &vec
	}
	if err := tx.WithContext(ctx).Create(doc).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	// processed has a column default, so a false value must be written explicitly.
	if !processed {
		if err := tx.WithContext(ctx).Model(doc).Update("processed", false).Error; err != nil {
			tb.Fatalf("seed document processed flag: %v", err)
		}
	}
	return doc
}

func SeedChunk(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, index int, content string, embedding []float32) *types.DocumentChunk {
	tb.Helper()
	c := &types.DocumentChunk{
		ID:         uuid.New(),
		DocumentID: documentID,
		ChunkIndex: index,
		Content:    content,
		Embedding:  pgvector.NewVector(embedding),
		Metadata:   datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chunk: %v", err)
	}
	return c
}
