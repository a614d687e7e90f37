package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
)

func TestDocumentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDocumentRepo(db, testutil.Logger(t))

	hotel := uuid.New()
	doc, err := repo.Create(dbc, &types.Document{HotelID: hotel, Title: "Spa menu", FileType: "text/plain"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.ID == uuid.Nil {
		t.Fatalf("Create: id not assigned")
	}

	got, err := repo.GetForHotel(dbc, hotel, doc.ID)
	if err != nil || got == nil || got.Processed {
		t.Fatalf("GetForHotel: err=%v doc=%+v", err, got)
	}
	if other, err := repo.GetForHotel(dbc, uuid.New(), doc.ID); err != nil || other != nil {
		t.Fatalf("GetForHotel other hotel: err=%v doc=%+v", err, other)
	}

	if rows, err := repo.ListUnprocessed(dbc, hotel, 10); err != nil || len(rows) != 1 {
		t.Fatalf("ListUnprocessed: err=%v len=%d", err, len(rows))
	}

	if err := repo.MarkProcessed(dbc, doc.ID, "spa content", testutil.UnitVector(1), 3); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	got, err = repo.GetByID(dbc, doc.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v", err)
	}
	if !got.Processed || got.ChunkCount != 3 || got.Embedding == nil || got.Content != "spa content" {
		t.Fatalf("MarkProcessed not applied: %+v", got)
	}
	if rows, err := repo.ListUnprocessed(dbc, hotel, 10); err != nil || len(rows) != 0 {
		t.Fatalf("ListUnprocessed after processing: err=%v len=%d", err, len(rows))
	}

	if err := repo.MarkFailed(dbc, doc.ID, "ocr failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, _ = repo.GetByID(dbc, doc.ID)
	if !got.Processed || got.ChunkCount != 3 || got.ProcessingError != "ocr failed" {
		t.Fatalf("MarkFailed should keep the committed state and record the reason: %+v", got)
	}

	if err := repo.SoftDelete(dbc, hotel, doc.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if got, err := repo.GetByID(dbc, doc.ID); err != nil || got != nil {
		t.Fatalf("GetByID after delete: err=%v doc=%+v", err, got)
	}
	if rows, err := repo.ListByHotel(dbc, hotel, 10, 0); err != nil || len(rows) != 0 {
		t.Fatalf("ListByHotel after delete: err=%v len=%d", err, len(rows))
	}
}

func TestDocumentChunkRepoReplace(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDocumentChunkRepo(db, testutil.Logger(t))

	doc := testutil.SeedDocument(t, ctx, tx, uuid.New(), "rules", true, time.Now().UTC(), nil)
	first := []*types.DocumentChunk{
		{ChunkIndex: 0, Content: "a", Embedding: vec(testutil.UnitVector(0))},
		{ChunkIndex: 1, Content: "b", Embedding: vec(testutil.UnitVector(1))},
	}
	if _, err := repo.ReplaceForDocument(dbc, doc.ID, first); err != nil {
		t.Fatalf("ReplaceForDocument: %v", err)
	}
	second := []*types.DocumentChunk{
		{ChunkIndex: 0, Content: "c", Embedding: vec(testutil.UnitVector(2))},
	}
	if _, err := repo.ReplaceForDocument(dbc, doc.ID, second); err != nil {
		t.Fatalf("ReplaceForDocument again: %v", err)
	}

	rows, err := repo.GetByDocumentID(dbc, doc.ID)
	if err != nil || len(rows) != 1 || rows[0].Content != "c" {
		t.Fatalf("GetByDocumentID: err=%v rows=%d", err, len(rows))
	}
	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{second[0].ID}); err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	if n, err := repo.DeleteByDocumentID(dbc, doc.ID); err != nil || n != 1 {
		t.Fatalf("DeleteByDocumentID: err=%v n=%d", err, n)
	}
}
