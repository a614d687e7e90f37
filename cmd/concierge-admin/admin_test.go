package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	"github.com/yungbote/concierge-backend/internal/search"
	"github.com/yungbote/concierge-backend/internal/services"
)

type fakeSearcher struct {
	got search.Request
	err error
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (*search.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &search.Response{Query: req.Query, HotelID: req.HotelID, SearchType: search.TypeRAGChunks, UseChunks: req.Options.UseChunks}, nil
}

type fakeLister struct {
	docs    []*types.Document
	hotelID uuid.UUID
	limit   int
}

func (f *fakeLister) ListUnprocessed(_ context.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error) {
	f.hotelID, f.limit = hotelID, limit
	return f.docs, nil
}

type fakeProcessor struct {
	fail map[uuid.UUID]bool
	ran  []uuid.UUID
}

func (f *fakeProcessor) Run(_ context.Context, id uuid.UUID) (*pipeline.Summary, error) {
	f.ran = append(f.ran, id)
	if f.fail[id] {
		return nil, errors.New("extract failed")
	}
	return &pipeline.Summary{DocumentID: id, Chunks: 3}, nil
}

type fakeDispatcher struct{ sent []uuid.UUID }

func (f *fakeDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	f.sent = append(f.sent, id)
	return nil
}

func stubDeps(t *testing.T, deps *adminDeps) *bool {
	t.Helper()
	closed := false
	deps.Close = func() { closed = true }
	prev := openDeps
	openDeps = func(context.Context) (*adminDeps, error) { return deps, nil }
	t.Cleanup(func() { openDeps = prev })
	return &closed
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandBuildsRequest(t *testing.T) {
	s := &fakeSearcher{}
	closed := stubDeps(t, &adminDeps{Search: s})

	out, err := execute(t, "search", "late checkout", "--hotel", "h1", "-n", "3", "--document", "d1,d2", "--no-chunks")
	require.NoError(t, err)
	assert.True(t, *closed)

	assert.Equal(t, "late checkout", s.got.Query)
	assert.Equal(t, "h1", s.got.HotelID)
	assert.Equal(t, 3, s.got.Options.Limit)
	assert.Equal(t, search.DefaultMatchThreshold, s.got.Options.MatchThreshold)
	assert.False(t, s.got.Options.UseChunks)
	assert.Equal(t, []string{"d1", "d2"}, s.got.Options.DocumentIDs)
	assert.Empty(t, s.got.Options.DocumentID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "h1", resp["hotel_id"])
}

func TestSearchCommandDefaults(t *testing.T) {
	s := &fakeSearcher{}
	stubDeps(t, &adminDeps{Search: s})

	_, err := execute(t, "search", "pool hours", "--hotel", "h1", "--document", "d9")
	require.NoError(t, err)
	assert.Equal(t, search.DefaultLimit, s.got.Options.Limit)
	assert.True(t, s.got.Options.UseChunks)
	assert.Equal(t, "d9", s.got.Options.DocumentID)
}

func TestSearchCommandSurfacesEngineError(t *testing.T) {
	stubDeps(t, &adminDeps{Search: &fakeSearcher{err: search.ErrMissingScope}})

	_, err := execute(t, "search", "spa")
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrMissingScope)
}

func TestReindexProcessesUnprocessedDocuments(t *testing.T) {
	hotel := uuid.New()
	ok, bad := uuid.New(), uuid.New()
	lister := &fakeLister{docs: []*types.Document{
		{ID: ok, HotelID: hotel, Title: "Welcome"},
		{ID: bad, HotelID: hotel, Title: "Menu"},
	}}
	proc := &fakeProcessor{fail: map[uuid.UUID]bool{bad: true}}
	stubDeps(t, &adminDeps{Documents: lister, Processor: proc})

	report, err := runReindex(context.Background(), &adminDeps{Documents: lister, Processor: proc}, reindexOptions{hotel: hotel.String(), limit: 10})
	require.NoError(t, err)
	assert.Equal(t, hotel, lister.hotelID)
	assert.Equal(t, 10, lister.limit)
	assert.Equal(t, []uuid.UUID{ok, bad}, proc.ran)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "processed", report.Items[0].Status)
	assert.Equal(t, 3, report.Items[0].Chunks)
	assert.Equal(t, "failed", report.Items[1].Status)
	assert.Equal(t, "extract failed", report.Items[1].Error)

	_, err = execute(t, "reindex", "--hotel", hotel.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
}

func TestReindexDryRunDoesNotProcess(t *testing.T) {
	lister := &fakeLister{docs: []*types.Document{{ID: uuid.New()}}}
	proc := &fakeProcessor{}

	report, err := runReindex(context.Background(), &adminDeps{Documents: lister}, reindexOptions{dryRun: true, limit: 5})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, lister.hotelID)
	assert.Equal(t, "pending", report.Items[0].Status)
	assert.Empty(t, proc.ran)
}

func TestReindexSingleDocumentSkipsListing(t *testing.T) {
	id := uuid.New()
	lister := &fakeLister{}
	proc := &fakeProcessor{}

	report, err := runReindex(context.Background(), &adminDeps{Documents: lister, Processor: proc}, reindexOptions{document: id.String()})
	require.NoError(t, err)
	assert.Zero(t, lister.limit)
	assert.Equal(t, []uuid.UUID{id}, proc.ran)
	assert.Equal(t, 1, report.Succeeded)
}

func TestReindexDispatch(t *testing.T) {
	id := uuid.New()
	disp := &fakeDispatcher{}
	proc := &fakeProcessor{}

	report, err := runReindex(context.Background(), &adminDeps{
		Documents:  &fakeLister{docs: []*types.Document{{ID: id}}},
		Processor:  proc,
		Dispatcher: disp,
	}, reindexOptions{dispatch: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, disp.sent)
	assert.Empty(t, proc.ran)
	assert.Equal(t, "dispatched", report.Items[0].Status)
}

func TestReindexRequiresIngestion(t *testing.T) {
	_, err := runReindex(context.Background(), &adminDeps{Documents: &fakeLister{}}, reindexOptions{})
	assert.ErrorIs(t, err, errIngestionDisabled)
}

func TestReindexRejectsBadHotel(t *testing.T) {
	_, err := runReindex(context.Background(), &adminDeps{}, reindexOptions{hotel: "not-a-uuid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--hotel")
}

func TestTokenCommandSignsHotelClaim(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	user, hotel := uuid.New(), uuid.New()

	out, err := execute(t, "token", "--user", user.String(), "--hotel", hotel.String(), "--ttl", "5m")
	require.NoError(t, err)

	claims := &services.JWTClaims{}
	_, err = jwt.ParseWithClaims(string(bytes.TrimSpace([]byte(out))), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, user.String(), claims.Subject)
	assert.Equal(t, hotel.String(), claims.HotelID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := execute(t, "token")
	require.Error(t, err)
}
