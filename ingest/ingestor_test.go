package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/caldex/ai/mock"
	"github.com/poiesic/caldex/core"
	"github.com/poiesic/caldex/eventlog"
	"github.com/poiesic/caldex/ledger"
	"github.com/poiesic/caldex/vectorstore"
	"github.com/poiesic/caldex/vectorstore/badger"
)

type fixture struct {
	root     string
	store    *eventlog.Store
	embedder *mock.MockEmbedder
	index    *badger.Index
	ledger   *ledger.Ledger
	ingestor *Ingestor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	store := eventlog.NewStore(root, "calendar")

	idx, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	led, err := ledger.Open(filepath.Join(root, "state", "indexing_state.json"))
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	builder := NewDocumentBuilder(builderConfig())

	ing, err := NewIngestor(store, builder, embedder, idx, led, WithBatchSize(10))
	require.NoError(t, err)

	return &fixture{
		root:     root,
		store:    store,
		embedder: embedder,
		index:    idx,
		ledger:   led,
		ingestor: ing,
	}
}

func (f *fixture) writeEvents(t *testing.T, calendarID, date string, count int) {
	t.Helper()

	path := f.store.EventFilePath(calendarID, date)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	enc := json.NewEncoder(file)
	for i := 0; i < count; i++ {
		event := core.Event{
			Envelope: core.Envelope{
				SourceChannel:  "calendar",
				SourceInstance: "personal",
				ContextType:    "calendar",
				ContextID:      calendarID,
				ContextLabel:   "Test Calendar",
				MessageID:      fmt.Sprintf("calendar:%s:%s-%02d", calendarID, date, i),
				RemoteID:       fmt.Sprintf("%s-%02d", date, i),
				Timestamp:      date + "T08:00:00Z",
			},
			Body: core.Body{
				Text:      fmt.Sprintf("Meeting %d on %s", i, date),
				StartTime: date + "T08:00:00Z",
				EndTime:   date + "T09:00:00Z",
			},
		}
		require.NoError(t, enc.Encode(&event))
	}
}

func TestIngestAll_IndexesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 3)
	f.writeEvents(t, "primary", "2025-06-02", 2)
	f.writeEvents(t, "work", "2025-06-01", 4)

	report, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 9, report.DocumentsProcessed)
	assert.Equal(t, 9, report.DocumentsIndexed)
	assert.Equal(t, 2, report.CalendarsProcessed)
	assert.Equal(t, 0, report.Errors)

	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	assert.True(t, f.ledger.IsFileIndexed("primary", f.store.EventFilePath("primary", "2025-06-01")))
	assert.Equal(t, "2025-06-02", f.ledger.LastIndexedDate("primary"))
	assert.Equal(t, "2025-06-01", f.ledger.LastIndexedDate("work"))
}

func TestIngestAll_SecondRunIndexesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 3)

	_, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)

	report, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DocumentsProcessed)
	assert.Equal(t, 0, report.DocumentsIndexed)

	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestAll_ForceRereadsButDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 3)

	_, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)

	report, err := f.ingestor.IngestAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, report.DocumentsProcessed)
	assert.Equal(t, 0, report.DocumentsIndexed)

	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestIncremental_PicksUpNewFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 2)
	f.writeEvents(t, "primary", "2025-06-02", 2)

	_, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)

	f.writeEvents(t, "primary", "2025-06-03", 5)

	report, err := f.ingestor.IngestIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.DocumentsIndexed)
	assert.Equal(t, "2025-06-03", f.ledger.LastIndexedDate("primary"))

	// A re-run with nothing new indexes zero documents.
	report, err = f.ingestor.IngestIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DocumentsIndexed)

	count, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

// spySource wraps an EventSource and records which files were read.
type spySource struct {
	EventSource
	readPaths []string
}

func (s *spySource) ReadEvents(path string) ([]*core.Event, error) {
	s.readPaths = append(s.readPaths, path)
	return s.EventSource.ReadEvents(path)
}

func TestIngestIncremental_ScanWindowRespectsWatermark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 1)
	f.writeEvents(t, "primary", "2025-06-02", 1)
	f.writeEvents(t, "primary", "2025-06-03", 1)

	_, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "2025-06-03", f.ledger.LastIndexedDate("primary"))

	spy := &spySource{EventSource: f.store}
	builder := NewDocumentBuilder(builderConfig())
	ing, err := NewIngestor(spy, builder, f.embedder, f.index, f.ledger, WithBatchSize(10))
	require.NoError(t, err)

	_, err = ing.IngestIncremental(ctx)
	require.NoError(t, err)

	// Only the boundary file is even eligible, and it is skipped by the
	// ledger check before being read.
	assert.Empty(t, spy.readPaths)
}

func TestEmbedFailure_LeavesFilesRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 3)

	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding backend unavailable")
	}

	report, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DocumentsIndexed)
	assert.Equal(t, 0, report.Errors)

	path := f.store.EventFilePath("primary", "2025-06-01")
	assert.False(t, f.ledger.IsFileIndexed("primary", path))

	// Recovery: the next run reprocesses and succeeds.
	f.embedder.EmbedTextsFunc = nil

	report, err = f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.DocumentsIndexed)
	assert.True(t, f.ledger.IsFileIndexed("primary", path))
}

// failingIndex fails Add for one calendar's documents and delegates
// everything else.
type failingIndex struct {
	vectorstore.Index
	failCalendarID string
}

func (f *failingIndex) Add(ctx context.Context, docs []*core.Document, vectors [][]float32) (int, error) {
	for _, doc := range docs {
		if doc.Metadata["calendar_id"] == f.failCalendarID {
			return 0, errors.New("index write rejected")
		}
	}
	return f.Index.Add(ctx, docs, vectors)
}

func TestIngestAll_CalendarErrorDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "alpha", "2025-06-01", 2)
	f.writeEvents(t, "beta", "2025-06-01", 2)

	idx := &failingIndex{Index: f.index, failCalendarID: "alpha"}
	builder := NewDocumentBuilder(builderConfig())
	ing, err := NewIngestor(f.store, builder, f.embedder, idx, f.ledger, WithBatchSize(10))
	require.NoError(t, err)

	report, err := ing.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.CalendarsProcessed)
	assert.Equal(t, 2, report.DocumentsIndexed)

	// The failed calendar's files stay unmarked for retry.
	assert.False(t, f.ledger.IsFileIndexed("alpha", f.store.EventFilePath("alpha", "2025-06-01")))
	assert.True(t, f.ledger.IsFileIndexed("beta", f.store.EventFilePath("beta", "2025-06-01")))
}

func TestIngestor_BatchFlushBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 25 documents across three files with batch size 10 yields three
	// flushes and two embed calls plus the final partial.
	f.writeEvents(t, "primary", "2025-06-01", 10)
	f.writeEvents(t, "primary", "2025-06-02", 10)
	f.writeEvents(t, "primary", "2025-06-03", 5)

	report, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 25, report.DocumentsProcessed)
	assert.Equal(t, 25, report.DocumentsIndexed)
	assert.Equal(t, 3, f.embedder.CallCount())
}

func TestStats_ReportsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeEvents(t, "primary", "2025-06-01", 3)
	_, err := f.ingestor.IngestAll(ctx, false)
	require.NoError(t, err)

	stats, err := f.ingestor.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.VectorStore.DocumentCount)
	assert.Equal(t, 1, stats.Indexing.Calendars)
	assert.Equal(t, 3, stats.Indexing.EventsTotal)
}

func TestNewIngestor_RequiredCollaborators(t *testing.T) {
	f := newFixture(t)
	builder := NewDocumentBuilder(builderConfig())

	_, err := NewIngestor(nil, builder, f.embedder, f.index, f.ledger)
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewIngestor(f.store, nil, f.embedder, f.index, f.ledger)
	assert.ErrorIs(t, err, ErrBuilderRequired)

	_, err = NewIngestor(f.store, builder, nil, f.index, f.ledger)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewIngestor(f.store, builder, f.embedder, nil, f.ledger)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewIngestor(f.store, builder, f.embedder, f.index, nil)
	assert.ErrorIs(t, err, ErrLedgerRequired)
}
