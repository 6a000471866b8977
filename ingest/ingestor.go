// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/poiesic/caldex/ai"
	"github.com/poiesic/caldex/core"
	"github.com/poiesic/caldex/ledger"
	"github.com/poiesic/caldex/vectorstore"
)

const defaultBatchSize = 100

// EventSource provides read access to the calendar event store.
// eventlog.Store is the production implementation.
type EventSource interface {
	ListEventFiles() ([]core.EventFile, error)
	ReadEvents(path string) ([]*core.Event, error)
	CalendarInfo(calendarID string) (*core.CalendarInfo, error)
}

// Report aggregates the outcome of one ingestion run.
type Report struct {
	DocumentsProcessed int `json:"documents_processed"`
	DocumentsIndexed   int `json:"documents_indexed"`
	CalendarsProcessed int `json:"calendars_processed"`
	Errors             int `json:"errors"`
}

// StatsReport is the read-only status report for stats-only invocations.
type StatsReport struct {
	Indexing    *ledger.Stats `json:"indexing"`
	VectorStore struct {
		DocumentCount int `json:"document_count"`
	} `json:"vector_store"`
}

// Ingestor drives the event-file-to-vector-index pipeline. A run is
// single-threaded and run-to-completion; the ledger assumes a single
// writer, so callers must not run two ingestions concurrently.
type Ingestor struct {
	source    EventSource
	builder   *DocumentBuilder
	embedder  ai.Embedder
	index     vectorstore.Index
	ledger    *ledger.Ledger
	batchSize int
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor) error

// WithBatchSize sets the document batch size for embedding flushes.
// Default is 100.
func WithBatchSize(size int) Option {
	return func(ing *Ingestor) error {
		if size < 1 {
			size = 1
		}
		ing.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ing *Ingestor) error {
		if logger == nil {
			logger = slog.Default()
		}
		ing.logger = logger
		return nil
	}
}

// NewIngestor creates an ingestor over the given collaborators.
func NewIngestor(
	source EventSource,
	builder *DocumentBuilder,
	embedder ai.Embedder,
	index vectorstore.Index,
	led *ledger.Ledger,
	opts ...Option,
) (*Ingestor, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if builder == nil {
		return nil, ErrBuilderRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if led == nil {
		return nil, ErrLedgerRequired
	}

	ing := &Ingestor{
		source:    source,
		builder:   builder,
		embedder:  embedder,
		index:     index,
		ledger:    led,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(ing); optErr != nil {
			return nil, optErr
		}
	}

	return ing, nil
}

// IngestAll processes every event file in the store. With force set,
// already-indexed files are re-read and re-embedded; the index write
// still dedupes by id, so no duplicate documents result.
func (ing *Ingestor) IngestAll(ctx context.Context, force bool) (*Report, error) {
	ing.logger.Info("starting full ingestion", "force", force)

	files, err := ing.source.ListEventFiles()
	if err != nil {
		return nil, fmt.Errorf("listing event files: %w", err)
	}

	byCalendar := groupByCalendar(files)
	report := &Report{}

	for _, calendarID := range sortedKeys(byCalendar) {
		calFiles := byCalendar[calendarID]
		ing.logger.Info("processing calendar",
			"calendar_id", calendarID,
			"files", len(calFiles))

		processed, indexed, calErr := ing.ingestCalendar(ctx, calendarID, calFiles, force)
		report.DocumentsProcessed += processed
		report.DocumentsIndexed += indexed
		if calErr != nil {
			recordCalendarError()
			ing.logger.Error("calendar ingestion failed",
				"calendar_id", calendarID,
				"error", calErr)
			report.Errors++
			continue
		}
		report.CalendarsProcessed++
	}

	ing.logger.Info("full ingestion complete",
		"documents_processed", report.DocumentsProcessed,
		"documents_indexed", report.DocumentsIndexed,
		"calendars_processed", report.CalendarsProcessed,
		"errors", report.Errors)
	return report, nil
}

// IngestIncremental processes only files at or past each calendar's
// date watermark. The watermark boundary file is always reconsidered
// because records may have been appended to it after the watermark was
// set; the per-file ledger check is what prevents reprocessing, the
// date filter only narrows the scan window.
func (ing *Ingestor) IngestIncremental(ctx context.Context) (*Report, error) {
	ing.logger.Info("starting incremental ingestion")

	files, err := ing.source.ListEventFiles()
	if err != nil {
		return nil, fmt.Errorf("listing event files: %w", err)
	}

	byCalendar := groupByCalendar(files)

	// Calendars known to the ledger are considered even when they have
	// no files on disk this run.
	known := make(map[string]bool, len(byCalendar))
	for id := range byCalendar {
		known[id] = true
	}
	for _, id := range ing.ledger.CalendarIDs() {
		known[id] = true
	}

	report := &Report{}

	for _, calendarID := range sortedKeys(known) {
		watermark := ing.ledger.LastIndexedDate(calendarID)

		candidates := byCalendar[calendarID]
		if watermark != "" {
			filtered := candidates[:0:0]
			for _, f := range candidates {
				if f.Date >= watermark {
					filtered = append(filtered, f)
				}
			}
			candidates = filtered
		}
		if len(candidates) == 0 {
			continue
		}

		ing.logger.Info("processing calendar incrementally",
			"calendar_id", calendarID,
			"files", len(candidates),
			"watermark", watermark)

		processed, indexed, calErr := ing.ingestCalendar(ctx, calendarID, candidates, false)
		report.DocumentsProcessed += processed
		report.DocumentsIndexed += indexed
		if calErr != nil {
			recordCalendarError()
			ing.logger.Error("calendar ingestion failed",
				"calendar_id", calendarID,
				"error", calErr)
			report.Errors++
			continue
		}
		report.CalendarsProcessed++
	}

	ing.logger.Info("incremental ingestion complete",
		"documents_processed", report.DocumentsProcessed,
		"documents_indexed", report.DocumentsIndexed,
		"calendars_processed", report.CalendarsProcessed,
		"errors", report.Errors)
	return report, nil
}

// Stats reports ledger aggregates and the index document count without
// mutating any state.
func (ing *Ingestor) Stats(ctx context.Context) (*StatsReport, error) {
	count, err := ing.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting indexed documents: %w", err)
	}

	report := &StatsReport{Indexing: ing.ledger.Stats()}
	report.VectorStore.DocumentCount = count
	return report, nil
}

// fileProgress pairs an event file with the number of events read from
// it, pending a successful index write.
type fileProgress struct {
	file       core.EventFile
	eventCount int
}

// ingestCalendar runs the shared per-calendar procedure over candidate
// files: scan in date order, accumulate documents into batches, flush
// at the batch size, and finally advance the watermark to the maximum
// date among files considered this run.
func (ing *Ingestor) ingestCalendar(ctx context.Context, calendarID string, files []core.EventFile, force bool) (int, int, error) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Date != files[j].Date {
			return files[i].Date < files[j].Date
		}
		return files[i].Path < files[j].Path
	})

	info, err := ing.source.CalendarInfo(calendarID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading calendar metadata: %w", err)
	}

	processed := 0
	indexed := 0
	var batch []*core.Document
	var pending []fileProgress

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return processed, indexed, err
		}

		if !force && ing.ledger.IsFileIndexed(calendarID, file.Path) {
			ing.logger.Debug("skipping already indexed file", "path", file.Path)
			continue
		}

		events, readErr := ing.source.ReadEvents(file.Path)
		if readErr != nil {
			return processed, indexed, fmt.Errorf("reading %s: %w", file.Path, readErr)
		}
		if len(events) == 0 {
			continue
		}

		docs := ing.builder.BuildAll(events, info)
		if len(docs) == 0 {
			continue
		}

		batch = append(batch, docs...)
		pending = append(pending, fileProgress{file: file, eventCount: len(events)})

		if len(batch) >= ing.batchSize {
			added, flushErr := ing.flushBatch(ctx, calendarID, batch, pending)
			if flushErr != nil {
				return processed, indexed, flushErr
			}
			processed += len(batch)
			indexed += added
			batch = nil
			pending = nil
		}
	}

	if len(batch) > 0 {
		added, flushErr := ing.flushBatch(ctx, calendarID, batch, pending)
		if flushErr != nil {
			return processed, indexed, flushErr
		}
		processed += len(batch)
		indexed += added
	}

	// The watermark covers every file considered this run, including
	// files skipped as already indexed.
	if len(files) > 0 {
		maxDate := files[len(files)-1].Date
		if err := ing.ledger.UpdateLastIndexedDate(calendarID, maxDate); err != nil {
			return processed, indexed, fmt.Errorf("updating watermark: %w", err)
		}
	}

	recordDocumentsProcessed(processed)
	return processed, indexed, nil
}

// flushBatch embeds and indexes one batch. An embedding failure is
// logged and the batch abandoned without marking any file indexed, so
// its files are retried on the next run. An index-write failure is
// propagated. Files are marked indexed in the ledger strictly after
// the index write succeeds.
func (ing *Ingestor) flushBatch(ctx context.Context, calendarID string, batch []*core.Document, pending []fileProgress) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}

	vectors, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		recordEmbedError()
		ing.logger.Error("embedding batch failed, files left for retry",
			"calendar_id", calendarID,
			"documents", len(batch),
			"error", err)
		return 0, nil
	}

	added, err := ing.index.Add(ctx, batch, vectors)
	if err != nil {
		recordIndexError()
		return 0, fmt.Errorf("writing batch to index: %w", err)
	}

	for _, p := range pending {
		if err := ing.ledger.MarkFileIndexed(calendarID, p.file.Path, p.eventCount); err != nil {
			return added, fmt.Errorf("marking %s indexed: %w", p.file.Path, err)
		}
	}

	recordBatchFlushed()
	recordDocumentsIndexed(added)
	ing.logger.Debug("flushed batch",
		"calendar_id", calendarID,
		"documents", len(batch),
		"newly_indexed", added)
	return added, nil
}

func groupByCalendar(files []core.EventFile) map[string][]core.EventFile {
	byCalendar := make(map[string][]core.EventFile)
	for _, f := range files {
		byCalendar[f.CalendarID] = append(byCalendar[f.CalendarID], f)
	}
	return byCalendar
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
