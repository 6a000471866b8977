package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngest holds Prometheus metrics for the ingestion pipeline.
type metricsIngest struct {
	once sync.Once

	documentsProcessed prometheus.Counter
	documentsIndexed   prometheus.Counter
	batchesFlushed     prometheus.Counter
	embedErrors        prometheus.Counter
	indexErrors        prometheus.Counter
	calendarErrors     prometheus.Counter
	eventsSkipped      prometheus.Counter
}

var ingMetrics metricsIngest

func (m *metricsIngest) init() {
	m.once.Do(func() {
		m.documentsProcessed = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_documents_processed_total", Help: "Documents built from event files"})
		m.documentsIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_documents_indexed_total", Help: "Documents newly written to the vector index"})
		m.batchesFlushed = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_batches_flushed_total", Help: "Batches embedded and written"})
		m.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_embed_errors_total", Help: "Embedding call failures"})
		m.indexErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_index_errors_total", Help: "Vector index write failures"})
		m.calendarErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_calendar_errors_total", Help: "Calendars that failed during a run"})
		m.eventsSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "caldex_events_skipped_total", Help: "Events skipped by the document builder"})

		prometheus.MustRegister(
			m.documentsProcessed, m.documentsIndexed,
			m.batchesFlushed,
			m.embedErrors, m.indexErrors, m.calendarErrors,
			m.eventsSkipped,
		)
	})
}

// record helpers - used by the ingestor for metrics tracking
func recordDocumentsProcessed(n int) {
	ingMetrics.init()
	ingMetrics.documentsProcessed.Add(float64(n))
}

func recordDocumentsIndexed(n int) {
	ingMetrics.init()
	ingMetrics.documentsIndexed.Add(float64(n))
}

func recordBatchFlushed() { ingMetrics.init(); ingMetrics.batchesFlushed.Inc() }

func recordEmbedError() { ingMetrics.init(); ingMetrics.embedErrors.Inc() }

func recordIndexError() { ingMetrics.init(); ingMetrics.indexErrors.Inc() }

func recordCalendarError() { ingMetrics.init(); ingMetrics.calendarErrors.Inc() }

func recordEventSkipped() { ingMetrics.init(); ingMetrics.eventsSkipped.Inc() }
