package ingest

import "errors"

var (
	// ErrSourceRequired indicates an ingestor was created without an event source.
	ErrSourceRequired = errors.New("event source is required")

	// ErrBuilderRequired indicates an ingestor was created without a document builder.
	ErrBuilderRequired = errors.New("document builder is required")

	// ErrEmbedderRequired indicates an ingestor was created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrIndexRequired indicates an ingestor was created without a vector index.
	ErrIndexRequired = errors.New("vector index is required")

	// ErrLedgerRequired indicates an ingestor was created without a ledger.
	ErrLedgerRequired = errors.New("ledger is required")
)
