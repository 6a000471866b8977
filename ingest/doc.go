// Package ingest orchestrates the calendar indexing pipeline: it walks
// the event store, derives retrieval documents, embeds them in batches,
// upserts them into the vector index, and checkpoints progress in the
// ledger. Index writes always precede ledger mutations, so a crash can
// only cause reprocessing, never lost documents.
package ingest
