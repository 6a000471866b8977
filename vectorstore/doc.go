// Package vectorstore defines the vector index collaborator used by the
// ingestion pipeline and search: an idempotent-by-id document store with
// existence checks, counting, and similarity queries. The BadgerDB-backed
// implementation lives in vectorstore/badger.
package vectorstore
