package vectorstore

import (
	"context"

	"github.com/poiesic/caldex/core"
)

// QueryResult is one ranked hit from a similarity query.
type QueryResult struct {
	Document *core.Document
	Score    float32
}

// Index stores embedded documents and answers similarity queries.
// Implementations must make Add idempotent by document id: ids already
// present are left untouched, so re-adding a batch never duplicates
// documents.
type Index interface {
	// Add upserts documents with their embedding vectors. Existing ids
	// are checked immediately before the write and skipped; only
	// genuinely new documents are stored. Returns the number of newly
	// added documents. docs and vectors must have equal length.
	Add(ctx context.Context, docs []*core.Document, vectors [][]float32) (int, error)

	// Exists reports which of the given ids are present in the index.
	Exists(ctx context.Context, ids []string) (map[string]bool, error)

	// Count returns the total number of documents in the index.
	Count(ctx context.Context) (int, error)

	// Query returns up to limit documents ranked by similarity to the
	// given vector, highest score first. A non-nil filter restricts
	// results to documents whose metadata matches every filter entry.
	Query(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]*QueryResult, error)

	// Close releases resources held by the index.
	Close() error
}
