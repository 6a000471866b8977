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

package badger

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/caldex/core"
	"github.com/poiesic/caldex/vectorstore"
)

// Index is a BadgerDB-backed vector index. Documents are stored as JSON
// records keyed by document id; queries scan the full record space and
// score candidates concurrently on a worker pool.
type Index struct {
	backend *Backend
	pool    *ants.Pool
	logger  *slog.Logger
}

var _ vectorstore.Index = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithPoolSize sets the worker pool size for query scoring.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(idx *Index) error {
		if size < 1 {
			size = 1
		}
		if idx.pool != nil {
			idx.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		idx.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
		return nil
	}
}

// NewIndex creates a vector index on top of an open backend.
func NewIndex(backend *Backend, opts ...Option) (*Index, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		backend: backend,
		pool:    pool,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(idx); optErr != nil {
			idx.pool.Release()
			return nil, optErr
		}
	}

	return idx, nil
}

// Add upserts documents with their vectors. Existence is checked inside
// the same write transaction as the insert, so re-adding a batch leaves
// already-stored ids untouched. Returns the number of newly added
// documents.
func (idx *Index) Add(ctx context.Context, docs []*core.Document, vectors [][]float32) (int, error) {
	if len(docs) != len(vectors) {
		return 0, vectorstore.ErrCountMismatch
	}
	if len(docs) == 0 {
		return 0, nil
	}

	added := 0
	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		for i, doc := range docs {
			key := makeDocKey(doc.ID)
			_, getErr := tx.Get(key)
			if getErr == nil {
				continue
			}
			if !errors.Is(getErr, badger.ErrKeyNotFound) {
				return getErr
			}

			data, marshalErr := vectorstore.MarshalRecord(doc, vectors[i])
			if marshalErr != nil {
				return marshalErr
			}
			if setErr := tx.Set(key, data); setErr != nil {
				return setErr
			}
			added++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}

	return added, nil
}

// Exists reports which of the given ids are present in the index.
func (idx *Index) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	present := make(map[string]bool, len(ids))
	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			_, getErr := tx.Get(makeDocKey(id))
			if getErr == nil {
				present[id] = true
				continue
			}
			if errors.Is(getErr, badger.ErrKeyNotFound) {
				present[id] = false
				continue
			}
			return getErr
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return present, nil
}

// Count returns the total number of documents in the index.
func (idx *Index) Count(ctx context.Context) (int, error) {
	count := 0
	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Query returns up to limit documents ranked by similarity to the given
// vector. Candidates are decoded in a read transaction and scored
// concurrently; similarity is the dot product, so vectors produced by
// a normalizing embedder yield cosine similarity.
func (idx *Index) Query(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]*vectorstore.QueryResult, error) {
	var records []*vectorstore.Record

	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var record *vectorstore.Record
			valErr := item.Value(func(val []byte) error {
				var err error
				record, err = vectorstore.UnmarshalRecord(val)
				return err
			})
			if valErr != nil {
				return valErr
			}
			if record == nil || len(record.Vector) == 0 {
				continue
			}
			if !matchesFilter(record.Metadata, filter) {
				continue
			}
			records = append(records, record)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*vectorstore.QueryResult
	)

	for _, record := range records {
		record := record
		wg.Add(1)
		submitErr := idx.pool.Submit(func() {
			defer wg.Done()
			score := dotProduct(vector, record.Vector)
			mu.Lock()
			results = append(results, &vectorstore.QueryResult{
				Document: record.Document(),
				Score:    score,
			})
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, submitErr
		}
	}
	wg.Wait()

	slices.SortFunc(results, func(a, b *vectorstore.QueryResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Close releases the scoring pool and closes the backend. Closing an
// already-closed index is a no-op.
func (idx *Index) Close() error {
	if idx.backend.IsClosed() {
		return nil
	}
	idx.pool.Release()
	return idx.backend.Close()
}

// matchesFilter reports whether metadata satisfies every filter entry.
// A filter value that is a slice matches when the metadata value equals
// any of its elements.
func matchesFilter(metadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if candidates, isList := want.([]any); isList {
			matched := false
			for _, candidate := range candidates {
				if got == candidate {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
