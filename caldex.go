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

package caldex

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/caldex/ai"
	"github.com/poiesic/caldex/ai/mock"
	"github.com/poiesic/caldex/ai/openai"
	"github.com/poiesic/caldex/config"
	"github.com/poiesic/caldex/eventlog"
	"github.com/poiesic/caldex/ingest"
	"github.com/poiesic/caldex/ledger"
	"github.com/poiesic/caldex/vectorstore"
	"github.com/poiesic/caldex/vectorstore/badger"
)

// System wires the event store, embedder, vector index, and ledger into
// a ready-to-run ingestion pipeline.
type System struct {
	cfg      *config.Config
	store    *eventlog.Store
	embedder ai.Embedder
	index    vectorstore.Index
	ledger   *ledger.Ledger
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

// Open constructs the full pipeline from configuration. All collaborator
// initialization happens here; a failure aborts before any ledger
// mutation.
func Open(cfg *config.Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	index, err := newIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	store := eventlog.NewStore(cfg.EventStorePath(), cfg.ChannelType)
	builder := ingest.NewDocumentBuilder(cfg.Builder)

	ingestor, err := ingest.NewIngestor(store, builder, embedder, index, led,
		ingest.WithBatchSize(cfg.Embedding.BatchSize))
	if err != nil {
		index.Close()
		return nil, err
	}

	return &System{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		index:    index,
		ledger:   led,
		ingestor: ingestor,
		logger:   logger,
	}, nil
}

func newEmbedder(cfg *config.Config) (ai.Embedder, error) {
	aiConfig := ai.NewConfig(
		ai.WithProvider(ai.Provider(cfg.Embedding.Provider)),
		ai.WithHost(cfg.Embedding.Host),
		ai.WithModel(cfg.Embedding.Model),
		ai.WithAPIKey(cfg.Embedding.APIKey),
		ai.WithDimension(cfg.Embedding.Dimension),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, err
	}

	switch aiConfig.Provider {
	case ai.ProviderOpenAI:
		return openai.NewEmbedder(aiConfig)
	case ai.ProviderMock:
		return mock.NewMockEmbedderWithDimension(aiConfig.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %s", ai.ErrUnknownProvider, aiConfig.Provider)
	}
}

func newIndex(cfg *config.Config) (vectorstore.Index, error) {
	switch cfg.VectorStore.Type {
	case "", "badger":
		backend, err := badger.OpenBackend(cfg.VectorStorePath(), false)
		if err != nil {
			return nil, err
		}
		index, err := badger.NewIndex(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.VectorStore.Type)
	}
}

// Ingestor returns the configured ingestion pipeline.
func (s *System) Ingestor() *ingest.Ingestor {
	return s.ingestor
}

// Store returns the event store reader.
func (s *System) Store() *eventlog.Store {
	return s.store
}

// Embedder returns the configured embedder.
func (s *System) Embedder() ai.Embedder {
	return s.embedder
}

// Index returns the vector index.
func (s *System) Index() vectorstore.Index {
	return s.index
}

// Ledger returns the indexing ledger.
func (s *System) Ledger() *ledger.Ledger {
	return s.ledger
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.Config {
	return s.cfg
}

// Close releases the vector index and its backing store.
func (s *System) Close() error {
	if err := s.index.Close(); err != nil {
		s.logger.Error("error closing vector index", "err", err)
		return err
	}
	return nil
}
