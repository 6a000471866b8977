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


package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// VectorStoreConfig selects and locates the vector index backend.
type VectorStoreConfig struct {
	Type string `yaml:"type" env:"VECTOR_STORE_TYPE"`
	Path string `yaml:"path" env:"VECTOR_STORE_PATH"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Host      string `yaml:"host" env:"EMBEDDING_HOST"`
	Model     string `yaml:"model" env:"EMBEDDING_MODEL"`
	APIKey    string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BatchSize int    `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE"`
	Dimension int    `yaml:"dimension" env:"EMBEDDING_DIMENSION"`
}

// BuilderConfig controls which optional fields the document builder
// includes in both content and metadata.
type BuilderConfig struct {
	IncludeAttendees     bool `yaml:"include_attendees"`
	IncludeLocation      bool `yaml:"include_location"`
	IncludeDescription   bool `yaml:"include_description"`
	MaxDescriptionLength int  `yaml:"max_description_length"`
}

// IndexingConfig controls ingestion mode and the watch loop.
type IndexingConfig struct {
	Mode             string        `yaml:"mode" env:"INDEXING_MODE"`
	CheckInterval    time.Duration `yaml:"check_interval" env:"INDEXING_CHECK_INTERVAL"`
	ReindexOnStartup bool          `yaml:"reindex_on_startup"`
}

// Config is the top-level caldex configuration, loaded from a YAML file
// with environment variable overrides.
type Config struct {
	DataRoot    string `yaml:"data_root" env:"DATA_ROOT"`
	InstanceID  string `yaml:"instance_id" env:"INSTANCE_ID"`
	ChannelType string `yaml:"channel_type" env:"CHANNEL_TYPE"`

	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Builder     BuilderConfig     `yaml:"builder"`
	Indexing    IndexingConfig    `yaml:"indexing"`

	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL"`
	HealthPort int    `yaml:"health_port" env:"HEALTH_PORT"`
}

// Default returns a Config with sensible defaults for a local deployment.
func Default() *Config {
	return &Config{
		DataRoot:    "/data/channels",
		InstanceID:  "personal",
		ChannelType: "calendar",
		VectorStore: VectorStoreConfig{
			Type: "badger",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Host:      "http://localhost:11434/v1",
			Model:     "embeddinggemma",
			BatchSize: 100,
			Dimension: 384,
		},
		Builder: BuilderConfig{
			IncludeAttendees:     true,
			IncludeLocation:      true,
			IncludeDescription:   true,
			MaxDescriptionLength: 2000,
		},
		Indexing: IndexingConfig{
			Mode:          "incremental",
			CheckInterval: 5 * time.Minute,
		},
		LogLevel:   "info",
		HealthPort: 8081,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment variable overrides.
// A non-empty path that does not exist is an error; the caller named a
// file, so a typo must not silently fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if strings.HasPrefix(cfg.DataRoot, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand data root: %w", err)
		}
		cfg.DataRoot = filepath.Join(home, strings.TrimPrefix(cfg.DataRoot, "~"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return errors.New("config: data_root is required")
	}
	if c.InstanceID == "" {
		return errors.New("config: instance_id is required")
	}
	if c.ChannelType == "" {
		return errors.New("config: channel_type is required")
	}
	if c.Embedding.BatchSize <= 0 {
		return errors.New("config: embedding.batch_size must be greater than 0")
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("config: embedding.dimension must be greater than 0")
	}
	if c.Builder.MaxDescriptionLength <= 0 {
		return errors.New("config: builder.max_description_length must be greater than 0")
	}
	switch c.Indexing.Mode {
	case "full", "incremental":
	default:
		return fmt.Errorf("config: unknown indexing mode %q", c.Indexing.Mode)
	}
	return nil
}

// EventStorePath is the root of the append-only event store for this
// channel and instance.
func (c *Config) EventStorePath() string {
	return filepath.Join(c.DataRoot, c.ChannelType, c.InstanceID)
}

// StatePath is the root of caldex-owned state for this deployment.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataRoot, "caldex", c.ChannelType, c.InstanceID)
}

// LedgerPath is the location of the indexing ledger file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StatePath(), "state", "indexing_state.json")
}

// VectorStorePath is the location of the vector index, honoring an
// explicit override from the vector_store section.
func (c *Config) VectorStorePath() string {
	if c.VectorStore.Path != "" {
		return c.VectorStore.Path
	}
	return filepath.Join(c.StatePath(), "vector_store")
}
