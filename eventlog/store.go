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


package eventlog

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Store reads the append-only event store layout:
//
//	<root>/history/entities/<channel>/<calendar_id>/events/<YYYY-MM-DD>.jsonl
//	<root>/history/entities/<channel>/<calendar_id>/context.json
//
// The store is read-only; files are produced by an external collector.
type Store struct {
	root        string
	channelType string
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewStore creates a Store rooted at the given event store directory.
func NewStore(root, channelType string, opts ...Option) *Store {
	s := &Store{
		root:        root,
		channelType: channelType,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entitiesPath is the directory holding one subdirectory per calendar.
func (s *Store) entitiesPath() string {
	return filepath.Join(s.root, "history", "entities", s.channelType)
}

// EventFilePath maps a calendar and date to its event log file.
func (s *Store) EventFilePath(calendarID, date string) string {
	return filepath.Join(s.entitiesPath(), calendarID, "events", date+".jsonl")
}

// contextPath maps a calendar to its metadata record file.
func (s *Store) contextPath(calendarID string) string {
	return filepath.Join(s.entitiesPath(), calendarID, "context.json")
}

// dateFromFileName extracts the date key from an event file base name.
// The format is not validated; the key is treated as an opaque,
// lexicographically comparable string.
func dateFromFileName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
