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

package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Version identifies the persisted ledger format.
const Version = "1.0.0"

// FileEntry records one indexed event file.
type FileEntry struct {
	EventCount int    `json:"event_count"`
	IndexedAt  string `json:"indexed_at"`
}

// CalendarEntry tracks indexing progress for one calendar.
type CalendarEntry struct {
	FirstIndexedAt  string                `json:"first_indexed_at,omitempty"`
	LastIndexedAt   string                `json:"last_indexed_at,omitempty"`
	LastIndexedDate string                `json:"last_indexed_date,omitempty"`
	IndexedFiles    map[string]*FileEntry `json:"indexed_files"`
}

// State is the persisted ledger structure. It is loaded wholesale at
// startup and rewritten wholesale on every mutation.
type State struct {
	Version   string                    `json:"version"`
	CreatedAt string                    `json:"created_at"`
	UpdatedAt string                    `json:"updated_at"`
	Calendars map[string]*CalendarEntry `json:"calendars"`
}

// Stats aggregates progress across all calendars.
type Stats struct {
	Calendars   int                      `json:"calendars"`
	FilesTotal  int                      `json:"files_total"`
	EventsTotal int                      `json:"events_total"`
	PerCalendar map[string]CalendarStats `json:"per_calendar"`
}

// CalendarStats is the per-calendar slice of Stats.
type CalendarStats struct {
	Files           int    `json:"files"`
	Events          int    `json:"events"`
	LastIndexedDate string `json:"last_indexed_date,omitempty"`
}

// Ledger is the durable record of which event files have been indexed.
// Every mutating call rewrites the whole file synchronously before
// returning, so a crash never loses more than the in-flight mutation.
// Not safe for concurrent writers.
type Ledger struct {
	path   string
	state  *State
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
	}
}

// Open loads the ledger at path, creating an empty one if the file does
// not exist. A file that exists but cannot be parsed is logged and
// replaced in memory with an empty state; the corrupt file is only
// overwritten on the next mutation.
func Open(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading ledger: %w", err)
		}
		l.state = newState(l.now())
		if saveErr := l.save(); saveErr != nil {
			return nil, saveErr
		}
		return l, nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		l.logger.Warn("ledger file is corrupt, reinitializing",
			"path", path,
			"error", err)
		l.state = newState(l.now())
		return l, nil
	}
	if state.Calendars == nil {
		state.Calendars = make(map[string]*CalendarEntry)
	}
	l.state = &state
	return l, nil
}

func newState(now time.Time) *State {
	ts := now.UTC().Format(time.RFC3339)
	return &State{
		Version:   Version,
		CreatedAt: ts,
		UpdatedAt: ts,
		Calendars: make(map[string]*CalendarEntry),
	}
}

// Path returns the location of the persisted ledger file.
func (l *Ledger) Path() string {
	return l.path
}

// IsFileIndexed reports whether the given file has been recorded as
// indexed for the calendar.
func (l *Ledger) IsFileIndexed(calendarID, fileKey string) bool {
	entry, ok := l.state.Calendars[calendarID]
	if !ok {
		return false
	}
	_, indexed := entry.IndexedFiles[fileKey]
	return indexed
}

// MarkFileIndexed records a file as indexed with its event count and
// persists the ledger before returning. Calling it again with the same
// arguments is a no-op beyond refreshing the entry's timestamp.
func (l *Ledger) MarkFileIndexed(calendarID, fileKey string, eventCount int) error {
	now := l.now().UTC().Format(time.RFC3339)
	entry := l.calendar(calendarID, now)
	entry.IndexedFiles[fileKey] = &FileEntry{
		EventCount: eventCount,
		IndexedAt:  now,
	}
	entry.LastIndexedAt = now
	return l.save()
}

// UpdateLastIndexedDate overwrites the calendar's date watermark and
// persists the ledger. The caller passes the maximum date itself; no
// max is taken here.
func (l *Ledger) UpdateLastIndexedDate(calendarID, date string) error {
	now := l.now().UTC().Format(time.RFC3339)
	entry := l.calendar(calendarID, now)
	entry.LastIndexedDate = date
	entry.LastIndexedAt = now
	return l.save()
}

// LastIndexedDate returns the calendar's watermark, or "" when the
// calendar has none.
func (l *Ledger) LastIndexedDate(calendarID string) string {
	entry, ok := l.state.Calendars[calendarID]
	if !ok {
		return ""
	}
	return entry.LastIndexedDate
}

// CalendarIDs returns the ids of all calendars in the ledger, sorted.
func (l *Ledger) CalendarIDs() []string {
	ids := make([]string, 0, len(l.state.Calendars))
	for id := range l.state.Calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats aggregates file and event counts across all calendars.
func (l *Ledger) Stats() *Stats {
	stats := &Stats{
		Calendars:   len(l.state.Calendars),
		PerCalendar: make(map[string]CalendarStats, len(l.state.Calendars)),
	}
	for id, entry := range l.state.Calendars {
		events := 0
		for _, file := range entry.IndexedFiles {
			events += file.EventCount
		}
		stats.FilesTotal += len(entry.IndexedFiles)
		stats.EventsTotal += events
		stats.PerCalendar[id] = CalendarStats{
			Files:           len(entry.IndexedFiles),
			Events:          events,
			LastIndexedDate: entry.LastIndexedDate,
		}
	}
	return stats
}

func (l *Ledger) calendar(calendarID, now string) *CalendarEntry {
	entry, ok := l.state.Calendars[calendarID]
	if !ok {
		entry = &CalendarEntry{
			FirstIndexedAt: now,
			IndexedFiles:   make(map[string]*FileEntry),
		}
		l.state.Calendars[calendarID] = entry
	}
	if entry.IndexedFiles == nil {
		entry.IndexedFiles = make(map[string]*FileEntry)
	}
	return entry
}

// save rewrites the entire ledger file. The state is written to a
// temporary file, synced, and renamed over the target so a crash mid
// write never leaves a truncated ledger behind.
func (l *Ledger) save() error {
	l.state.UpdatedAt = l.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
