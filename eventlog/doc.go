// Package eventlog reads the append-only calendar event store: it
// enumerates date-scoped JSONL event files per calendar, decodes their
// records line by line with per-line error tolerance, and loads optional
// per-calendar metadata. Ordering of files is the caller's concern.
package eventlog
