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

package ingest

import (
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/caldex/config"
	"github.com/poiesic/caldex/core"
)

const defaultEventTitle = "Untitled Event"

// DocumentBuilder turns raw calendar events into retrieval documents.
// Building is deterministic: two builds of the same event differ only
// in the indexed_at metadata timestamp.
type DocumentBuilder struct {
	cfg    config.BuilderConfig
	logger *slog.Logger
	now    func() time.Time
}

// BuilderOption configures a DocumentBuilder.
type BuilderOption func(*DocumentBuilder)

// WithBuilderLogger sets a custom logger.
// Default is slog.Default().
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *DocumentBuilder) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// NewDocumentBuilder creates a builder with the given content rules.
func NewDocumentBuilder(cfg config.BuilderConfig, opts ...BuilderOption) *DocumentBuilder {
	b := &DocumentBuilder{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build derives the retrieval document for one event. info may be nil
// when the calendar has no metadata record.
func (b *DocumentBuilder) Build(event *core.Event, info *core.CalendarInfo) (*core.Document, error) {
	id, err := event.DocumentID()
	if err != nil {
		return nil, err
	}

	env := &event.Envelope
	body := &event.Body

	var parts []string

	title := body.Text
	if title == "" {
		title = defaultEventTitle
	}
	parts = append(parts, "Event: "+title, "")

	if b.cfg.IncludeDescription {
		description := strings.TrimSpace(body.Description)
		if description != "" {
			parts = append(parts, "Description: "+truncate(description, b.cfg.MaxDescriptionLength), "")
		}
	}

	if body.StartTime != "" {
		if body.AllDay {
			datePart, _, _ := strings.Cut(body.StartTime, "T")
			parts = append(parts, "Date: "+datePart+" (All Day)")
		} else {
			parts = append(parts, "Starts: "+body.StartTime)
			if body.EndTime != "" {
				parts = append(parts, "Ends: "+body.EndTime)
			}
		}
	}

	location := strings.TrimSpace(body.Location)
	if b.cfg.IncludeLocation && location != "" {
		parts = append(parts, "Location: "+location)
	}

	if b.cfg.IncludeAttendees {
		if names := participantNames(env.Participants); len(names) > 0 {
			parts = append(parts, "Participants: "+strings.Join(names, ", "))
		}
	}

	label := env.ContextLabel
	if label == "" && info != nil {
		label = info.Summary
	}
	if label != "" {
		parts = append(parts, "Calendar: "+label)
	}

	status := body.Status
	if status == "" {
		status = "confirmed"
	}
	if status != "confirmed" {
		parts = append(parts, "Status: "+status)
	}

	if body.Recurring {
		parts = append(parts, "(Recurring Event)")
	}

	sourceChannel := env.SourceChannel
	if sourceChannel == "" {
		sourceChannel = "calendar"
	}

	metadata := map[string]any{
		"source_channel":  sourceChannel,
		"source_instance": env.SourceInstance,
		"calendar_id":     env.ContextID,
		"calendar_name":   label,
		"event_id":        env.RemoteID,
		"event_type":      "calendar_event",
		"start_time":      body.StartTime,
		"end_time":        body.EndTime,
		"is_all_day":      body.AllDay,
		"status":          status,
		"recurring":       body.Recurring,
	}

	if b.cfg.IncludeLocation && location != "" {
		metadata["location"] = location
	}

	if env.Sender != nil {
		organizer := env.Sender.Email
		if organizer == "" {
			organizer = env.Sender.ID
		}
		metadata["organizer"] = organizer
		metadata["organizer_name"] = env.Sender.DisplayName
	}

	if b.cfg.IncludeAttendees {
		if emails := participantEmails(env.Participants); len(emails) > 0 {
			metadata["attendees"] = emails
		}
	}

	metadata["indexed_at"] = b.now().UTC().Format(time.RFC3339)

	if env.Timestamp != "" {
		metadata["event_timestamp"] = env.Timestamp
	}

	return &core.Document{
		ID:       id,
		Content:  strings.Join(parts, "\n"),
		Metadata: metadata,
	}, nil
}

// BuildAll builds documents for a batch of events. An event that fails
// to build is logged and skipped; the rest of the batch continues.
func (b *DocumentBuilder) BuildAll(events []*core.Event, info *core.CalendarInfo) []*core.Document {
	docs := make([]*core.Document, 0, len(events))
	for _, event := range events {
		doc, err := b.Build(event, info)
		if err != nil {
			recordEventSkipped()
			b.logger.Warn("skipping event that failed to build",
				"message_id", event.Envelope.MessageID,
				"error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// truncate caps text at max characters, appending a marker when cut.
// The limit counts runes, not bytes, so multi-byte text is never split
// mid character.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// participantNames resolves display names, falling back to email.
func participantNames(participants []core.Person) []string {
	var names []string
	for _, p := range participants {
		name := p.DisplayName
		if name == "" {
			name = p.Email
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// participantEmails collects non-empty participant emails.
func participantEmails(participants []core.Person) []string {
	var emails []string
	for _, p := range participants {
		if p.Email != "" {
			emails = append(emails, p.Email)
		}
	}
	return emails
}
