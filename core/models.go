package core

import "encoding/json"

// Person identifies an event participant or organizer.
type Person struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Envelope carries the identity, timing, and participant information
// common to every event record in the log.
type Envelope struct {
	SourceChannel  string   `json:"source_channel"`
	SourceInstance string   `json:"source_instance"`
	ContextType    string   `json:"context_type"`
	ContextID      string   `json:"context_id"`
	ContextLabel   string   `json:"context_label"`
	MessageID      string   `json:"message_id"`
	RemoteID       string   `json:"remote_id"`
	Timestamp      string   `json:"ts"`
	Direction      string   `json:"direction,omitempty"`
	Sender         *Person  `json:"sender,omitempty"`
	Participants   []Person `json:"participants,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Body holds the calendar-specific content fields of an event record.
type Body struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	AllDay      bool   `json:"all_day,omitempty"`
	Status      string `json:"status,omitempty"`
	Recurring   bool   `json:"recurring,omitempty"`
}

// Event is one decoded line from an event log file.
type Event struct {
	Envelope Envelope        `json:"envelope"`
	Body     Body            `json:"body"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Document is a retrieval-ready text document derived from an Event.
// It is stateless and recomputable at any time from its source event;
// only the indexed_at metadata field varies between builds.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// CalendarInfo is the optional per-calendar metadata record stored
// alongside a calendar's event files.
type CalendarInfo struct {
	CalendarID  string `json:"calendar_id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

// EventFile locates one date-scoped event log file within a calendar.
// Date is the file's base name, an ISO calendar date (YYYY-MM-DD) whose
// lexicographic order is its chronological order.
type EventFile struct {
	CalendarID string
	Date       string
	Path       string
}
