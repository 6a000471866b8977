package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEventFile(t *testing.T, store *Store, calendarID, date string, lines ...string) string {
	t.Helper()

	path := store.EventFilePath(calendarID, date)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListEventFiles_MissingRoot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), "calendar")

	files, err := store.ListEventFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListEventFiles(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")

	writeEventFile(t, store, "primary", "2025-11-20", `{}`)
	writeEventFile(t, store, "primary", "2025-11-21", `{}`)
	writeEventFile(t, store, "work", "2025-11-20", `{}`)

	// Stray regular file at the calendar level is skipped.
	stray := filepath.Join(store.entitiesPath(), "README.txt")
	require.NoError(t, os.WriteFile(stray, []byte("not a calendar"), 0o644))

	// Calendar directory without an events subdirectory is skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(store.entitiesPath(), "empty"), 0o755))

	// Non-jsonl file inside events is skipped.
	junk := filepath.Join(store.entitiesPath(), "primary", "events", "notes.txt")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o644))

	files, err := store.ListEventFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)

	byCalendar := map[string][]string{}
	for _, f := range files {
		byCalendar[f.CalendarID] = append(byCalendar[f.CalendarID], f.Date)
	}
	assert.ElementsMatch(t, []string{"2025-11-20", "2025-11-21"}, byCalendar["primary"])
	assert.ElementsMatch(t, []string{"2025-11-20"}, byCalendar["work"])
}

func TestReadEvents_MissingFile(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")

	events, err := store.ReadEvents(store.EventFilePath("primary", "2025-11-20"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadEvents_TolerantOfMalformedLines(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	path := writeEventFile(t, store, "primary", "2025-11-20",
		`{"envelope":{"message_id":"calendar:primary:e1","context_id":"primary"},"body":{"text":"Standup"}}`,
		`{"envelope":{"message_id":"calendar:primary:e2"`, // truncated
		``,
		`{"envelope":{"message_id":"calendar:primary:e3","context_id":"primary"},"body":{"text":"Review"}}`,
	)

	events, err := store.ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Body.Text)
	assert.Equal(t, "Review", events[1].Body.Text)
}

func TestReadEvents_SkipsOverLongLines(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	path := writeEventFile(t, store, "primary", "2025-11-20",
		`{"envelope":{"message_id":"calendar:primary:e1","context_id":"primary"},"body":{"text":"Standup"}}`,
		`{"body":{"text":"`+strings.Repeat("x", 2<<20)+`"}}`, // past the line limit
		`{"envelope":{"message_id":"calendar:primary:e2","context_id":"primary"},"body":{"text":"Review"}}`,
	)

	events, err := store.ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Body.Text)
	assert.Equal(t, "Review", events[1].Body.Text)
}

func TestReadEvents_OverLongOnlyLine(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	path := writeEventFile(t, store, "primary", "2025-11-20",
		`{"body":{"text":"`+strings.Repeat("x", 2<<20)+`"}}`,
	)

	events, err := store.ReadEvents(path)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadEvents_Restartable(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	path := writeEventFile(t, store, "primary", "2025-11-20",
		`{"envelope":{"message_id":"calendar:primary:e1","context_id":"primary"},"body":{"text":"Standup"}}`,
	)

	first, err := store.ReadEvents(path)
	require.NoError(t, err)
	second, err := store.ReadEvents(path)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestCalendarInfo(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	writeEventFile(t, store, "primary", "2025-11-20", `{}`)

	ctxPath := store.contextPath("primary")
	require.NoError(t, os.WriteFile(ctxPath, []byte(`{"calendar_id":"primary","summary":"Primary Calendar"}`), 0o644))

	info, err := store.CalendarInfo("primary")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Primary Calendar", info.Summary)
}

func TestCalendarInfo_Missing(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")

	info, err := store.CalendarInfo("primary")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCalendarInfo_Corrupt(t *testing.T) {
	store := NewStore(t.TempDir(), "calendar")
	writeEventFile(t, store, "primary", "2025-11-20", `{}`)

	ctxPath := store.contextPath("primary")
	require.NoError(t, os.WriteFile(ctxPath, []byte(`{nope`), 0o644))

	info, err := store.CalendarInfo("primary")
	require.NoError(t, err)
	assert.Nil(t, info)
}
