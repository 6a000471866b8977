package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/caldex/core"
)

// ListEventFiles returns every event log file under the store, one
// EventFile per (calendar, date) pair, in no particular order. A missing
// store root yields an empty result, not an error. Non-directory entries
// at the calendar level are skipped.
func (s *Store) ListEventFiles() ([]core.EventFile, error) {
	root := s.entitiesPath()

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list event store %s: %w", root, err)
	}

	var files []core.EventFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		calendarID := entry.Name()

		eventsDir := filepath.Join(root, calendarID, "events")
		eventEntries, err := os.ReadDir(eventsDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list events for calendar %s: %w", calendarID, err)
		}

		for _, ee := range eventEntries {
			if ee.IsDir() || !strings.HasSuffix(ee.Name(), ".jsonl") {
				continue
			}
			files = append(files, core.EventFile{
				CalendarID: calendarID,
				Date:       dateFromFileName(ee.Name()),
				Path:       filepath.Join(eventsDir, ee.Name()),
			})
		}
	}

	return files, nil
}
