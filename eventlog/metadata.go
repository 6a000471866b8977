package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/caldex/core"
)

// CalendarInfo loads the metadata record for one calendar. A missing or
// unparseable record yields nil; the calendar is still indexable without it.
func (s *Store) CalendarInfo(calendarID string) (*core.CalendarInfo, error) {
	path := s.contextPath(calendarID)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read calendar metadata %s: %w", path, err)
	}

	info := &core.CalendarInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		s.logger.Warn("failed to parse calendar metadata", "path", path, "err", err)
		return nil, nil
	}
	return info, nil
}
