package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/caldex/core"
)

// maxLineSize bounds a single event record line. Descriptions are
// truncated downstream, but raw payloads can be large.
const maxLineSize = 1 << 20

// ReadEvents decodes every record line of one event log file. Each call
// re-opens the file and reads from the start; the reader holds no
// cross-call state. A malformed or over-long line is logged and skipped
// without aborting the remaining lines. A missing file yields an empty
// result, not an error.
func (s *Store) ReadEvents(path string) ([]*core.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("event file does not exist", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open event file %s: %w", path, err)
	}
	defer f.Close()

	var events []*core.Event

	reader := bufio.NewReaderSize(f, 64*1024)
	lineNum := 0
	for {
		raw, overLong, readErr := readLine(reader)
		if readErr == io.EOF && len(raw) == 0 && !overLong {
			break
		}
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("read event file %s: %w", path, readErr)
		}
		lineNum++

		if overLong {
			s.logger.Warn("skipping over-long event record", "path", path, "line", lineNum, "limit", maxLineSize)
		} else {
			line := strings.TrimSpace(string(raw))
			if line != "" {
				event := &core.Event{}
				if err := json.Unmarshal([]byte(line), event); err != nil {
					s.logger.Warn("failed to parse event record", "path", path, "line", lineNum, "err", err)
				} else {
					events = append(events, event)
				}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	return events, nil
}

// readLine assembles the next line, reporting whether it exceeded
// maxLineSize. An over-long line is consumed to its end so the reader
// stays positioned on the next record, but its content is discarded.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	overLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if !overLong {
			if len(line)+len(chunk) > maxLineSize {
				overLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err != nil {
			return line, overLong, err
		}
		if !isPrefix {
			return line, overLong, nil
		}
	}
}
