package logtail

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/five82/vmlog/internal/logevent"
)

const (
	initialBuffer = 64 * 1024
	maxLineBytes  = 1 << 20
)

// Line is one non-blank input line and its 1-based position in the file.
type Line struct {
	No   int
	Text string
}

// Read returns at most maxLines non-blank lines from the end of the file at
// path, oldest first. maxLines <= 0 returns every non-blank line.
func Read(path string, maxLines int) ([]Line, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer file.Close()
	return Last(file, maxLines)
}

// Last is Read over an arbitrary reader.
func Last(r io.Reader, maxLines int) ([]Line, error) {
	var ring []Line
	if maxLines > 0 {
		ring = make([]Line, maxLines)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBuffer), maxLineBytes)
	count, idx, no := 0, 0, 0
	for scanner.Scan() {
		no++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line := Line{No: no, Text: text}
		if maxLines <= 0 {
			ring = append(ring, line)
			count++
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	if maxLines <= 0 || count < maxLines {
		return ring[:count], nil
	}
	lines := make([]Line, count)
	for i := 0; i < count; i++ {
		lines[i] = ring[(idx+i)%maxLines]
	}
	return lines, nil
}

// Events decodes the last maxLines events of a JSON-lines file. Errors name
// the offending line.
func Events(path string, maxLines int) ([]logevent.LogEvent, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	events := make([]logevent.LogEvent, 0, len(lines))
	for _, line := range lines {
		evt, err := logevent.Decode([]byte(line.Text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line.No, err)
		}
		events = append(events, evt)
	}
	return events, nil
}
