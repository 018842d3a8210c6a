package logevent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Level is the ordered severity of a captured event.
type Level uint8

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"UNKNOWN", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the upper-case level name.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return levelNames[LevelUnknown]
}

// ParseLevel converts a level name into a Level. Matching is case-insensitive
// and tolerates surrounding whitespace. "WARNING" is accepted as WARN.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelUnknown, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized names decode
// to LevelUnknown rather than failing so foreign producers can still be captured.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, _ := ParseLevel(string(text))
	*l = parsed
	return nil
}

// LogEvent is one captured log record. Events are never mutated after the
// buffer accepts them.
type LogEvent struct {
	Seq        uint64            `json:"seq,omitempty"`
	Timestamp  time.Time         `json:"ts"`
	Logger     string            `json:"logger"`
	Level      Level             `json:"level"`
	Message    string            `json:"msg"`
	Trace      []string          `json:"trace,omitempty"`
	Properties map[string]string `json:"props,omitempty"`
}

// Clone returns a deep copy so the caller's slices and maps are not shared
// with the stored event.
func (e LogEvent) Clone() LogEvent {
	clone := e
	if e.Trace != nil {
		clone.Trace = append([]string(nil), e.Trace...)
	}
	if e.Properties != nil {
		props := make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = v
		}
		clone.Properties = props
	}
	return clone
}

// HasTrace reports whether the event carries exception trace lines.
func (e LogEvent) HasTrace() bool {
	return len(e.Trace) > 0
}

// LastWithTrace returns the newest event in events (ordered oldest first)
// that carries a trace.
func LastWithTrace(events []LogEvent) (LogEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].HasTrace() {
			return events[i], true
		}
	}
	return LogEvent{}, false
}

// AtLeast returns a filter accepting events at or above min.
func AtLeast(min Level) func(LogEvent) bool {
	return func(e LogEvent) bool {
		return e.Level >= min
	}
}

// Decode parses a single JSON-encoded event.
func Decode(data []byte) (LogEvent, error) {
	var evt LogEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return LogEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}
