package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/five82/vmlog/internal/logevent"
)

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestRead(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"read all (0)", 0, expectedAll},
		{"read all (negative)", -1, expectedAll},
		{"read partial (5)", 5, expectedAll[5:]},
		{"read exactly all (10)", 10, expectedAll},
		{"read more than exists (20)", 20, expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(texts(got), tt.expected) {
				t.Errorf("Read() = %v, want %v", texts(got), tt.expected)
			}
		})
	}
}

func TestLast_SkipsBlankLinesAndKeepsNumbers(t *testing.T) {
	got, err := Last(strings.NewReader("a\n\n  \nb\nc\n"), 2)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	want := []Line{{No: 4, Text: "b"}, {No: 5, Text: "c"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Last() = %+v, want %+v", got, want)
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.jsonl"), 5); err == nil {
		t.Fatalf("Read() of a missing file succeeded, want error")
	}
}

func TestEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"logger":"a","level":"INFO","msg":"one"}
{"logger":"a","level":"WARN","msg":"two"}
{"logger":"a","level":"ERROR","msg":"three","trace":["boom"]}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	events, err := Events(path, 2)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Message != "two" || events[0].Level != logevent.LevelWarn {
		t.Fatalf("events[0] = %+v, want WARN two", events[0])
	}
	if !events[1].HasTrace() {
		t.Fatalf("events[1] has no trace")
	}
}

func TestEvents_ReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte("{\"msg\":\"ok\"}\n\nbroken\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Events(path, 0)
	if err == nil || !strings.HasPrefix(err.Error(), "line 3: ") {
		t.Fatalf("Events() error = %v, want line 3 prefix", err)
	}
}
