package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/logevent"
)

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", log.GetLevel())
	}
	Named(log, "vmlog.server").Info("listening")
	if !strings.Contains(buf.String(), "logger=vmlog.server") {
		t.Fatalf("output %q missing logger field", buf.String())
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Named(log, "svc").Debug("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" || record["logger"] != "svc" || record["level"] != "debug" {
		t.Fatalf("record = %v", record)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("New accepted invalid level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("New accepted invalid format")
	}
}

func TestLevelMapping(t *testing.T) {
	for _, level := range []logevent.Level{
		logevent.LevelTrace, logevent.LevelDebug, logevent.LevelInfo,
		logevent.LevelWarn, logevent.LevelError, logevent.LevelFatal,
	} {
		if got := FromLogrus(ToLogrus(level)); got != level {
			t.Fatalf("round trip %s = %s", level, got)
		}
	}
	if got := FromLogrus(logrus.PanicLevel); got != logevent.LevelFatal {
		t.Fatalf("FromLogrus(panic) = %s, want FATAL", got)
	}
}

func TestApplyLevel(t *testing.T) {
	log := Discard()
	if !ApplyLevel(log, logevent.LevelDebug) {
		t.Fatal("ApplyLevel(DEBUG) reported no change")
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s, want debug", log.GetLevel())
	}
	if ApplyLevel(log, logevent.LevelDebug) {
		t.Fatal("ApplyLevel(DEBUG) twice reported a change")
	}
}
