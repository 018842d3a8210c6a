// Package capture copies the daemon's own log entries into the ring buffer.
package capture

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/logging"
)

// DefaultLogger names entries that carry no logger field.
const DefaultLogger = "vmlog"

// Acceptor takes captured events. It must not log through the hooked logger.
type Acceptor interface {
	Accept(evt logevent.LogEvent)
}

// Hook is a logrus hook feeding an Acceptor.
type Hook struct {
	sink      Acceptor
	threshold atomic.Pointer[levels.Table]
}

// NewHook returns a hook that forwards every entry to sink.
func NewHook(sink Acceptor) *Hook {
	return &Hook{sink: sink}
}

// SetThresholds installs per-logger thresholds. A nil table passes everything.
func (h *Hook) SetThresholds(table *levels.Table) {
	h.threshold.Store(table)
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(entry *logrus.Entry) error {
	evt := Convert(entry)
	if !h.threshold.Load().Allows(evt.Logger, evt.Level) {
		return nil
	}
	h.sink.Accept(evt)
	return nil
}

// Convert turns a logrus entry into a log event. The logger field names the
// event, an error field becomes the trace, other fields become properties.
func Convert(entry *logrus.Entry) logevent.LogEvent {
	evt := logevent.LogEvent{
		Timestamp: entry.Time,
		Logger:    DefaultLogger,
		Level:     logging.FromLogrus(entry.Level),
		Message:   entry.Message,
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := entry.Data[k]
		switch k {
		case logging.LoggerField:
			if name, ok := v.(string); ok && strings.TrimSpace(name) != "" {
				evt.Logger = name
			}
		case logrus.ErrorKey:
			if err, ok := v.(error); ok && err != nil {
				evt.Trace = traceLines(err)
				continue
			}
			fallthrough
		default:
			if evt.Properties == nil {
				evt.Properties = make(map[string]string, len(keys))
			}
			evt.Properties[k] = fmt.Sprint(v)
		}
	}
	return evt
}

func traceLines(err error) []string {
	text := strings.TrimRight(fmt.Sprintf("%+v", err), "\n")
	return strings.Split(text, "\n")
}
