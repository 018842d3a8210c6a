// Package logging configures the daemon's own logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/logevent"
)

// LoggerField carries the dot-separated logger name on every entry.
const LoggerField = "logger"

// Options selects level, format and destination.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logger from opts. Empty fields select info, text and stderr.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be json or text", opts.Format)
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stderr)
	}
	return log, nil
}

// Named returns an entry tagged with a logger name.
func Named(log logrus.FieldLogger, name string) *logrus.Entry {
	return log.WithField(LoggerField, name)
}

// Discard returns a logger that writes nothing.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ToLogrus maps an event level onto the logrus level that lets it through.
func ToLogrus(level logevent.Level) logrus.Level {
	switch level {
	case logevent.LevelTrace:
		return logrus.TraceLevel
	case logevent.LevelDebug:
		return logrus.DebugLevel
	case logevent.LevelInfo:
		return logrus.InfoLevel
	case logevent.LevelWarn:
		return logrus.WarnLevel
	case logevent.LevelError:
		return logrus.ErrorLevel
	case logevent.LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// FromLogrus maps a logrus level onto an event level.
func FromLogrus(level logrus.Level) logevent.Level {
	switch level {
	case logrus.TraceLevel:
		return logevent.LevelTrace
	case logrus.DebugLevel:
		return logevent.LevelDebug
	case logrus.InfoLevel:
		return logevent.LevelInfo
	case logrus.WarnLevel:
		return logevent.LevelWarn
	case logrus.ErrorLevel:
		return logevent.LevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return logevent.LevelFatal
	default:
		return logevent.LevelUnknown
	}
}

// ApplyLevel lowers or raises log's threshold to level. It reports whether
// the level changed.
func ApplyLevel(log *logrus.Logger, level logevent.Level) bool {
	want := ToLogrus(level)
	if log.GetLevel() == want {
		return false
	}
	log.SetLevel(want)
	return true
}
