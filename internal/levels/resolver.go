package levels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidArgument reports a level token outside the accepted set.
	ErrInvalidArgument = errors.New("level must be set to TRACE, DEBUG, INFO, WARN or ERROR (or DEFAULT to unset it)")
	// ErrInvalidOperation reports an attempt to unset the root logger.
	ErrInvalidOperation = errors.New("can not unset the ROOT logger")
)

const (
	// DefaultPID is the configuration record holding logger levels.
	DefaultPID = "org.ops4j.pax.logging"
	// Root names the root logger on the operator surface.
	Root = "ROOT"
	// All asks for every configured logger.
	All = "ALL"
	// Default unsets a logger's explicit level.
	Default = "DEFAULT"

	rootKey      = "log4j.rootLogger"
	loggerPrefix = "log4j.logger."
)

var settable = map[string]bool{
	"TRACE": true,
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

// Store is the configuration service holding level entries. Update replaces
// the whole property set of pid.
type Store interface {
	Get(ctx context.Context, pid string) (map[string]string, error)
	Update(ctx context.Context, pid string, props map[string]string) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPID selects the configuration record.
func WithPID(pid string) Option {
	return func(r *Resolver) {
		if strings.TrimSpace(pid) != "" {
			r.pid = strings.TrimSpace(pid)
		}
	}
}

// WithLogger sets the logger used to report level changes.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// Resolver reads and writes per-logger levels in a Store.
type Resolver struct {
	store Store
	pid   string
	log   logrus.FieldLogger

	// mu serializes SetLevel's read-modify-write of the property set.
	mu sync.Mutex
}

// NewResolver creates a Resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	r := &Resolver{store: store, pid: DefaultPID, log: quiet}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PID returns the configuration record the resolver uses.
func (r *Resolver) PID() string {
	return r.pid
}

// Resolution is the effective level of a logger and where it came from.
type Resolution struct {
	Logger    string `json:"logger"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Inherited bool   `json:"inherited"`
}

// String formats the resolution the way get-level prints it.
func (r Resolution) String() string {
	level := r.Level
	if level == "" {
		level = "unset"
	}
	s := "Level: " + level
	if r.Inherited {
		s += " (inherited from " + r.Source + ")"
	}
	return s
}

// GetLevel resolves the effective level of logger. An empty name or ROOT
// queries the root logger.
func (r *Resolver) GetLevel(ctx context.Context, logger string) (Resolution, error) {
	name := normalizeLogger(logger)
	props, err := r.store.Get(ctx, r.pid)
	if err != nil {
		return Resolution{}, fmt.Errorf("get levels: %w", err)
	}
	return resolve(props, name), nil
}

func resolve(props map[string]string, name string) Resolution {
	display := name
	if display == "" {
		display = Root
	}
	for candidate := range lineage(name) {
		level := levelToken(props[keyFor(candidate)])
		if level == "" && candidate != "" {
			continue
		}
		source := candidate
		if source == "" {
			source = Root
		}
		return Resolution{Logger: display, Level: level, Source: source, Inherited: candidate != name}
	}
	return Resolution{Logger: display, Source: Root}
}

// All lists the root logger followed by every explicitly configured logger,
// sorted by name. Each entry carries the configured level only.
func (r *Resolver) All(ctx context.Context) ([]Resolution, error) {
	props, err := r.store.Get(ctx, r.pid)
	if err != nil {
		return nil, fmt.Errorf("get levels: %w", err)
	}

	names := make([]string, 0, len(props))
	for key := range props {
		if name, ok := strings.CutPrefix(key, loggerPrefix); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Resolution, 0, len(names)+1)
	out = append(out, Resolution{Logger: Root, Level: levelToken(props[rootKey]), Source: Root})
	for _, name := range names {
		out = append(out, Resolution{Logger: name, Level: levelToken(props[loggerPrefix+name]), Source: name})
	}
	return out, nil
}

// SetLevel sets or, with DEFAULT, unsets the explicit level of logger.
// Anything after the first comma of the stored value (appender names) is kept.
func (r *Resolver) SetLevel(ctx context.Context, logger, level string) error {
	name := normalizeLogger(logger)
	level = strings.ToUpper(strings.TrimSpace(level))

	if level != Default && !settable[level] {
		return fmt.Errorf("%w: %q", ErrInvalidArgument, level)
	}
	if level == Default && name == "" {
		return ErrInvalidOperation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	props, err := r.store.Get(ctx, r.pid)
	if err != nil {
		return fmt.Errorf("get levels: %w", err)
	}
	updated := make(map[string]string, len(props)+1)
	for k, v := range props {
		updated[k] = v
	}

	key := keyFor(name)
	current, exists := updated[key]
	suffix := ""
	if exists {
		current = strings.TrimSpace(current)
		if idx := strings.IndexByte(current, ','); idx >= 0 {
			suffix = current[idx:]
		}
	}

	switch {
	case level != Default:
		updated[key] = level + suffix
	case suffix != "":
		updated[key] = suffix
	default:
		delete(updated, key)
	}

	if err := r.store.Update(ctx, r.pid, updated); err != nil {
		return fmt.Errorf("update levels: %w", err)
	}

	display := name
	if display == "" {
		display = Root
	}
	r.log.WithFields(logrus.Fields{"target": display, "level": level}).Info("logger level changed")
	return nil
}

// lineage yields name, each of its dot-separated ancestors from nearest to
// farthest, and finally "" for the root logger.
func lineage(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for name != "" {
			if !yield(name) {
				return
			}
			idx := strings.LastIndexByte(name, '.')
			if idx < 0 {
				break
			}
			name = name[:idx]
		}
		yield("")
	}
}

func keyFor(name string) string {
	if name == "" {
		return rootKey
	}
	return loggerPrefix + name
}

// levelToken extracts the level from a stored value such as "DEBUG,File".
// A value starting with a comma carries appenders only.
func levelToken(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func normalizeLogger(logger string) string {
	logger = strings.TrimSpace(logger)
	if strings.EqualFold(logger, Root) {
		return ""
	}
	return logger
}
