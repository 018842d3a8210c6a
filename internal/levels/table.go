package levels

import (
	"context"
	"fmt"
	"strings"

	"github.com/five82/vmlog/internal/logevent"
)

// Table is an immutable snapshot of configured levels for hot-path checks.
type Table struct {
	props map[string]string
}

// Table loads the current configuration into a Table.
func (r *Resolver) Table(ctx context.Context) (*Table, error) {
	props, err := r.store.Get(ctx, r.pid)
	if err != nil {
		return nil, fmt.Errorf("get levels: %w", err)
	}
	return NewTable(props), nil
}

// NewTable builds a Table from raw level properties.
func NewTable(props map[string]string) *Table {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		if k == rootKey || strings.HasPrefix(k, loggerPrefix) {
			copied[k] = v
		}
	}
	return &Table{props: copied}
}

// Resolve returns the effective level of logger.
func (t *Table) Resolve(logger string) Resolution {
	return resolve(t.props, normalizeLogger(logger))
}

// Effective returns the parsed threshold for logger, or LevelUnknown when no
// recognized level applies.
func (t *Table) Effective(logger string) logevent.Level {
	level, _ := logevent.ParseLevel(t.Resolve(logger).Level)
	return level
}

// Allows reports whether an event at lvl from logger passes the configured
// threshold. OFF drops everything; unset or unrecognized thresholds pass.
func (t *Table) Allows(logger string, lvl logevent.Level) bool {
	if t == nil {
		return true
	}
	token := strings.ToUpper(t.Resolve(logger).Level)
	if token == "OFF" {
		return false
	}
	threshold, ok := logevent.ParseLevel(token)
	if !ok {
		return true
	}
	return lvl >= threshold
}

// Finest returns the most verbose recognized level configured anywhere in
// the table. ok is false when no entry carries a recognized level.
func (t *Table) Finest() (level logevent.Level, ok bool) {
	for key, value := range t.props {
		if key != rootKey && !strings.HasPrefix(key, loggerPrefix) {
			continue
		}
		parsed, valid := logevent.ParseLevel(levelToken(value))
		if !valid {
			continue
		}
		if !ok || parsed < level {
			level, ok = parsed, true
		}
	}
	return level, ok
}
