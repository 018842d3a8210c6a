package pattern

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/five82/vmlog/internal/logevent"
)

// modifier is a log4j-style [-][min][.max] format modifier.
type modifier struct {
	leftAlign bool
	min       int
	max       int
}

func (m modifier) apply(sb *strings.Builder, s string) {
	n := utf8.RuneCountInString(s)
	if m.max > 0 && n > m.max {
		// Truncation keeps the rightmost characters.
		runes := []rune(s)
		s = string(runes[n-m.max:])
		n = m.max
	}
	pad := m.min - n
	if pad > 0 && !m.leftAlign {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	sb.WriteString(s)
	if pad > 0 && m.leftAlign {
		sb.WriteString(strings.Repeat(" ", pad))
	}
}

// converter is one node of a compiled pattern.
type converter struct {
	next   *converter
	mod    modifier
	format func(evt logevent.LogEvent) string
}

func (c *converter) write(sb *strings.Builder, evt logevent.LogEvent) {
	c.mod.apply(sb, c.format(evt))
}

func literalConverter(text string) *converter {
	return &converter{format: func(logevent.LogEvent) string { return text }}
}

func dateConverter(df dateFormat) *converter {
	return &converter{format: func(evt logevent.LogEvent) string { return df.format(evt.Timestamp) }}
}

func levelConverter() *converter {
	return &converter{format: func(evt logevent.LogEvent) string { return evt.Level.String() }}
}

func loggerConverter(precision int) *converter {
	return &converter{format: func(evt logevent.LogEvent) string {
		return abbreviate(evt.Logger, precision)
	}}
}

func messageConverter() *converter {
	return &converter{format: func(evt logevent.LogEvent) string { return evt.Message }}
}

// propertyConverter renders one property, or the whole bag as {k=v, ...}
// when key is empty.
func propertyConverter(key string) *converter {
	key = strings.TrimSpace(key)
	return &converter{format: func(evt logevent.LogEvent) string {
		if key != "" {
			return evt.Properties[key]
		}
		if len(evt.Properties) == 0 {
			return ""
		}
		keys := make([]string, 0, len(evt.Properties))
		for k := range evt.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + evt.Properties[k]
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}}
}

// abbreviate keeps the rightmost precision dot-segments of name.
func abbreviate(name string, precision int) string {
	if precision <= 0 {
		return name
	}
	end := len(name)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			precision--
			if precision == 0 {
				return name[i+1 : end]
			}
		}
	}
	return name
}
