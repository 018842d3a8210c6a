package pattern

import (
	"strings"

	"github.com/five82/vmlog/internal/logevent"
)

const (
	escape = "\x1b["
	reset  = "\x1b[0m"
)

// Render formats evt. When colorEnabled is set and the palette has an entry
// for the event's level, the main line is wrapped in that color. Trace lines
// follow the main line, one per line, uncolored.
func (p *Pattern) Render(evt logevent.LogEvent, colorEnabled bool) string {
	var sb strings.Builder
	seq := ""
	if colorEnabled {
		seq = p.colors[evt.Level]
	}
	if seq != "" {
		sb.WriteString(escape)
		sb.WriteString(seq)
		sb.WriteByte('m')
	}
	for c := p.head; c != nil; c = c.next {
		c.write(&sb, evt)
	}
	endsLine := strings.HasSuffix(sb.String(), "\n")
	if seq != "" {
		sb.WriteString(reset)
	}

	for i, line := range evt.Trace {
		if i > 0 || !endsLine {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Render is the function form of (*Pattern).Render.
func Render(p *Pattern, evt logevent.LogEvent, colorEnabled bool) string {
	return p.Render(evt, colorEnabled)
}
