package tail

import (
	"github.com/five82/vmlog/internal/console"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/pattern"
)

// PatternEmitter renders events with a compiled pattern and prints them.
type PatternEmitter struct {
	Pattern *pattern.Pattern
	Color   bool
	Sink    console.Sink
}

// Emit renders evt and writes it to the sink.
func (e PatternEmitter) Emit(evt logevent.LogEvent) error {
	return e.Sink.Println(e.Pattern.Render(evt, e.Color))
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(logevent.LogEvent) error

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt logevent.LogEvent) error {
	return f(evt)
}
