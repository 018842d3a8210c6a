// Package console defines where rendered log lines go.
package console

import (
	"io"
	"strings"
	"sync"
)

// Sink receives one rendered event at a time. A line may contain embedded
// newlines when the event carries a trace.
type Sink interface {
	Println(line string) error
}

// Writer prints lines to an io.Writer. Concurrent calls are serialized.
type Writer struct {
	mu   sync.Mutex
	out  io.Writer
	crlf bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithCRLF terminates lines with \r\n, which a terminal in raw mode needs.
func WithCRLF(enabled bool) Option {
	return func(w *Writer) { w.crlf = enabled }
}

// NewWriter returns a Sink writing to out.
func NewWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{out: out}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetCRLF switches line endings, for example when raw mode is entered.
func (w *Writer) SetCRLF(enabled bool) {
	w.mu.Lock()
	w.crlf = enabled
	w.mu.Unlock()
}

// Println writes line followed by a line terminator.
func (w *Writer) Println(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.crlf {
		line = strings.ReplaceAll(line, "\n", "\r\n") + "\r\n"
	} else {
		line += "\n"
	}
	_, err := io.WriteString(w.out, line)
	return err
}

// Discard drops every line.
var Discard Sink = discard{}

type discard struct{}

func (discard) Println(string) error { return nil }
