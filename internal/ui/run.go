package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/pattern"
	"github.com/five82/vmlog/internal/tail"
)

// Options configures the viewer.
type Options struct {
	Title    string
	Theme    string
	MaxLines int

	// Pattern renders each event. Nil uses pattern.DefaultPattern.
	Pattern *pattern.Pattern
	Color   bool

	// OnTheme is called with the new theme name after the user cycles themes.
	OnTheme func(name string)
}

// Emitter renders events and posts them to a running viewer. It implements
// tail.Emitter and console.Sink.
type Emitter struct {
	send    func(tea.Msg)
	pattern *pattern.Pattern
	color   bool
}

// NewEmitter returns an Emitter that delivers through send, normally
// (*tea.Program).Send.
func NewEmitter(send func(tea.Msg), p *pattern.Pattern, color bool) *Emitter {
	if p == nil {
		p = pattern.MustCompile(pattern.DefaultPattern)
	}
	return &Emitter{send: send, pattern: p, color: color}
}

// Emit renders evt and posts it.
func (e *Emitter) Emit(evt logevent.LogEvent) error {
	e.send(eventMsg{line: e.pattern.Render(evt, e.color), level: evt.Level})
	return nil
}

// Println posts an already rendered line.
func (e *Emitter) Println(line string) error {
	e.send(eventMsg{line: line})
	return nil
}

var _ tail.Emitter = (*Emitter)(nil)

// Run shows the viewer and feeds it from the session returned by
// newSession. Quitting the viewer stops the session and a finished session
// leaves the viewer open until the user quits. The session error, if any, is
// returned.
func Run(ctx context.Context, opts Options, newSession func(tail.Emitter) *tail.Session) error {
	prog := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	session := newSession(NewEmitter(prog.Send, opts.Pattern, opts.Color))

	errCh := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		prog.Send(doneMsg{err: err})
		errCh <- err
	}()

	_, runErr := prog.Run()
	session.Stop()
	sessionErr := <-errCh

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run viewer: %w", runErr)
	}
	return sessionErr
}
