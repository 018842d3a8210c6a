// Package ui provides a full-screen log viewer built on Bubble Tea.
//
// The viewer is the interactive front end of `vmlog tail --tui`. A tail
// session renders events through an Emitter, which posts them to the
// program; the model appends them to a bounded scrollback shown in a
// viewport.
//
// # Key Bindings
//
//   - Space: Toggle follow (auto-scroll) mode
//   - j/k, pgup/pgdown, ctrl+u/ctrl+f: Scroll
//   - g/G: Go to top / bottom (G resumes following)
//   - /: Search with a case-insensitive regex, n/N to move between matches
//   - c: Clear the screen (the buffer is untouched)
//   - T: Cycle theme (reported through Options.OnTheme so callers can save it)
//   - h/?: Toggle help
//   - q or Ctrl+C: Quit, which stops the tail session
package ui
