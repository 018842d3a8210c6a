package tail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Terminal reads keys from a terminal in raw mode. Close cancels a pending
// read and restores the previous terminal state.
type Terminal struct {
	fd     int
	reader cancelreader.CancelReader
	state  *term.State
	buf    [1]byte
	once   sync.Once
}

// OpenTerminal prepares in for key reads. Raw mode is only entered when in
// is a terminal; otherwise keys are read as plain bytes.
func OpenTerminal(in *os.File) (*Terminal, error) {
	t := &Terminal{fd: int(in.Fd())}
	if term.IsTerminal(t.fd) {
		state, err := term.MakeRaw(t.fd)
		if err != nil {
			return nil, fmt.Errorf("enter raw mode: %w", err)
		}
		t.state = state
	}

	reader, err := cancelreader.NewReader(in)
	if err != nil {
		t.restore()
		return nil, fmt.Errorf("open key reader: %w", err)
	}
	t.reader = reader
	return t, nil
}

// Raw reports whether the terminal was switched to raw mode.
func (t *Terminal) Raw() bool {
	return t.state != nil
}

// ReadKey blocks for one byte. End of input is reported as -1.
func (t *Terminal) ReadKey() (int, error) {
	for {
		n, err := t.reader.Read(t.buf[:])
		if n == 1 {
			return int(t.buf[0]), nil
		}
		if errors.Is(err, io.EOF) {
			return -1, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close stops reading and restores the terminal. It is idempotent.
func (t *Terminal) Close() error {
	var err error
	t.once.Do(func() {
		t.reader.Cancel()
		err = t.reader.Close()
		t.restore()
	})
	return err
}

func (t *Terminal) restore() {
	if t.state != nil {
		_ = term.Restore(t.fd, t.state)
	}
}
