package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/five82/vmlog/internal/api"
	"github.com/five82/vmlog/internal/app"
	"github.com/five82/vmlog/internal/client"
	"github.com/five82/vmlog/internal/console"
	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/logtail"
	"github.com/five82/vmlog/internal/pattern"
	"github.com/five82/vmlog/internal/prefs"
	"github.com/five82/vmlog/internal/tail"
	"github.com/five82/vmlog/internal/ui"
)

const (
	ingestBatch   = 256
	maxInputLine  = 1 << 20
	initialBuffer = 64 * 1024
)

func runDisplay(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	rf := addRenderFlags(fs)
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	p, err := r.cfg.CompilePattern(*rf.pattern)
	if err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	batch, err := c.FetchLogs(ctx, client.LogQuery{Limit: *rf.count, Level: *rf.level})
	if err != nil {
		return err
	}

	out := console.NewWriter(r.env.Stdout)
	color := r.color(*rf.noColor)
	for _, evt := range batch.Events {
		if err := out.Println(p.Render(evt, color)); err != nil {
			return err
		}
	}
	return nil
}

func runTail(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	rf := addRenderFlags(fs)
	tui := fs.Bool("tui", false, "show entries in a full-screen viewer")
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	p, err := r.cfg.CompilePattern(*rf.pattern)
	if err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	color := r.color(*rf.noColor)
	feed := c.Feed(ctx, *rf.level)
	opts := []tail.SessionOption{tail.WithCount(*rf.count)}

	if *tui {
		err = viewConsole(ctx, r, feed, p, color, opts)
	} else {
		err = followConsole(ctx, r, feed, tail.PatternEmitter{Pattern: p, Color: color}, opts)
	}
	if err != nil {
		return err
	}
	if ferr := feed.Err(); ferr != nil {
		return fmt.Errorf("stream: %w", ferr)
	}
	return nil
}

// followConsole tails to stdout until a quit key or ctx ends the session.
func followConsole(ctx context.Context, r *runner, src tail.Source, emit tail.PatternEmitter, opts []tail.SessionOption) error {
	keys, raw, err := r.env.OpenKeys()
	if err != nil {
		return err
	}
	emit.Sink = console.NewWriter(r.env.Stdout, console.WithCRLF(raw))
	session := tail.NewSession(src, emit, opts...)
	return tail.Follow(ctx, session, keys)
}

// viewConsole tails into the full-screen viewer. A theme picked there is
// saved for the next run.
func viewConsole(ctx context.Context, r *runner, src tail.Source, p *pattern.Pattern, color bool, opts []tail.SessionOption) error {
	saved := prefs.Load(r.env.PrefsPath)
	chosen := ""
	err := ui.Run(ctx, ui.Options{
		Title:   "vmlog " + r.cfg.Listen,
		Theme:   saved.ThemeOr(r.cfg.Theme),
		Pattern: p,
		Color:   color,
		OnTheme: func(name string) { chosen = name },
	}, func(emit tail.Emitter) *tail.Session {
		return tail.NewSession(src, emit, opts...)
	})
	if chosen != "" && chosen != saved.Theme {
		saved.Theme = chosen
		if serr := prefs.Save(r.env.PrefsPath, saved); serr != nil {
			fmt.Fprintf(r.env.Stderr, "vmlog: save preferences: %v\n", serr)
		}
	}
	return err
}

func runDisplayException(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	evt, err := c.LastException(ctx)
	if errors.Is(err, api.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	out := console.NewWriter(r.env.Stdout)
	for _, line := range evt.Trace {
		if err := out.Println(line); err != nil {
			return err
		}
	}
	return out.Println("")
}

func runClear(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	return c.Clear(ctx)
}

func runGetLevel(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	if err := r.parse(fs, args, 0, 1); err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	logger := fs.Arg(0)

	if strings.EqualFold(strings.TrimSpace(logger), levels.All) {
		list, err := c.ListLevels(ctx)
		if err != nil {
			return err
		}
		for _, res := range list {
			level := res.Level
			if level == "" {
				level = "unset"
			}
			fmt.Fprintf(r.env.Stdout, "%s: %s\n", res.Logger, level)
		}
		return nil
	}

	res, err := c.GetLevel(ctx, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.env.Stdout, res.String())
	return nil
}

func runSetLevel(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	if err := r.parse(fs, args, 1, 2); err != nil {
		return err
	}
	c, err := r.client()
	if err != nil {
		return err
	}
	return c.SetLevel(ctx, fs.Arg(1), fs.Arg(0))
}

func runIngest(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	file := fs.String("file", "", "read events from a JSON-lines file instead of stdin")
	last := fs.Int("n", 0, "with -file, ingest only the last n events (0 = all)")
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	if *last < 0 {
		return usagef("-n must not be negative")
	}
	if *last > 0 && *file == "" {
		return usagef("-n requires -file")
	}
	c, err := r.client()
	if err != nil {
		return err
	}

	total := 0
	batch := make([]logevent.LogEvent, 0, ingestBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.Ingest(ctx, batch)
		total += n
		batch = batch[:0]
		return err
	}
	add := func(evt logevent.LogEvent) error {
		batch = append(batch, evt)
		if len(batch) == ingestBatch {
			return flush()
		}
		return nil
	}

	if *file != "" {
		events, err := logtail.Events(*file, *last)
		if err != nil {
			return err
		}
		for _, evt := range events {
			if err := add(evt); err != nil {
				return err
			}
		}
	} else if err := scanEvents(r.env.Stdin, add); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.env.Stdout, "%d events ingested\n", total)
	return nil
}

// scanEvents decodes JSON-lines events from in as they arrive.
func scanEvents(in io.Reader, add func(logevent.LogEvent) error) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, initialBuffer), maxInputLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		evt, err := logevent.Decode(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := add(evt); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, r *runner, args []string) error {
	fs := r.flags()
	if err := r.parse(fs, args, 0, 0); err != nil {
		return err
	}
	return r.env.Serve(ctx, app.Options{
		ConfigPath: r.configPath,
		Listen:     r.addr,
		LogOutput:  r.env.Stderr,
	})
}
