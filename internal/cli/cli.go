package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"

	"github.com/five82/vmlog/internal/app"
	"github.com/five82/vmlog/internal/client"
	"github.com/five82/vmlog/internal/config"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/prefs"
	"github.com/five82/vmlog/internal/tail"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Env holds the process resources a command may use.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OpenKeys returns the key source that stops `tail`. raw reports whether
	// the terminal was put in raw mode, which needs CRLF line endings.
	OpenKeys func() (keys tail.KeySource, raw bool, err error)

	// Serve runs the daemon for `serve`.
	Serve func(ctx context.Context, opts app.Options) error

	// PrefsPath is where `tail --tui` remembers the chosen theme.
	PrefsPath string
}

// DefaultEnv wires the real terminal and daemon.
func DefaultEnv() Env {
	return Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		OpenKeys: func() (tail.KeySource, bool, error) {
			t, err := tail.OpenTerminal(os.Stdin)
			if err != nil {
				return nil, false, err
			}
			return t, t.Raw(), nil
		},
		Serve:     app.Run,
		PrefsPath: prefs.DefaultPath(),
	}
}

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, r *runner, args []string) error
}

var commands = []command{
	{"display", "[-n N] [-p pattern] [--no-color] [-l level]", "Display buffered log entries", runDisplay},
	{"tail", "[-n N] [-p pattern] [--no-color] [-l level] [--tui]", "Display log entries continuously until interrupted", runTail},
	{"display-exception", "", "Display the trace of the last logged exception", runDisplayException},
	{"clear", "", "Clear the log buffer", runClear},
	{"get-level", "[logger|ROOT|ALL]", "Show the effective level of a logger", runGetLevel},
	{"set-level", "LEVEL [logger]", "Set a logger level (TRACE, DEBUG, INFO, WARN, ERROR or DEFAULT)", runSetLevel},
	{"ingest", "[-file path [-n count]]", "Post NDJSON log events from stdin or a file", runIngest},
	{"serve", "", "Run the vmlog daemon", runServe},
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

// runner carries what every command needs after global flags are parsed.
type runner struct {
	cmd        command
	env        Env
	cfg        config.Config
	configPath string
	addr       string
}

// Run executes one vmlog command line and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	global := flag.NewFlagSet("vmlog", flag.ContinueOnError)
	global.SetOutput(env.Stderr)
	configPath := global.String("config", "", "config file path (default "+config.DefaultPath()+")")
	addr := global.String("addr", "", "daemon address host:port (overrides the config listen address)")
	global.Usage = func() { printUsage(env.Stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(env.Stderr, global)
		return ExitUsage
	}

	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(env.Stderr, "vmlog: unknown command %q\n", rest[0])
		printUsage(env.Stderr, global)
		return ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(env.Stderr, "vmlog: %v\n", err)
		return ExitError
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Listen = v
	}

	r := &runner{cmd: cmd, env: env, cfg: cfg, configPath: *configPath, addr: strings.TrimSpace(*addr)}
	err = cmd.run(ctx, r, rest[1:])
	var uerr usageError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, errFlagParse):
		return ExitUsage
	case errors.As(err, &uerr):
		fmt.Fprintf(env.Stderr, "vmlog %s: %v\nusage: vmlog %s %s\n", cmd.name, uerr, cmd.name, cmd.args)
		return ExitUsage
	default:
		fmt.Fprintf(env.Stderr, "vmlog: %v\n", err)
		return ExitError
	}
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: vmlog [-config path] [-addr host:port] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-18s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.PrintDefaults()
}

// errFlagParse marks a flag error the flag package has already reported.
var errFlagParse = errors.New("flag parse error")

func (r *runner) flags() *flag.FlagSet {
	cmd := r.cmd
	fs := flag.NewFlagSet("vmlog "+cmd.name, flag.ContinueOnError)
	fs.SetOutput(r.env.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.env.Stderr, "usage: vmlog %s %s\n", cmd.name, cmd.args)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and checks the number of positional arguments.
func (r *runner) parse(fs *flag.FlagSet, args []string, minArgs, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errFlagParse
	}
	switch n := fs.NArg(); {
	case n < minArgs:
		return usagef("missing argument")
	case n > maxArgs:
		return usagef("unexpected argument %q", fs.Arg(maxArgs))
	}
	return nil
}

func (r *runner) client() (*client.Client, error) {
	return client.NewClient(r.cfg.Listen)
}

// color reports whether output should carry SGR sequences.
func (r *runner) color(noColor bool) bool {
	return !noColor && !r.cfg.NoColor && !termenv.EnvNoColor()
}

// renderFlags are shared by display and tail.
type renderFlags struct {
	count   *int
	pattern *string
	noColor *bool
	level   *string
}

func addRenderFlags(fs *flag.FlagSet) renderFlags {
	return renderFlags{
		count:   fs.Int("n", 0, "number of entries to display (0 = all buffered)"),
		pattern: fs.String("p", "", "pattern for formatting the output"),
		noColor: fs.Bool("no-color", false, "disable syntax coloring of log events"),
		level:   fs.String("l", "", "only show events at or above this level"),
	}
}

func (f renderFlags) validate() error {
	if *f.count < 0 {
		return usagef("-n must not be negative")
	}
	if lvl := strings.TrimSpace(*f.level); lvl != "" {
		if _, ok := logevent.ParseLevel(lvl); !ok {
			return usagef("unknown level %q", lvl)
		}
	}
	return nil
}
