package app

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/client"
	"github.com/five82/vmlog/internal/config"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/logging"
	"github.com/five82/vmlog/internal/ringbuf"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BufferSize = 50
	cfg.LevelsPath = filepath.Join(t.TempDir(), "levels.toml")
	return cfg
}

func newDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := New(testConfig(t), io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Buffer().Close)
	return d
}

func startDaemon(t *testing.T, d *Daemon) (string, func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx, ln) }()

	stop := func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatalf("daemon did not stop")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return ln.Addr().String(), stop
}

func messages(events []logevent.LogEvent, logger string) []string {
	var out []string
	for _, evt := range events {
		if evt.Logger == logger {
			out = append(out, evt.Message)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BufferSize = 0
	if _, err := New(cfg, io.Discard); err == nil {
		t.Fatalf("New with buffer_size 0 succeeded, want error")
	}

	cfg = testConfig(t)
	cfg.LogFormat = "xml"
	if _, err := New(cfg, io.Discard); err == nil {
		t.Fatalf("New with log_format xml succeeded, want error")
	}
}

func TestDaemon_CapturesOwnLogs(t *testing.T) {
	d := newDaemon(t)
	logging.Named(d.Logger(), "a.b").WithField("item", 7).Info("hello")
	d.Logger().Info("anonymous")

	events := d.Buffer().Snapshot(10)
	if got := messages(events, "a.b"); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("a.b messages = %v, want [hello]", got)
	}
	if got := messages(events, "vmlog"); len(got) != 1 || got[0] != "anonymous" {
		t.Fatalf("vmlog messages = %v, want [anonymous]", got)
	}
}

func TestDaemon_SyncLevelsAppliesThresholds(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()

	if err := d.resolver.SetLevel(ctx, "", "WARN"); err != nil {
		t.Fatalf("SetLevel root: %v", err)
	}
	if err := d.SyncLevels(ctx); err != nil {
		t.Fatalf("SyncLevels: %v", err)
	}
	if got := d.Logger().GetLevel(); got != logrus.WarnLevel {
		t.Fatalf("logger level = %v, want warn", got)
	}

	if err := d.resolver.SetLevel(ctx, "noisy", "DEBUG"); err != nil {
		t.Fatalf("SetLevel noisy: %v", err)
	}
	if err := d.SyncLevels(ctx); err != nil {
		t.Fatalf("SyncLevels: %v", err)
	}
	if got := d.Logger().GetLevel(); got != logrus.DebugLevel {
		t.Fatalf("logger level = %v, want debug", got)
	}

	d.Buffer().Clear()
	logging.Named(d.Logger(), "noisy.sub").Debug("kept")
	logging.Named(d.Logger(), "other").Debug("dropped")
	logging.Named(d.Logger(), "other").Warn("warned")

	events := d.Buffer().Snapshot(10)
	if got := messages(events, "noisy.sub"); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("noisy.sub messages = %v, want [kept]", got)
	}
	if got := messages(events, "other"); len(got) != 1 || got[0] != "warned" {
		t.Fatalf("other messages = %v, want [warned]", got)
	}

	if err := d.resolver.SetLevel(ctx, "noisy", "DEFAULT"); err != nil {
		t.Fatalf("SetLevel DEFAULT: %v", err)
	}
	if err := d.SyncLevels(ctx); err != nil {
		t.Fatalf("SyncLevels: %v", err)
	}
	if got := d.Logger().GetLevel(); got != logrus.WarnLevel {
		t.Fatalf("logger level after DEFAULT = %v, want warn", got)
	}
}

func TestDaemon_ServeEndToEnd(t *testing.T) {
	d := newDaemon(t)
	addr, stop := startDaemon(t, d)

	c, err := client.NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()
	waitFor(t, "api", func() bool {
		_, err := c.FetchLogs(ctx, client.LogQuery{})
		return err == nil
	})

	events := []logevent.LogEvent{
		{Timestamp: time.Now(), Logger: "svc", Level: logevent.LevelInfo, Message: "one"},
		{Timestamp: time.Now(), Logger: "svc", Level: logevent.LevelError, Message: "two", Trace: []string{"boom", "\tat x"}},
	}
	if n, err := c.Ingest(ctx, events); err != nil || n != 2 {
		t.Fatalf("Ingest = %d, %v; want 2, nil", n, err)
	}

	batch, err := c.FetchLogs(ctx, client.LogQuery{})
	if err != nil {
		t.Fatalf("FetchLogs: %v", err)
	}
	if got := messages(batch.Events, "svc"); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("svc messages = %v, want [one two]", got)
	}
	exc, err := c.LastException(ctx)
	if err != nil || exc.Message != "two" {
		t.Fatalf("LastException = %q, %v; want two", exc.Message, err)
	}

	if err := c.SetLevel(ctx, "", "DEBUG"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	waitFor(t, "debug threshold", func() bool {
		return d.Logger().GetLevel() == logrus.DebugLevel
	})

	if err := stop(); err != nil {
		t.Fatalf("Serve returned %v, want nil", err)
	}
	if err := d.Buffer().Add(&logevent.LogEvent{Message: "late"}); !errors.Is(err, ringbuf.ErrClosed) {
		t.Fatalf("Add after stop = %v, want ErrClosed", err)
	}
}

func TestDaemon_PicksUpExternalEdits(t *testing.T) {
	d := newDaemon(t)
	addr, stop := startDaemon(t, d)
	defer func() { _ = stop() }()

	// The API starts after the watcher, so a reachable API means the
	// watcher is running.
	c, err := client.NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	waitFor(t, "api", func() bool {
		_, err := c.FetchLogs(context.Background(), client.LogQuery{})
		return err == nil
	})

	content := "[\"org.ops4j.pax.logging\"]\n\"log4j.rootLogger\" = \"TRACE, out\"\n"
	if err := os.WriteFile(d.store.Path(), []byte(content), 0o644); err != nil {
		t.Fatalf("write levels: %v", err)
	}
	waitFor(t, "trace threshold", func() bool {
		return d.Logger().GetLevel() == logrus.TraceLevel
	})
}

func TestRun_UsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	levelsPath := filepath.Join(dir, "levels.toml")
	content := "buffer_size = 10\nlevels_path = \"" + levelsPath + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Options{ConfigPath: path, Listener: ln, LogOutput: io.Discard})
	}()

	c, err := client.NewClient(ln.Addr().String())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	waitFor(t, "api", func() bool {
		_, err := c.FetchLogs(context.Background(), client.LogQuery{})
		return err == nil
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("buffer_size = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := Run(context.Background(), Options{ConfigPath: path, LogOutput: io.Discard})
	if err == nil {
		t.Fatalf("Run succeeded, want error")
	}
}
