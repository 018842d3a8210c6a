package app

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/five82/vmlog/internal/capture"
	"github.com/five82/vmlog/internal/config"
	"github.com/five82/vmlog/internal/confstore"
	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/logging"
	"github.com/five82/vmlog/internal/metrics"
	"github.com/five82/vmlog/internal/ringbuf"
	"github.com/five82/vmlog/internal/server"
)

// Options configure the vmlog daemon.
type Options struct {
	ConfigPath string
	Listen     string       // overrides the configured listen address
	Listener   net.Listener // pre-bound listener; Listen is ignored when set
	LogOutput  io.Writer    // nil means stderr
}

// Run boots the daemon and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	d, err := New(cfg, opts.LogOutput)
	if err != nil {
		return err
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}
	}
	return d.Serve(ctx, ln)
}

// Daemon owns the buffer, the level store and the HTTP API.
type Daemon struct {
	cfg       config.Config
	log       *logrus.Logger
	named     *logrus.Entry
	baseLevel logevent.Level

	buffer   *ringbuf.Buffer
	metrics  *metrics.Collector
	hook     *capture.Hook
	store    *confstore.File
	resolver *levels.Resolver
	server   *server.Server

	// levelsChanged is signalled after a level update through the API.
	levelsChanged chan struct{}
}

// New assembles a daemon from cfg. Nothing runs until Serve.
func New(cfg config.Config, logOutput io.Writer) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOutput})
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	buffer, err := ringbuf.New(cfg.BufferSize, ringbuf.WithObserver(collector))
	if err != nil {
		return nil, err
	}

	hook := capture.NewHook(buffer)
	log.AddHook(hook)

	store := confstore.NewFile(cfg.LevelsPath)
	resolver := levels.NewResolver(store,
		levels.WithPID(cfg.LevelsPID),
		levels.WithLogger(logging.Named(log, "vmlog.levels")),
	)

	d := &Daemon{
		cfg:           cfg,
		log:           log,
		named:         logging.Named(log, "vmlog.daemon"),
		baseLevel:     logging.FromLogrus(log.GetLevel()),
		buffer:        buffer,
		metrics:       collector,
		hook:          hook,
		store:         store,
		resolver:      resolver,
		levelsChanged: make(chan struct{}, 1),
	}
	d.server = server.New(server.Options{
		Buffer:          buffer,
		Resolver:        resolver,
		Metrics:         collector.Handler(),
		Logger:          logging.Named(log, "vmlog.server"),
		OnLevelsChanged: func(context.Context) { d.notifyLevelsChanged() },
	})
	return d, nil
}

// Buffer returns the daemon's ring buffer.
func (d *Daemon) Buffer() *ringbuf.Buffer {
	return d.buffer
}

// Logger returns the daemon's logger; its entries are captured in the buffer.
func (d *Daemon) Logger() *logrus.Logger {
	return d.log
}

// Serve runs the level sync loop and the HTTP API on ln until ctx is
// cancelled. On the way out the buffer is closed, which ends every open
// tail stream.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer d.buffer.Close()

	watcher, err := confstore.NewWatcher(d.store.Path(), confstore.DefaultDebounce, logging.Named(d.log, "vmlog.confstore"))
	if err != nil {
		_ = ln.Close()
		return err
	}
	changes, err := watcher.Start(ctx)
	if err != nil {
		watcher.Stop()
		_ = ln.Close()
		return err
	}
	defer watcher.Stop()

	if err := d.SyncLevels(ctx); err != nil {
		d.named.WithError(err).Warn("initial level sync failed")
	}
	d.named.WithFields(logrus.Fields{
		"buffer_size": d.cfg.BufferSize,
		"levels":      d.store.Path(),
	}).Info("vmlog daemon started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.syncLoop(gctx, changes)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return d.server.Serve(gctx, ln)
	})
	err = g.Wait()
	d.named.Info("vmlog daemon stopped")
	return err
}

// SyncLevels reloads the configured levels into the capture hook and the
// logger threshold.
func (d *Daemon) SyncLevels(ctx context.Context) error {
	table, err := d.resolver.Table(ctx)
	if err != nil {
		return err
	}
	d.hook.SetThresholds(table)

	level := d.baseLevel
	if finest, ok := table.Finest(); ok {
		level = finest
	}
	if logging.ApplyLevel(d.log, level) {
		d.named.WithField("level", level.String()).Info("logger threshold changed")
	}
	return nil
}

func (d *Daemon) notifyLevelsChanged() {
	select {
	case d.levelsChanged <- struct{}{}:
	default:
	}
}
