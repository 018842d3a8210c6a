// Package app is the composition root of the vmlog daemon.
//
// # Overview
//
// Run loads the configuration, builds the ring buffer and the pieces around
// it, and serves the HTTP API until the context is cancelled. The daemon's
// own logrus entries are captured into the same buffer, so `vmlog display`
// shows them next to ingested events.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read ~/.config/vmlog/config.toml
//	       ├─────> logging.New()        Ambient logrus logger
//	       ├─────> ringbuf.New()        Buffer with the metrics observer
//	       ├─────> capture.NewHook()    logrus entries -> buffer
//	       ├─────> confstore.NewFile()  levels.toml behind the resolver
//	       └─────> Daemon.Serve()       Level sync loop + HTTP API (blocks)
//
//	Level Sync Loop:
//	┌─────────────────────────────────────────┐
//	│ syncLoop() goroutine                    │
//	│  ├─> levels.toml changed (fsnotify)     │
//	│  ├─> PUT /api/levels succeeded          │
//	│  └─> SyncLevels()                       │
//	│      ├─> hook.SetThresholds(table)      │
//	│      └─> logger level = finest level    │
//	└─────────────────────────────────────────┘
//
// # Error Handling
//
// Configuration, listen and watcher errors are returned from Run. A failed
// level reload is logged and retried with exponential backoff capped at
// 30 seconds; the previous thresholds stay in force meanwhile.
//
// # Shutdown
//
// Cancelling the context shuts the HTTP server down gracefully, stops the
// watcher and closes the buffer, which forcibly ends every tail stream.
package app
