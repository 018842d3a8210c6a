// Package confstore implements the configuration service behind logger
// levels: a keyed set of property maps (one per pid) that is read whole and
// replaced whole.
//
// Memory is used by tests and by the daemon when no levels file is
// configured. File persists records as TOML and is read on every Get, so
// an operator editing the file by hand is seen on the next lookup. Watcher
// turns edits to that file into a debounced change channel that the daemon
// uses to reapply levels.
package confstore
