// Package cli implements the vmlog command line.
//
// Every command except serve talks to a running daemon over its HTTP API:
//
//	display            print recent events
//	tail               print recent events, then follow new ones
//	display-exception  print the trace of the newest event that has one
//	clear              empty the buffer
//	get-level          show the effective level of a logger, or ALL
//	set-level          set or unset (DEFAULT) a logger's level
//	ingest             post JSON-lines events read from stdin
//	serve              run the daemon in the foreground
//
// Run returns the exit code instead of exiting so commands can be tested
// against an httptest server. Usage errors exit with 2, runtime errors with 1.
package cli
