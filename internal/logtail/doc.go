// Package logtail reads the end of JSON-lines event files for `vmlog ingest
// -file`.
//
// Read keeps a ring of the last maxLines non-blank lines while scanning the
// file once, so memory stays O(maxLines) however large the file is. Each
// line remembers its position so decode errors can point at it. Lines are
// capped at 1 MiB.
package logtail
