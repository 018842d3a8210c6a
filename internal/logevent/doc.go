// Package logevent defines the captured log record shared by every vmlog
// component.
//
// # Overview
//
// A LogEvent is created once by an event source (the logrus capture hook or
// the HTTP ingest endpoint), handed to the ring buffer, and from then on only
// read. The buffer stores a deep copy made with Clone so producers cannot
// reach into retained history.
//
// # Levels
//
// Level is an ordered enum:
//
//	TRACE < DEBUG < INFO < WARN < ERROR < FATAL
//
// LevelUnknown sorts below TRACE and is what foreign producers get when they
// send a level name vmlog does not recognize. Unknown events are still
// retained and rendered; they simply never receive a color.
//
// # Wire form
//
// Events cross the HTTP API as JSON objects:
//
//	{"seq":42,"ts":"2025-10-08T21:01:05Z","level":"WARN","logger":"svc.Foo",
//	 "msg":"slow","trace":["java.io.IOException","\tat ..."],"props":{"req":"7"}}
//
// Seq is assigned by the buffer and is absent on ingest.
package logevent
