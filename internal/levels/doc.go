// Package levels resolves and changes per-logger severity thresholds kept in
// a layered key/value configuration.
//
// Levels live in one configuration record (pid org.ops4j.pax.logging by
// default) as log4j properties:
//
//	log4j.rootLogger = INFO, stdout
//	log4j.logger.a.b = WARN
//
// The value is a level token optionally followed by a comma and appender
// names. Only the token is interpreted; the suffix is preserved on writes.
//
// A logger without its own entry inherits from the nearest configured
// ancestor ("a.b.c" looks at "a.b.c", then "a.b", then "a", then the root).
// A value that carries appenders but no token (",FileAppender") does not
// stop the walk.
//
// SetLevel accepts TRACE, DEBUG, INFO, WARN and ERROR in any case, or
// DEFAULT to remove an explicit level. The root logger can not be unset.
// Each change is written back with a single Store.Update.
//
// Table is a read-only snapshot used where levels are consulted per event.
package levels
