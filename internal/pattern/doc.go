// Package pattern compiles log4j-style layout strings and renders log events
// through them.
//
// # Syntax
//
// A pattern is literal text interleaved with conversions. Each conversion is
// a percent sign, an optional format modifier, a conversion word and an
// optional {option}:
//
//	%d{HH:mm:ss,SSS}   timestamp (also %date; default layout ISO8601)
//	%p                 level name (also %level)
//	%c{1}              logger name, keeping the rightmost N segments (also %logger)
//	%m                 message (also %msg, %message)
//	%X{key}            one property from the event (also %property, %mdc)
//	%n                 newline
//	%%                 literal percent sign
//
// Modifiers follow log4j: %-5p pads the level to five columns left aligned,
// %.3p truncates to three characters keeping the right end, %-32.32c does
// both.
//
// Date layouts use the SimpleDateFormat letters yyyy, MM, MMM, dd, HH, hh,
// mm, ss, SSS, a, E, z, Z and X. Quoted text ('T') is copied as is. The
// names ISO8601, ABSOLUTE and DATE select the usual log4j layouts. Times are
// rendered in the location carried by the event timestamp.
//
// # Rendering
//
// Compile returns an immutable Pattern that can be shared between goroutines.
// Render runs the converter chain and, when color is enabled, wraps the main
// line in the SGR sequence configured for the event level:
//
//	p := pattern.MustCompile("%level %logger - %msg")
//	line := p.Render(evt, false) // "ERROR svc.Foo - boom"
//
// Exception trace lines are appended after the main line, one per line,
// without color. Events with an unknown level are never colored.
//
// # Colors
//
// Colors maps levels to SGR parameters. ParseColors accepts raw parameters
// ("1;31"), ANSI color names ("brightred") or hex values ("#ff5555"); names
// and hex values are converted with termenv.
package pattern
