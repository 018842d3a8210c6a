// Package config loads vmlog settings from a TOML file.
//
// # Configuration Discovery
//
// Load reads the path it is given, or ~/.config/vmlog/config.toml when the
// path is empty. A missing file is not an error: Default values are used so
// the daemon and CLI work without any setup. Present but blank values also
// fall back to their defaults.
//
// # TOML Format
//
//	listen = "127.0.0.1:8181"
//	buffer_size = 500
//	pattern = "%d{ISO8601} | %-5.5p | %-32.32c{1} | %m"
//	no_color = false
//	levels_path = "~/.config/vmlog/levels.toml"
//	levels_pid = "org.ops4j.pax.logging"
//	log_level = "info"
//	log_format = "text"
//
//	[colors]
//	error = "1;31"
//	warn = "yellow"
//	info = "#5fafff"
//
// listen is both the daemon's bind address and the address the CLI dials.
// levels_path names the TOML file holding logger levels; a leading ~ is
// expanded. Color values accept raw SGR parameters, ANSI color names or hex.
//
// # Validation
//
// Load only parses. Validate rejects values the daemon can not run with,
// such as a non-positive buffer_size or a pattern that does not compile.
// CompilePattern is what display and tail use to build their renderer,
// optionally replacing the configured pattern with one from the command line.
package config
