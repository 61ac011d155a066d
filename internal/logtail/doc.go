// Package logtail reads back the JSON log that clanboard writes while the
// TUI owns the terminal.
//
// Read keeps the last N lines of a file in a ring buffer, so large logs are
// scanned once without being held in memory. Parse decodes a line written by
// the zap production encoder (time, level, logger, msg plus fields) and
// Format renders it for a terminal. Tail combines both with a minimum level.
//
// Lines that are not JSON, such as panics captured by the error output,
// are kept verbatim at info level.
package logtail
