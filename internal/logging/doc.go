// Package logging provides the leveled logging interface used across the
// gallery packages, backed by zerolog's console writer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level is read once from DEBUG or LOG_LEVEL and can be overridden with
// SetLevel, which the CLI does for its --log-level flag.
package logging
