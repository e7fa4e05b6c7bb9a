// Package logging builds the structured slog logger shared by every scrub
// component. Records go to stderr and, when configured, are appended to a
// log file as well.
package logging
