// Package logging constructs slog loggers for the CLI and pipeline and
// provides typed attribute helpers so call sites stay terse.
//
// Two output formats are supported: a console handler that renders
// "timestamp LEVEL component: message key=value" lines, and a JSON handler
// for machine consumption. NewFromConfig tees output to stdout and the
// configured log directory.
package logging
