// Package cmd implements the command-line interface for defunc.
//
// This package provides the following commands:
//   - demo: Run the example types through the tracing engine
//   - version: Display version information
//
// The demo command is the default command when no subcommand is specified.
package cmd
