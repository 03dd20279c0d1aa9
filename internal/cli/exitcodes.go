// Package cli provides shared utilities for the rfls command-line tools.
package cli

// Standard exit codes for rfls CLI tools.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: General error (bad flags, unreadable root, failed rename, etc.)
//   - 2: The query ran but matched nothing
const (
	// ExitOK indicates successful execution.
	ExitOK = 0

	// ExitError indicates a fatal error occurred.
	ExitError = 1

	// ExitNotFound indicates a lookup that found no definition, so scripts
	// can tell "no such keyword" apart from a broken workspace.
	ExitNotFound = 2
)
