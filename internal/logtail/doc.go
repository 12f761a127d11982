// Package logtail reads the end of the client's log file for the TUI log pane.
//
// # Overview
//
// While the interactive UI owns the terminal, the client logs JSON lines to a
// file (see package logging). The UI periodically calls Tail to show the most
// recent entries.
//
//   - Read: last N raw lines, using a ring buffer of size N, one pass
//   - Parse: decode one slog JSON line into an Entry
//   - Tail: Read followed by Parse, skipping blank lines
//
// Example usage:
//
//	entries, err := logtail.Tail("~/.local/state/slingshot/slingshot.log", 200)
//	if err != nil {
//		return err
//	}
//	for _, e := range entries {
//		fmt.Println(e.String())
//	}
//
// # Error Handling
//
// Read returns nil, nil for a missing file; the log may not exist before the
// first write. Lines that are not JSON are kept as-is so a partially written
// or foreign line never hides the rest of the log.
package logtail
