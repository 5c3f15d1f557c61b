// Package ui provides terminal output components for the voxsync CLI.
//
// Components render with lipgloss and follow a "print once" pattern. The
// interactive dashboard lives in internal/tui and reuses the palette and
// the Meter from here.
//
//   - Header: command banner with ordered parameters
//   - Result: success, warning and failure boxes; failures carry
//     troubleshooting tips derived from the api error kind
//   - Meter: a gauge for latency and CPU load
//   - Confirm: a y/N prompt for destructive commands
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Delete Profile", "voxsync profiles delete",
//	    ui.Param{Key: "Profile", Value: name})
//	if err := reg.Delete(ctx, name); err != nil {
//	    p.PrintError("Delete failed", err)
//	}
//
// Logging stays silent unless VOXSYNC_LOG_LEVEL is set, so curated output
// is not interleaved with log lines.
package ui
