// Package logging provides structured logging for voxsync.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the client. It provides both general logging functions
// and specialized functions for the REST client, the event channel and the
// state synchronizer.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame bodies, every push, every request)
//   - Info: Normal operations (channel connected, profile saved)
//   - Warn: Non-fatal issues (failed requests, dropped frames, reconnects)
//   - Error: Failures a user must act on
//
// Logging is silent until a level is configured, either through
// Initialize / InitializeWithOptions or the VOXSYNC_LOG_LEVEL environment
// variable. CLI commands print their own results and should not be mixed with
// log lines unless asked for.
//
// # Output
//
// By default output goes to stdout in console format. When Options.File is set
// output goes to a size-rotated file (lumberjack). The dashboard always logs to
// a file because stdout is the terminal screen.
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  "/tmp/voxsync.log",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The global logger is
// swapped under a lock.
package logging
