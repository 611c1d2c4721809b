// Package logging provides structured logging for esptrace.
//
// This package wraps a global zap logger with convenience functions for the
// events the tool reports: opened console transports, mirror clients and
// raw chunks received from the device.
//
// # Log Levels
//
//   - Debug: Raw chunks, decoder state transitions, addr2line invocations
//   - Info: Opened ports, mirror connections, decoder enabled/disabled
//   - Warn: Failed address resolutions, dropped mirror clients
//   - Error: Transport failures
//
// # Configuration
//
// Logging is silent unless ESPTRACE_LOG_LEVEL is set or a level is passed
// explicitly:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Components receive a named child logger in their constructor:
//
//	resolver := addr2line.NewResolver(config, logging.Named("addr2line"))
//
// # Output
//
// Logs are written to stderr in console format so they never mix with the
// annotated stream on stdout:
//
//	2026-01-12T10:30:45.123Z  INFO  Console opened  {"port": "/dev/ttyUSB0", "baud": 115200}
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned.
package logging
