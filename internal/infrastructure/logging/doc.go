// Package logging provides structured logging using uber/zap.
//
// The shell writes its own diagnostics to the terminal, so logs are kept
// quiet by default: warnings and errors go to stderr as JSON. Development
// mode switches to colored console output at debug level.
//
// Log Levels:
//   - Debug: key handling, child lifecycle, profile I/O
//   - Info: session start and stop
//   - Warn: recoverable problems (skipped alias records)
//   - Error: terminal mode failures
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "warn"})
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	logger.WithSession(sid).Info("session started", zap.String("identity", "activeuser"))
package logging
