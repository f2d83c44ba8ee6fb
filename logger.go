package serviced

// Logger defines the interface for exporter logging.
// The exporter uses structured logging with key-value pairs so host
// applications can route framework output through whatever structured
// logging library they already use (slog, zap, logrus, ...).
//
// The variadic arguments are alternating key-value pairs:
//
//	logger.Info("module persisted", "module", "Payments", "path", path)
//
// Resolver-binding failures are reported exclusively through this interface:
// the fail-soft binding contract logs them and suppresses the error, so the
// log stream is the only place they surface.
type Logger interface {
	// Info logs a normal pipeline event (module created, metadata applied, ...).
	Info(msg string, args ...any)

	// Error logs a failure worth operator attention.
	Error(msg string, args ...any)

	// Warn logs an unusual but non-fatal condition, such as registration
	// warnings reported by the transactional runtime.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostics, such as each resolver-binding step.
	Debug(msg string, args ...any)
}
