package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *CanopyError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *CanopyError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// ProtocolError creates a malformed hook payload error.
// These are rejected at the listener boundary; no state is mutated.
func ProtocolError(reason string) *CanopyError {
	return New(ErrCodeProtocol, fmt.Sprintf("malformed hook payload: %s", reason))
}

// DiscoveryError wraps a failed or partial OS process query.
// Callers degrade to incomplete fields rather than aborting the scan.
func DiscoveryError(err error) *CanopyError {
	return Wrap(err, ErrCodeDiscovery, "process discovery failed")
}

// CorrelationMiss creates an unresolvable-session error.
func CorrelationMiss(sessionID string) *CanopyError {
	return New(ErrCodeCorrelationMiss,
		fmt.Sprintf("no live process could be bound to session %q", sessionID)).
		WithDetail("session_id", sessionID)
}

// ParseError creates a transcript record parse error.
// The offending record is skipped; the rest of the file is processed.
func ParseError(path string, line int, err error) *CanopyError {
	return Wrap(err, ErrCodeParse, fmt.Sprintf("unparsable transcript record at %s:%d", path, line)).
		WithDetail("path", path).
		WithDetail("line", line)
}

// DaemonNotRunning creates an error for client operations without a daemon.
func DaemonNotRunning() *CanopyError {
	return New(ErrCodeDaemonNotRunning, "canopyd is not running; start it with 'canopy daemon start'")
}

// DaemonAlreadyRunning creates an error for a second daemon instance.
func DaemonAlreadyRunning(pid int) *CanopyError {
	return New(ErrCodeDaemonAlreadyRunning, fmt.Sprintf("canopyd already running with PID %d", pid)).
		WithDetail("pid", pid)
}

// ListenFailed creates an error for a hook listener bind failure.
func ListenFailed(port int, err error) *CanopyError {
	return Wrap(err, ErrCodeListenFailed, fmt.Sprintf("failed to bind hook listener on port %d", port)).
		WithDetail("port", port)
}
