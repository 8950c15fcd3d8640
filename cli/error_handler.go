package cli

import (
	"fmt"
	"os"

	"github.com/grovetools/canopy/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ Configuration not found. Create a canopy.yml in your project or in the XDG config directory.\n")
		return err

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run 'canopy config validate' for details.\n")
		return err

	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(os.Stderr, "❌ The canopy daemon is not running.\n")
		fmt.Fprintf(os.Stderr, "Start it with 'canopy daemon start'.\n")
		return err

	case errors.ErrCodeDaemonAlreadyRunning:
		if canopyErr, ok := err.(*errors.CanopyError); ok {
			fmt.Fprintf(os.Stderr, "❌ The canopy daemon is already running (PID %v)\n", canopyErr.Details["pid"])
			fmt.Fprintf(os.Stderr, "Stop it first with 'canopy daemon stop'.\n")
		}
		return err

	case errors.ErrCodeListenFailed:
		if canopyErr, ok := err.(*errors.CanopyError); ok {
			fmt.Fprintf(os.Stderr, "❌ Could not bind the hook listener on port %v\n", canopyErr.Details["port"])
			fmt.Fprintf(os.Stderr, "Another process may hold the port; change listener.port in canopy.yml\n")
		}
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		// If verbose mode, show full error details
		if h.Verbose {
			if canopyErr, ok := err.(*errors.CanopyError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", canopyErr.ToJSON())
			}
		}
		return err
	}
}
