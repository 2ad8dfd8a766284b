package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/exitcode"
)

// ExitError carries the process exit code chosen by a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// mapExitCode prefers an explicit ExitError, then recognizes config and
// cancellation errors that escaped without one, then cobra's usage errors.
func mapExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}
	var invalid *config.ValidationError
	if errors.As(err, &invalid) {
		return exitcode.InvalidConfig
	}
	if errors.Is(err, context.Canceled) {
		return exitcode.Interrupted
	}
	message := err.Error()
	if strings.Contains(message, "unknown command") ||
		strings.Contains(message, "unknown flag") ||
		strings.Contains(message, "accepts ") {
		return exitcode.InvalidUsage
	}
	return exitcode.RuntimeFailure
}
