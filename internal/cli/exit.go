package cli

import (
	"errors"
	"fmt"
)

// Exit codes. The numbering is part of the tool's operator contract:
// monitoring distinguishes credential problems from network problems from
// configuration problems by code alone.
const (
	ExitSuccess = 0

	// Output and attribute errors.
	ExitOutputUnexpected = 1 // unexpected failure during search or target operations
	ExitOutputPath       = 2 // output path not usable
	ExitOutputAttribute  = 3 // requested directory attribute missing from a result

	// Connection errors.
	ExitConnectUnexpected = 11
	ExitConnectBind       = 12 // authentication failed
	ExitConnectTimeout    = 13 // host unreachable or timed out

	// Config errors.
	ExitConfigUnexpected = 21
	ExitConfigPath       = 22 // config file not found
	ExitConfigParse      = 23 // config file not valid JSON/YAML
)

// ExitError carries a stable process exit code up to main. Commands
// return it instead of calling os.Exit so every stage stays unit-testable.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError attaches an exit code and operator-facing message to an
// underlying error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, defaulting to
// ExitOutputUnexpected for anything untyped.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitOutputUnexpected
}
