package cli

// Exit codes returned by the runbookgo binary.
const (
	ExitRuntime       = 1
	ExitUsage         = 2
	ExitTargetsFailed = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
}

func runtimeError(err error) *ExitError {
	return &ExitError{Code: ExitRuntime, Message: err.Error(), Err: err}
}
