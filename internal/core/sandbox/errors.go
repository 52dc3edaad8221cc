package sandbox

import "fmt"

type ErrorType string

const (
	ErrCmdStart ErrorType = "COMMAND_START_ERROR"
	ErrCmdWait  ErrorType = "COMMAND_WAIT_ERROR"
	ErrInternal ErrorType = "INTERNAL_SANDBOX_ERROR"
)

// Error is a failure of the executor itself, as opposed to a fault of the
// submitted code.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details string
}

func (se *Error) Error() string {
	if se.Cause != nil {
		return fmt.Sprintf("%s: %s (type: %s)", se.Message, se.Cause.Error(), se.Type)
	}
	return fmt.Sprintf("%s (type: %s)", se.Message, se.Type)
}

func (se *Error) Unwrap() error {
	return se.Cause
}
