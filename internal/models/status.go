package models

// Status is the terminal verdict of an evaluation. The four values below are
// the complete set.
type Status string

const (
	Accepted          Status = "accepted"
	WrongAnswer       Status = "wrong_answer"
	RuntimeError      Status = "runtime_error"
	TimeLimitExceeded Status = "time_limit_exceeded"
)

// Valid reports whether s is one of the four verdicts.
func (s Status) Valid() bool {
	switch s {
	case Accepted, WrongAnswer, RuntimeError, TimeLimitExceeded:
		return true
	}
	return false
}

// RunStatus is the outcome of a single sandboxed run, before grading.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
	RunTimeout RunStatus = "timeout"
)

// ResolveStatus maps aggregate counters to a verdict. An error wins over a
// timeout; accepted requires at least one test case.
func ResolveStatus(passed, total int, hadError, hadTimeout bool) Status {
	switch {
	case hadError:
		return RuntimeError
	case hadTimeout:
		return TimeLimitExceeded
	case total > 0 && passed == total:
		return Accepted
	default:
		return WrongAnswer
	}
}
