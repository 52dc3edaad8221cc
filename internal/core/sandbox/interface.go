package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/core/harness"
	"github.com/Mirai3103/remote-judge/internal/models"
)

type Type string

const (
	// DirectSandbox runs the interpreter as a plain child process. The OS
	// process boundary is the only isolation.
	DirectSandbox Type = "direct"
)

// RunRequest describes one run of a generated wrapper.
type RunRequest struct {
	SubmissionID string
	TestCaseID   string
	Wrapper      string          // wrapper program text
	Markers      harness.Markers // markers the wrapper was generated with
	TimeLimit    time.Duration
}

// ExecuteResult is the outcome of one run.
type ExecuteResult struct {
	Status        models.RunStatus
	Output        string  // captured program output, as reported by the wrapper
	ExecutionTime float64 // seconds; the budget itself on timeout
	MemoryUsedKb  int     // 0 unless memory sampling is enabled
	Error         string
	ExitCode      int
	Stdout        string // raw process stdout
	Stderr        string // raw process stderr
}

// Executor runs wrapper programs. Implementations must remove every artifact
// they create before returning.
type Executor interface {
	// Execute runs req and waits for it to finish or exceed its time limit.
	// A returned error means the executor itself failed; faults of the
	// submitted code are reported through ExecuteResult.
	Execute(ctx context.Context, req RunRequest) (*ExecuteResult, error)

	ID() string
}

// NewExecutor builds the executor selected by rc.SandboxType.
func NewExecutor(rc config.RunnerConfig, jc config.JudgeConfig, logger *zap.Logger) (Executor, error) {
	switch Type(rc.SandboxType) {
	case DirectSandbox, "":
		return newDirectExecutor(rc, jc, logger)
	default:
		return nil, fmt.Errorf("unsupported sandbox type %q", rc.SandboxType)
	}
}
