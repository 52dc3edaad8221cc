package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/core/harness"
	"github.com/Mirai3103/remote-judge/internal/models"
)

const (
	// DefaultEnvPath is the PATH given to the interpreter.
	DefaultEnvPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	// wrapperFileName is the name of the wrapper inside its run directory.
	wrapperFileName = "main.py"
	// streamDrainDelay bounds how long output is drained after the process
	// exits, in case a detached descendant still holds a pipe open.
	streamDrainDelay = 500 * time.Millisecond
)

// directExecutor runs the wrapper with the configured interpreter on the host.
// It is not a security boundary on its own.
type directExecutor struct {
	cfg    config.RunnerConfig
	judge  config.JudgeConfig
	logger *zap.Logger
}

func newDirectExecutor(rc config.RunnerConfig, jc config.JudgeConfig, logger *zap.Logger) (*directExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jc.Interpreter == "" {
		jc.Interpreter = config.DefaultJudgeConfig().Interpreter
	}
	if rc.SandboxBaseDir == "" {
		rc.SandboxBaseDir = os.TempDir()
	}
	if err := os.MkdirAll(rc.SandboxBaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox base dir %s: %w", rc.SandboxBaseDir, err)
	}
	return &directExecutor{cfg: rc, judge: jc, logger: logger}, nil
}

func (e *directExecutor) ID() string {
	return "direct_executor_v2"
}

// Execute writes the wrapper into a fresh run directory, runs it and removes
// the directory on every path.
func (e *directExecutor) Execute(ctx context.Context, req RunRequest) (*ExecuteResult, error) {
	logger := e.logger.With(
		zap.String("executor", e.ID()),
		zap.String("submissionId", req.SubmissionID),
		zap.String("testCaseId", req.TestCaseID),
	)

	runDir, err := os.MkdirTemp(e.cfg.SandboxBaseDir, "run-*")
	if err != nil {
		return nil, &Error{Type: ErrInternal, Message: "failed to create run directory", Cause: err}
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			logger.Warn("failed to remove run directory", zap.String("dir", runDir), zap.Error(err))
		}
	}()

	wrapperPath := filepath.Join(runDir, wrapperFileName)
	if err := os.WriteFile(wrapperPath, []byte(req.Wrapper), 0o600); err != nil {
		return nil, &Error{Type: ErrInternal, Message: "failed to write wrapper", Cause: err}
	}

	stdout := newLimitedBuffer(e.judge.MaxOutputBytes)
	stderr := newLimitedBuffer(e.judge.MaxOutputBytes)

	cmd := exec.Command(e.judge.Interpreter, wrapperPath)
	cmd.Dir = runDir
	cmd.Env = []string{
		"PATH=" + DefaultEnvPath,
		"HOME=" + runDir,
		"LANG=C.UTF-8",
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
	}
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = streamDrainDelay
	setProcessGroup(cmd)

	var side *sideChannel
	if e.judge.SideChannel != config.SideChannelStderr {
		side, err = newSideChannel(e.judge.MaxOutputBytes)
		if err != nil {
			return nil, &Error{Type: ErrInternal, Message: "failed to create side channel", Cause: err}
		}
		defer side.Close()
		cmd.ExtraFiles = []*os.File{side.w}
	}

	runCtx, cancel := context.WithTimeout(ctx, req.TimeLimit)
	defer cancel()

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Error("failed to start interpreter", zap.String("interpreter", e.judge.Interpreter), zap.Error(err))
		return nil, &Error{Type: ErrCmdStart, Message: "failed to start command", Cause: err}
	}
	pid := cmd.Process.Pid
	logger.Debug("process started", zap.Int("pid", pid))

	if side != nil {
		side.start()
	}

	stopMemory := func() int { return 0 }
	if e.judge.MeasureMemory {
		stopMemory = startMemoryMonitor(pid, logger)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.Wait()
	}()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-errChan:
	case <-runCtx.Done():
		timedOut = true
		if err := killProcessGroup(cmd.Process); err != nil {
			logger.Warn("failed to kill process on timeout", zap.Int("pid", pid), zap.Error(err))
		}
		waitErr = <-errChan
	}
	elapsed := time.Since(startTime)
	peakKb := stopMemory()

	var sideText string
	if side != nil {
		sideText = side.collect(streamDrainDelay)
	}

	if timedOut {
		logger.Info("process killed after time limit",
			zap.Duration("limit", req.TimeLimit), zap.Duration("elapsed", elapsed), zap.NamedError("waitErr", waitErr))
		return &ExecuteResult{
			Status:        models.RunTimeout,
			ExecutionTime: req.TimeLimit.Seconds(),
			Error:         "Time limit exceeded",
			ExitCode:      -1,
			Stdout:        stdout.String(),
			Stderr:        stderr.String(),
		}, nil
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// The process exited but something it spawned kept a stream open.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			logger.Error("wait failed", zap.Error(waitErr))
			return nil, &Error{Type: ErrCmdWait, Message: "command wait failed with unexpected error", Cause: waitErr}
		}
	}

	if stdout.Truncated() || stderr.Truncated() || (side != nil && side.buf.Truncated()) {
		logger.Warn("process output truncated", zap.Int("limitBytes", e.judge.MaxOutputBytes))
	}

	raw := sideText
	if side == nil {
		raw = stderr.String()
	}
	parsed := harness.Parse(raw, req.Markers)

	result := &ExecuteResult{
		Status:        parsed.Status,
		Output:        parsed.Output,
		ExecutionTime: parsed.ExecutionTime,
		MemoryUsedKb:  peakKb,
		Error:         parsed.Error,
		ExitCode:      exitCode,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
	}

	// A crash outside the guarded scope leaves no error segment behind, e.g.
	// a syntax error that stops the wrapper from loading at all.
	if exitCode != 0 && parsed.Status != models.RunError {
		result.Status = models.RunError
		result.Output = ""
		result.ExecutionTime = 0
		result.Error = crashDiagnostic(stderr.String(), exitCode)
	}

	logger.Debug("process finished",
		zap.String("status", string(result.Status)),
		zap.Int("exitCode", exitCode),
		zap.Float64("reportedSeconds", result.ExecutionTime),
		zap.Duration("elapsed", elapsed),
		zap.Int("memoryKb", peakKb))
	return result, nil
}

// crashDiagnostic picks the error text for a non-zero exit without an error
// segment: the raw stderr when there is any, a generic message otherwise.
func crashDiagnostic(stderr string, exitCode int) string {
	if strings.TrimSpace(stderr) != "" {
		return stderr
	}
	return fmt.Sprintf("process exited with code %d", exitCode)
}

// sideChannel is the pipe the wrapper reports through in fd mode.
type sideChannel struct {
	r, w *os.File
	buf  *limitedBuffer
	done chan struct{}
}

func newSideChannel(maxBytes int) (*sideChannel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &sideChannel{r: r, w: w, buf: newLimitedBuffer(maxBytes), done: make(chan struct{})}, nil
}

// start closes the parent's copy of the write end and begins draining.
func (s *sideChannel) start() {
	_ = s.w.Close()
	go func() {
		defer close(s.done)
		_, _ = io.Copy(s.buf, s.r)
	}()
}

// collect waits up to delay for the writer side to close, then returns what
// was read.
func (s *sideChannel) collect(delay time.Duration) string {
	select {
	case <-s.done:
	case <-time.After(delay):
		_ = s.r.Close()
		<-s.done
	}
	return s.buf.String()
}

func (s *sideChannel) Close() {
	_ = s.w.Close()
	_ = s.r.Close()
}
