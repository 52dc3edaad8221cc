package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/core/harness"
	"github.com/Mirai3103/remote-judge/internal/core/sandbox"
	"github.com/Mirai3103/remote-judge/internal/metrics"
	"github.com/Mirai3103/remote-judge/internal/models"
)

// ResultPublisher delivers a finished verdict. replyTo is the reply subject of
// the inbound request, empty when the submission was not a request.
type ResultPublisher interface {
	PublishSubmissionResult(result models.SubmissionResult, replyTo string) error
}

// Runner evaluates submissions test case by test case.
type Runner struct {
	executor  sandbox.Executor
	publisher ResultPublisher
	judge     config.JudgeConfig
	generator harness.Generator
	logger    *zap.Logger
}

// NewRunner creates a Runner. publisher may be nil when results are only
// consumed through Evaluate.
func NewRunner(executor sandbox.Executor, publisher ResultPublisher, judge config.JudgeConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		executor:  executor,
		publisher: publisher,
		judge:     judge,
		generator: harness.Generator{UseStderr: judge.SideChannel == config.SideChannelStderr},
		logger:    logger.Named("runner"),
	}
}

// ProcessSubmission evaluates submission and publishes the aggregate result.
func (r *Runner) ProcessSubmission(ctx context.Context, submission models.Submission, replyTo string) models.EvaluationResult {
	result := r.Evaluate(ctx, submission)
	if r.publisher == nil {
		return result
	}

	err := r.publisher.PublishSubmissionResult(models.SubmissionResult{
		SubmissionID: submission.ID,
		ProblemID:    submission.ProblemID,
		Result:       result,
	}, replyTo)
	if err != nil {
		r.logger.Error("failed to publish result", zap.String("submissionId", submission.ID), zap.Error(err))
	}
	return result
}

// Evaluate runs every test case in order and stops at the first one that
// errors or runs out of time. It always returns a complete result.
func (r *Runner) Evaluate(ctx context.Context, submission models.Submission) (result models.EvaluationResult) {
	logger := r.logger.With(zap.String("submissionId", submission.ID))
	limit := r.timeLimit(submission)

	result = models.EvaluationResult{
		TotalTestCases: len(submission.TestCases),
		Outputs:        make([]models.TestOutput, 0, len(submission.TestCases)),
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("evaluation panicked", zap.Any("panic", rec), zap.Stack("stack"))
			result.Status = models.RuntimeError
			result.SetError(fmt.Sprint(rec))
		}
		metrics.RecordEvaluation(string(result.Status))
		logger.Info("evaluation finished",
			zap.String("status", string(result.Status)),
			zap.Int("passed", result.TestCasesPassed),
			zap.Int("total", result.TotalTestCases),
			zap.Float64("executionTime", result.ExecutionTime))
	}()

	var hadError, hadTimeout bool

loop:
	for i, tc := range submission.TestCases {
		if !utf8.ValidString(tc.InputData) {
			hadError = true
			result.SetError(models.ErrInvalidEncoding.Error())
			break
		}

		markers := harness.NewRunMarkers(r.judge.UniqueMarkers)
		req := sandbox.RunRequest{
			SubmissionID: submission.ID,
			TestCaseID:   tc.ID,
			Wrapper:      r.generator.Generate(submission.Code, tc.InputData, markers),
			Markers:      markers,
			TimeLimit:    limit,
		}

		started := time.Now()
		res, err := r.executor.Execute(ctx, req)
		elapsed := time.Since(started)
		metrics.RecordTestCaseDuration(elapsed)

		if err != nil {
			logger.Error("executor failed", zap.Int("testCase", i), zap.Error(err))
			hadError = true
			result.SetError(err.Error())
			break
		}

		logger.Debug("test case finished",
			zap.Int("testCase", i),
			zap.String("status", string(res.Status)),
			zap.Duration("elapsed", elapsed))

		switch res.Status {
		case models.RunError:
			hadError = true
			result.SetError(res.Error)
			break loop
		case models.RunTimeout:
			hadTimeout = true
			result.ExecutionTime = limit.Seconds()
			result.SetError(timeLimitMessage(limit))
			break loop
		}

		actual, expected := strings.TrimSpace(res.Output), strings.TrimSpace(tc.ExpectedOutput)
		passed := actual == expected
		if passed {
			result.TestCasesPassed++
		}
		result.Outputs = append(result.Outputs, models.TestOutput{
			TestCaseID: tc.ID,
			Input:      tc.InputData,
			Expected:   expected,
			Actual:     actual,
			Passed:     passed,
			Hidden:     tc.IsHidden,
		})
		result.ExecutionTime = max(result.ExecutionTime, res.ExecutionTime)
		result.MemoryUsed = max(result.MemoryUsed, res.MemoryUsedKb)
	}

	result.Status = models.ResolveStatus(result.TestCasesPassed, result.TotalTestCases, hadError, hadTimeout)
	return result
}

func (r *Runner) timeLimit(submission models.Submission) time.Duration {
	if submission.TimeLimitSec > 0 {
		return time.Duration(submission.TimeLimitSec * float64(time.Second))
	}
	return r.judge.TimeLimit()
}

func timeLimitMessage(limit time.Duration) string {
	return "Time limit exceeded (" + strconv.FormatFloat(limit.Seconds(), 'f', -1, 64) + "s)"
}
