package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/metrics"
	"github.com/Mirai3103/remote-judge/internal/models"
)

const defaultJobTimeout = 5 * time.Minute

// Evaluator runs a validated submission to completion and delivers its result.
type Evaluator interface {
	ProcessSubmission(ctx context.Context, submission models.Submission, replyTo string) models.EvaluationResult
}

type JobHandler struct {
	runner       Evaluator
	jobSemaphore chan struct{}
	limiter      *rate.Limiter
	active       *xsync.Counter
	jobTimeout   time.Duration
	baseCtx      context.Context
	logger       *zap.Logger

	mu       sync.Mutex // guards closed and inflight.Add
	closed   bool
	inflight sync.WaitGroup
}

// NewJobHandler builds a handler bounded by runnerCfg. ctx is the parent of
// every job context; cancelling it aborts running evaluations.
func NewJobHandler(ctx context.Context, runner Evaluator, runnerCfg config.RunnerConfig, logger *zap.Logger) *JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("worker")

	var sem chan struct{}
	if maxJobs := runnerCfg.MaxConcurrentJobs; maxJobs > 0 {
		sem = make(chan struct{}, maxJobs)
		logger.Info("job handler initialized", zap.Int("maxConcurrentJobs", maxJobs))
	} else {
		logger.Info("job handler initialized without a concurrency limit")
	}

	var limiter *rate.Limiter
	if runnerCfg.IntakeRatePerSec > 0 {
		burst := runnerCfg.IntakeBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(runnerCfg.IntakeRatePerSec), burst)
	}

	timeout := defaultJobTimeout
	if runnerCfg.JobTimeoutSec > 0 {
		timeout = time.Duration(runnerCfg.JobTimeoutSec) * time.Second
	}

	return &JobHandler{
		runner:       runner,
		jobSemaphore: sem,
		limiter:      limiter,
		active:       xsync.NewCounter(),
		jobTimeout:   timeout,
		baseCtx:      ctx,
		logger:       logger,
	}
}

// Dispatch registers the submission as in flight and evaluates it on a new
// goroutine. It returns false once Shutdown has been called.
func (h *JobHandler) Dispatch(submission models.Submission, replyTo string) bool {
	if !h.track() {
		metrics.RecordRejection("shutdown")
		h.logger.Warn("rejected submission after shutdown", zap.String("submissionId", submission.ID))
		return false
	}
	go func() {
		defer h.inflight.Done()
		h.handle(submission, replyTo)
	}()
	return true
}

// HandleSubmission evaluates the submission on the calling goroutine.
func (h *JobHandler) HandleSubmission(submission models.Submission, replyTo string) {
	if !h.track() {
		metrics.RecordRejection("shutdown")
		return
	}
	defer h.inflight.Done()
	h.handle(submission, replyTo)
}

func (h *JobHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.inflight.Add(1)
	return true
}

// handle validates, waits for an intake slot and evaluates the submission.
// Invalid submissions are counted and dropped.
func (h *JobHandler) handle(submission models.Submission, replyTo string) {
	logger := h.logger.With(zap.String("submissionId", submission.ID))

	if err := submission.Validate(); err != nil {
		metrics.RecordRejection(rejectionReason(err))
		logger.Warn("rejected submission", zap.Error(err))
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(h.baseCtx); err != nil {
			metrics.RecordRejection("shutdown")
			logger.Warn("intake aborted", zap.Error(err))
			return
		}
	}

	if h.jobSemaphore != nil {
		waitStart := time.Now()
		select {
		case h.jobSemaphore <- struct{}{}:
		case <-h.baseCtx.Done():
			metrics.RecordRejection("shutdown")
			logger.Warn("intake aborted while waiting for a slot", zap.Error(h.baseCtx.Err()))
			return
		}
		defer func() { <-h.jobSemaphore }()
		logger.Debug("slot acquired", zap.Duration("waited", time.Since(waitStart)))
	}

	h.active.Inc()
	metrics.SetActiveJobs(h.active.Value())
	defer func() {
		h.active.Dec()
		metrics.SetActiveJobs(h.active.Value())
	}()

	ctx, cancel := context.WithTimeout(h.baseCtx, h.jobTimeout)
	defer cancel()

	result := h.runner.ProcessSubmission(ctx, submission, replyTo)
	logger.Info("submission processed",
		zap.String("status", string(result.Status)),
		zap.Int("passed", result.TestCasesPassed),
		zap.Int("total", result.TotalTestCases))
}

// ActiveJobs reports how many submissions are being evaluated right now.
func (h *JobHandler) ActiveJobs() int64 {
	return h.active.Value()
}

// Wait blocks until every dispatched submission has finished.
func (h *JobHandler) Wait() {
	h.inflight.Wait()
}

// Shutdown stops accepting submissions and waits for the dispatched ones.
func (h *JobHandler) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.inflight.Wait()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNoTestCases):
		return "no_test_cases"
	case errors.Is(err, models.ErrUnsupportedLanguage):
		return "unsupported_language"
	case errors.Is(err, models.ErrInvalidEncoding):
		return "invalid_encoding"
	default:
		return "invalid"
	}
}
