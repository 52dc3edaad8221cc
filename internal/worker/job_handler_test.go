package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/models"
)

type blockingEvaluator struct {
	release  chan struct{}
	running  atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	mu       sync.Mutex
	replies  []string
	deadline time.Duration
}

func (e *blockingEvaluator) ProcessSubmission(ctx context.Context, sub models.Submission, replyTo string) models.EvaluationResult {
	e.calls.Add(1)
	n := e.running.Add(1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if dl, ok := ctx.Deadline(); ok {
		e.mu.Lock()
		e.deadline = time.Until(dl)
		e.mu.Unlock()
	}
	e.mu.Lock()
	e.replies = append(e.replies, replyTo)
	e.mu.Unlock()

	if e.release != nil {
		<-e.release
	}
	e.running.Add(-1)
	return models.EvaluationResult{Status: models.Accepted, TotalTestCases: len(sub.TestCases), TestCasesPassed: len(sub.TestCases)}
}

func validSubmission(id string) models.Submission {
	return models.Submission{ID: id, Language: "python", Code: "print(1)", TestCases: []models.TestCase{{ExpectedOutput: "1"}}}
}

func TestHandleSubmissionRejectsInvalid(t *testing.T) {
	eval := &blockingEvaluator{}
	h := NewJobHandler(context.Background(), eval, config.RunnerConfig{}, zaptest.NewLogger(t))

	empty := validSubmission("empty")
	empty.TestCases = nil
	h.HandleSubmission(empty, "")

	other := validSubmission("cpp")
	other.Language = "cpp"
	h.HandleSubmission(other, "")

	assert.Zero(t, eval.calls.Load())
}

func TestHandleSubmissionBoundsConcurrency(t *testing.T) {
	eval := &blockingEvaluator{release: make(chan struct{})}
	h := NewJobHandler(context.Background(), eval, config.RunnerConfig{MaxConcurrentJobs: 2}, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		h.Dispatch(validSubmission("s"), "")
	}

	require.Eventually(t, func() bool { return eval.running.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), h.ActiveJobs())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), eval.running.Load())

	close(eval.release)
	require.Eventually(t, func() bool { return eval.calls.Load() == 5 }, 5*time.Second, 10*time.Millisecond)
	h.Wait()

	assert.Equal(t, int32(2), eval.peak.Load())
	assert.Zero(t, h.ActiveJobs())
}

func TestHandleSubmissionPassesReplyAndTimeout(t *testing.T) {
	eval := &blockingEvaluator{}
	h := NewJobHandler(context.Background(), eval, config.RunnerConfig{JobTimeoutSec: 60, IntakeRatePerSec: 100, IntakeBurst: 5}, nil)

	h.HandleSubmission(validSubmission("s"), "_INBOX.abc")

	assert.Equal(t, []string{"_INBOX.abc"}, eval.replies)
	assert.InDelta(t, 60.0, eval.deadline.Seconds(), 5.0)
}

func TestHandleSubmissionAbortsOnShutdown(t *testing.T) {
	eval := &blockingEvaluator{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	h := NewJobHandler(ctx, eval, config.RunnerConfig{MaxConcurrentJobs: 1}, zaptest.NewLogger(t))

	h.Dispatch(validSubmission("first"), "")
	require.Eventually(t, func() bool { return eval.running.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		h.HandleSubmission(validSubmission("second"), "")
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queued submission did not abort after shutdown")
	}
	close(eval.release)
	h.Wait()
	assert.Equal(t, int32(1), eval.calls.Load())
}

func TestRejectionReason(t *testing.T) {
	assert.Equal(t, "no_test_cases", rejectionReason(models.ErrNoTestCases))
	assert.Equal(t, "unsupported_language", rejectionReason(models.ErrUnsupportedLanguage))
}

func TestDispatchIsTrackedBeforeWait(t *testing.T) {
	for i := 0; i < 50; i++ {
		eval := &blockingEvaluator{}
		h := NewJobHandler(context.Background(), eval, config.RunnerConfig{MaxConcurrentJobs: 4}, nil)

		require.True(t, h.Dispatch(validSubmission("s"), "_INBOX.x"))
		h.Wait()

		require.Equal(t, int32(1), eval.calls.Load(), "Wait returned before the dispatched job ran")
	}
}

func TestShutdownRejectsLateDispatch(t *testing.T) {
	eval := &blockingEvaluator{release: make(chan struct{})}
	h := NewJobHandler(context.Background(), eval, config.RunnerConfig{}, zaptest.NewLogger(t))

	require.True(t, h.Dispatch(validSubmission("running"), ""))
	require.Eventually(t, func() bool { return eval.running.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		h.Shutdown()
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.closed
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, h.Dispatch(validSubmission("late"), ""))
	select {
	case <-stopped:
		t.Fatal("Shutdown returned while a job was still running")
	default:
	}

	close(eval.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return after the running job finished")
	}
	assert.Equal(t, int32(1), eval.calls.Load())
}
