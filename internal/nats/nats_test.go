package nats

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mirai3103/remote-judge/internal/models"
)

func runServer(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: server.RANDOM_PORT, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	t.Cleanup(ns.Shutdown)
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server did not start")

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

// echoProcessor answers every submission with an accepted result.
type echoProcessor struct {
	publisher *Publisher
	mu        sync.Mutex
	seen      []models.Submission
}

func (p *echoProcessor) Dispatch(sub models.Submission, replyTo string) bool {
	p.mu.Lock()
	p.seen = append(p.seen, sub)
	p.mu.Unlock()
	_ = p.publisher.PublishSubmissionResult(models.SubmissionResult{
		SubmissionID: sub.ID,
		ProblemID:    sub.ProblemID,
		Result:       models.EvaluationResult{Status: models.Accepted, TotalTestCases: len(sub.TestCases), TestCasesPassed: len(sub.TestCases)},
	}, replyTo)
	return true
}

func TestRequestReplyRoundTrip(t *testing.T) {
	nc := runServer(t)
	logger := zaptest.NewLogger(t)

	results, err := nc.SubscribeSync("judge.results")
	require.NoError(t, err)

	proc := &echoProcessor{publisher: NewPublisher(nc, "judge.results", logger)}
	sub, err := NewSubscriber(nc, "judge.created", "", proc, logger).SubscribeToSubmissions()
	require.NoError(t, err)
	defer sub.Unsubscribe()

	payload, err := json.Marshal(models.Submission{
		ID:        "s-42",
		ProblemID: "p-7",
		Code:      `print("hi")`,
		TestCases: []models.TestCase{{InputData: "", ExpectedOutput: "hi"}},
	})
	require.NoError(t, err)

	reply, err := nc.Request("judge.created", payload, 5*time.Second)
	require.NoError(t, err)

	var got models.SubmissionResult
	require.NoError(t, json.Unmarshal(reply.Data, &got))
	assert.Equal(t, "s-42", got.SubmissionID)
	assert.Equal(t, "p-7", got.ProblemID)
	assert.Equal(t, models.Accepted, got.Result.Status)
	assert.Equal(t, 1, got.Result.TotalTestCases)

	broadcast, err := results.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, string(reply.Data), string(broadcast.Data))
}

func TestSubscriberDropsInvalidPayload(t *testing.T) {
	nc := runServer(t)
	proc := &echoProcessor{publisher: NewPublisher(nc, "", nil)}
	sub, err := NewSubscriber(nc, "", "", proc, zaptest.NewLogger(t)).SubscribeToSubmissions()
	require.NoError(t, err)
	defer sub.Unsubscribe()

	results, err := nc.SubscribeSync(DefaultSubmissionResultSubject)
	require.NoError(t, err)

	require.NoError(t, nc.Publish(DefaultSubmissionCreatedSubject, []byte("{not json")))
	require.NoError(t, nc.Publish(DefaultSubmissionCreatedSubject, []byte(`{"id":"ok","testCases":[{"expected_output":"1"}]}`)))

	msg, err := results.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"submissionId":"ok"`)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.seen, 1)
	assert.Equal(t, "1", proc.seen[0].TestCases[0].ExpectedOutput)
}
