package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/models"
)

const (
	DefaultSubmissionCreatedSubject = "submission.created"
	DefaultQueueGroup               = "runner-service-group"
)

// SubmissionProcessor takes ownership of one decoded submission. Dispatch
// must register the work before returning and must not block on evaluation.
// replyTo is the reply subject of the message, empty for plain publishes.
type SubmissionProcessor interface {
	Dispatch(submission models.Submission, replyTo string) bool
}

type Subscriber struct {
	nc         *nats.Conn
	subject    string
	queueGroup string
	handler    SubmissionProcessor
	logger     *zap.Logger
}

func NewSubscriber(nc *nats.Conn, subject, queueGroup string, handler SubmissionProcessor, logger *zap.Logger) *Subscriber {
	if subject == "" {
		subject = DefaultSubmissionCreatedSubject
	}
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		nc:         nc,
		subject:    subject,
		queueGroup: queueGroup,
		handler:    handler,
		logger:     logger.Named("subscriber"),
	}
}

// SubscribeToSubmissions joins the queue group and hands every decoded
// message to the processor from the subscription callback.
func (s *Subscriber) SubscribeToSubmissions() (*nats.Subscription, error) {
	subscription, err := s.nc.QueueSubscribe(s.subject, s.queueGroup, func(msg *nats.Msg) {
		var sub models.Submission
		if err := json.Unmarshal(msg.Data, &sub); err != nil {
			s.logger.Warn("dropping undecodable submission",
				zap.String("subject", msg.Subject), zap.Int("bytes", len(msg.Data)), zap.Error(err))
			return
		}
		s.logger.Debug("received submission", zap.String("submissionId", sub.ID), zap.Int("testCases", len(sub.TestCases)))
		if !s.handler.Dispatch(sub, msg.Reply) {
			s.logger.Warn("submission not accepted", zap.String("submissionId", sub.ID))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", s.subject, err)
	}

	s.logger.Info("subscribed", zap.String("subject", s.subject), zap.String("queueGroup", s.queueGroup))
	return subscription, nil
}
