package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/models"
)

const (
	DefaultSubmissionResultSubject = "submission.result"
)

type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewPublisher(nc *nats.Conn, subject string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubmissionResultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, subject: subject, logger: logger.Named("publisher")}
}

// PublishSubmissionResult sends result on the result subject and, when
// replyTo is set, answers the original request as well.
func (p *Publisher) PublishSubmissionResult(result models.SubmissionResult, replyTo string) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal submission result: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	if replyTo != "" {
		if err := p.nc.Publish(replyTo, data); err != nil {
			return fmt.Errorf("reply to %s: %w", replyTo, err)
		}
	}

	p.logger.Debug("published result",
		zap.String("submissionId", result.SubmissionID),
		zap.String("subject", p.subject),
		zap.String("status", string(result.Result.Status)),
		zap.Bool("replied", replyTo != ""))
	return nil
}
