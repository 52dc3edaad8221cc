package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appConfig "github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/core"
	"github.com/Mirai3103/remote-judge/internal/core/sandbox"
	natsClient "github.com/Mirai3103/remote-judge/internal/nats"
	"github.com/Mirai3103/remote-judge/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "consume submissions from NATS and publish verdicts",
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting runner service", zap.String("natsUrl", cfg.NATS.URL))

	nc, err := connectNATS(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	executor, err := sandbox.NewExecutor(cfg.Runner, cfg.Judge, logger)
	if err != nil {
		return fmt.Errorf("failed to create sandbox executor: %w", err)
	}

	publisher := natsClient.NewPublisher(nc, cfg.NATS.SubmissionResultSubj, logger)
	runner := core.NewRunner(executor, publisher, cfg.Judge, logger)

	// Jobs outlive the signal context so accepted submissions can finish.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	jobHandler := worker.NewJobHandler(jobCtx, runner, cfg.Runner, logger)

	subscriber := natsClient.NewSubscriber(nc, cfg.NATS.SubmissionCreatedSubj, cfg.NATS.QueueGroup, jobHandler, logger)
	subscription, err := subscriber.SubscribeToSubmissions()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down runner service", zap.Int64("activeJobs", jobHandler.ActiveJobs()))
		drainSubscription(subscription, logger)
		jobHandler.Shutdown()
		if err := nc.Drain(); err != nil {
			logger.Warn("failed to drain NATS connection", zap.Error(err))
		}
		return nil
	})

	logger.Info("runner service is listening for submissions",
		zap.String("subject", cfg.NATS.SubmissionCreatedSubj),
		zap.String("queueGroup", cfg.NATS.QueueGroup))
	return g.Wait()
}

func connectNATS(cfg appConfig.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("runner-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWaitSec)*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to NATS: %w", err)
	}
	return nc, nil
}

// drainSubscription stops delivery and waits for callbacks already queued on
// the subscription, so every message it accepted has reached the job handler.
func drainSubscription(sub *nats.Subscription, logger *zap.Logger) {
	if err := sub.Drain(); err != nil {
		logger.Warn("failed to drain subscription", zap.Error(err))
		return
	}
	deadline := time.Now().Add(shutdownTimeout)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sub.IsValid() {
		logger.Warn("subscription still draining at shutdown deadline")
	}
}
