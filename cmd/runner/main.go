package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	appConfig "github.com/Mirai3103/remote-judge/internal/config"
	"github.com/Mirai3103/remote-judge/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "runner",
		Usage: "evaluate Python submissions against test cases",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "directory containing config.yaml",
			},
		},
		Commands: []*cli.Command{serveCommand(), checkCommand()},
		Action:   runServe,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cli.Command) (*appConfig.Config, *zap.Logger, error) {
	var paths []string
	if dir := cmd.String("config"); dir != "" {
		paths = append(paths, dir)
	}
	cfg, err := appConfig.LoadConfig(paths...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
