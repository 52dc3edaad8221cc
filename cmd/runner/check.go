package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-judge/internal/core"
	"github.com/Mirai3103/remote-judge/internal/core/sandbox"
	"github.com/Mirai3103/remote-judge/internal/scenario"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "run scenario files against the local interpreter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "scenario TOML file",
				Required: true,
			},
		},
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cases, err := scenario.Parse(cmd.String("file"))
	if err != nil {
		return err
	}

	executor, err := sandbox.NewExecutor(cfg.Runner, cfg.Judge, logger)
	if err != nil {
		return err
	}
	runner := core.NewRunner(executor, nil, cfg.Judge, logger)

	logger.Debug("running scenarios", zap.Int("count", len(cases)))
	outcomes := scenario.Run(ctx, runner, cases)
	if failed := scenario.Render(os.Stdout, outcomes); failed > 0 {
		return cli.Exit("", 1)
	}
	if len(outcomes) < len(cases) {
		return cli.Exit("interrupted", 130)
	}
	return nil
}
