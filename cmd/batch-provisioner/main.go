package main

import (
	"context"
	"os"

	"github.com/savaki/batch-provisioner/cmd/batch-provisioner/commands"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "batch-provisioner",
		Usage: "Provision EC2 batch workers from uploaded artifacts",
		Description: `Uploading a .jar artifact to the watched bucket creates a CloudFormation
stack named after the artifact. The instance boots the agent, which runs the
artifact with the parameters stored under the artifact's namespace.

This tool provides commands for:
  - Managing namespace parameters
  - Launching and inspecting stacks by hand
  - Running the agent on a provisioned instance`,
		Commands: []*cli.Command{
			commands.LaunchCommand(&logger),
			commands.StatusCommand(&logger),
			commands.HistoryCommand(&logger),
			commands.ConfigCommand(&logger),
			commands.AgentCommand(&logger),
			commands.IdentityCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
