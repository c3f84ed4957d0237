package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/orchestrator"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/savaki/batch-provisioner/internal/utils"
	"github.com/urfave/cli/v2"
)

// LaunchCommand creates a stack from local template and parameter files
func LaunchCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "launch",
		Usage: "Create a stack from a local template",
		Description: `Create a CloudFormation stack from local template and parameter files,
bypassing the S3 trigger. Useful while developing templates.

Examples:
  batch-provisioner launch --stack-name batch-test

  batch-provisioner launch --stack-name batch-test \
    --template ./cloudformation/template.yml \
    --params ./cloudformation/params.yml \
    --param InstanceType=t3.large \
    --timeout 30`,
		Flags: []cli.Flag{
			envFlag(),
			&cli.StringFlag{
				Name:     "stack-name",
				Aliases:  []string{"s"},
				Usage:    "Name of the stack to create",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Path to the template body",
				Value: "./cloudformation/template.yml",
			},
			&cli.StringFlag{
				Name:  "params",
				Usage: "Path to the template parameters (ParameterKey/ParameterValue list)",
				Value: "./cloudformation/params.yml",
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Override a template parameter (Key=Value), may be repeated",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Stack creation timeout in minutes",
				Value: 15,
			},
		},
		Action: func(c *cli.Context) error {
			templateBody, err := os.ReadFile(c.String("template"))
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			paramsBody, err := os.ReadFile(c.String("params"))
			if err != nil {
				return fmt.Errorf("failed to read params: %w", err)
			}

			overrides, err := utils.ParseParameterOverrides(c.StringSlice("param"))
			if err != nil {
				return err
			}

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			stsClient, err := di.Get[*sts.Client](container)
			if err != nil {
				return err
			}
			stacks, err := di.Get[*services.StackService](container)
			if err != nil {
				return err
			}

			return runLaunch(c.Context, c.App.Writer, stsClient, stacks, launchInput{
				StackName:      c.String("stack-name"),
				TemplateBody:   string(templateBody),
				ParamsBody:     string(paramsBody),
				Overrides:      overrides,
				TimeoutMinutes: int32(c.Int("timeout")),
			})
		},
	}
}

type launchInput struct {
	StackName      string
	TemplateBody   string
	ParamsBody     string
	Overrides      map[string]string
	TimeoutMinutes int32
}

func runLaunch(ctx context.Context, w io.Writer, caller services.STSAPI, stacks orchestrator.StackCreator, input launchInput) error {
	logger := zerolog.Ctx(ctx)

	identity, err := services.CallerIdentity(ctx, caller)
	if err != nil {
		return err
	}
	logger.Info().
		Str("account", identity.Account).
		Str("arn", identity.ARN).
		Msg("Using credentials")

	params, err := services.ParseTemplateParameters(input.ParamsBody)
	if err != nil {
		return err
	}

	created, err := stacks.CreateStack(ctx, services.StackRequest{
		Name:           input.StackName,
		TemplateBody:   input.TemplateBody,
		Parameters:     utils.MergeParameters(params, input.Overrides),
		TimeoutMinutes: input.TimeoutMinutes,
	})
	if err != nil {
		return err
	}

	result := orchestrator.Result{
		StackName: input.StackName,
		StackID:   created.StackID,
	}

	described, err := stacks.DescribeStack(ctx, input.StackName)
	if err != nil {
		logger.Warn().Err(err).Str("stack_name", input.StackName).Msg("Failed to describe stack after creation")
	} else {
		result.StackStatus = described.Status
		result.StackStatusReason = described.StatusReason
		result.CreationTime = described.CreationTimeString()
	}

	return printJSON(w, result)
}
