package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/urfave/cli/v2"
)

// StatusCommand describes a stack and any recent failures
func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the status of a provisioned stack",
		ArgsUsage: "<stack-name>",
		Flags: []cli.Flag{
			envFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one stack name")
			}

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			stacks, err := di.Get[*services.StackService](container)
			if err != nil {
				return err
			}

			return runStatus(c.Context, c.App.Writer, stacks, c.Args().First())
		},
	}
}

type stackInspector interface {
	DescribeStack(ctx context.Context, stackName string) (*services.StackResult, error)
	RecentFailureEvents(ctx context.Context, stackName string) ([]types.StackEvent, error)
}

func runStatus(ctx context.Context, w io.Writer, stacks stackInspector, stackName string) error {
	stack, err := stacks.DescribeStack(ctx, stackName)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Stack:   %s\n", stack.StackName)
	fmt.Fprintf(w, "ID:      %s\n", stack.StackID)
	fmt.Fprintf(w, "Status:  %s\n", stack.Status)
	if stack.StatusReason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", stack.StatusReason)
	}
	fmt.Fprintf(w, "Created: %s\n", stack.CreationTimeString())

	if !services.IsFailedStatus(stack.Status) {
		return nil
	}

	events, err := stacks.RecentFailureEvents(ctx, stackName)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRecent events:")
	for _, event := range events {
		fmt.Fprintf(w, "  %-30s %-20s %s\n",
			aws.ToString(event.LogicalResourceId),
			event.ResourceStatus,
			aws.ToString(event.ResourceStatusReason),
		)
	}
	return nil
}
