package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/dao/launchdao"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/savaki/batch-provisioner/internal/stackid"
	"github.com/urfave/cli/v2"
)

// HistoryCommand lists the stacks requested for a namespace, or shows a
// single launch by id
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List stack launches recorded for a namespace",
		Flags: []cli.Flag{
			envFlag(),
			namespaceFlag(false),
			&cli.StringFlag{
				Name:  "id",
				Usage: "Show a single launch, e.g. /some/prefix/:2HFj3kLmNoPqRsTuVwXy",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print records as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.String("id") == "" && c.String("namespace") == "" {
				return fmt.Errorf("one of --namespace or --id is required")
			}

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			config, err := di.Get[*services.Config](container)
			if err != nil {
				return err
			}
			if config.LaunchTable == "" {
				return fmt.Errorf("launch history is disabled: no launch-table configured for env %s", c.String("env"))
			}
			client, err := di.Get[*dynamodb.Client](container)
			if err != nil {
				return err
			}
			launches := launchdao.New(client, config.LaunchTable)

			if id := c.String("id"); id != "" {
				return runShowLaunch(c.Context, c.App.Writer, launches, launchdao.ID(id), c.Bool("json"))
			}
			return runHistory(c.Context, c.App.Writer, launches, c.String("namespace"), c.Bool("json"))
		},
	}
}

type launchQuerier interface {
	Query(ctx context.Context, namespace string) ([]launchdao.Record, error)
}

type launchFinder interface {
	Find(ctx context.Context, id launchdao.ID) (launchdao.Record, error)
}

func runHistory(ctx context.Context, w io.Writer, launches launchQuerier, namespace string, asJSON bool) error {
	records, err := launches.Query(ctx, stackid.NormalizeNamespace(namespace))
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(w, records)
	}

	if len(records) == 0 {
		fmt.Fprintf(w, "No launches recorded for %s\n", namespace)
		return nil
	}

	for _, r := range records {
		printLaunch(w, r)
	}
	return nil
}

func runShowLaunch(ctx context.Context, w io.Writer, launches launchFinder, id launchdao.ID, asJSON bool) error {
	record, err := launches.Find(ctx, id)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(w, record)
	}

	printLaunch(w, record)
	if record.StackID != "" {
		fmt.Fprintf(w, "    stack: %s\n", record.StackID)
	}
	if record.UpdatedAt > 0 {
		fmt.Fprintf(w, "    updated: %s\n", time.Unix(record.UpdatedAt, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

func printLaunch(w io.Writer, r launchdao.Record) {
	fmt.Fprintf(w, "%s  %-10s %-30s s3://%s/%s  %s\n",
		time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
		r.Status,
		r.StackName,
		r.Bucket,
		r.Key,
		r.GetID(),
	)
	if r.ErrorMsg != "" {
		fmt.Fprintf(w, "    %s\n", r.ErrorMsg)
	}
}
