package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/launchspec"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/savaki/batch-provisioner/internal/stackid"
	"github.com/urfave/cli/v2"
)

// ConfigCommand manages the parameters stored under a namespace
func ConfigCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage namespace parameters",
		Description: `Namespaces hold the parameters a batch application is launched with.
Every namespace must define event-data, the s3:// location of the data file.`,
		Subcommands: []*cli.Command{
			{
				Name:  "push",
				Usage: "Upload a properties file to a namespace",
				Description: `Upload each key=value line of a properties file as a parameter under
the namespace. Existing parameters are overwritten.

Examples:
  batch-provisioner config push --namespace /some/prefix/ --file ./application.properties

  # Show what would be written
  batch-provisioner config push --namespace /some/prefix/ --file ./application.properties --dry-run`,
				Flags: []cli.Flag{
					envFlag(),
					namespaceFlag(true),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Properties file to upload",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the parameters without writing them",
					},
				},
				Action: func(c *cli.Context) error {
					text, err := os.ReadFile(c.String("file"))
					if err != nil {
						return fmt.Errorf("failed to read properties: %w", err)
					}

					var store services.ParameterStore
					if !c.Bool("dry-run") {
						container, err := newContainer(c, logger)
						if err != nil {
							return err
						}
						if store, err = di.Get[services.ParameterStore](container); err != nil {
							return err
						}
					}

					return pushProperties(c.Context, c.App.Writer, store, c.String("namespace"), string(text))
				},
			},
			{
				Name:  "show",
				Usage: "Print a namespace as properties",
				Flags: []cli.Flag{
					envFlag(),
					namespaceFlag(true),
				},
				Action: func(c *cli.Context) error {
					container, err := newContainer(c, logger)
					if err != nil {
						return err
					}
					store, err := di.Get[services.ParameterStore](container)
					if err != nil {
						return err
					}

					return showNamespace(c.Context, c.App.Writer, store, c.String("namespace"))
				},
			},
		},
	}
}

type parameterWriter interface {
	PutParameter(ctx context.Context, name, value string) error
}

// pushProperties writes every property under namespace. A nil store only
// prints what would be written.
func pushProperties(ctx context.Context, w io.Writer, store parameterWriter, namespace, text string) error {
	logger := zerolog.Ctx(ctx)

	params, err := launchspec.ParseProperties(text)
	if err != nil {
		return err
	}
	if _, ok := params.Lookup(launchspec.EventData); !ok {
		logger.Warn().
			Str("namespace", namespace).
			Msgf("Properties do not define %s; uploads to this namespace will be rejected", launchspec.EventData)
	}

	namespace = stackid.NormalizeNamespace(namespace)
	for _, p := range params {
		name := stackid.ParameterName(namespace, p.Name)
		if store == nil {
			fmt.Fprintf(w, "%s=%s\n", name, p.Value)
			continue
		}
		if err := store.PutParameter(ctx, name, p.Value); err != nil {
			return err
		}
		logger.Info().Str("parameter", name).Msg("Put parameter")
	}

	logger.Info().
		Str("namespace", namespace).
		Int("count", len(params)).
		Bool("dry_run", store == nil).
		Msg("Configuration pushed")
	return nil
}

type parameterReader interface {
	GetParametersByPath(ctx context.Context, namespace string) (models.Parameters, error)
}

func showNamespace(ctx context.Context, w io.Writer, store parameterReader, namespace string) error {
	params, err := store.GetParametersByPath(ctx, namespace)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, launchspec.WriteProperties(params))
	return err
}
