package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/urfave/cli/v2"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Environment name, selects /{env}/batch-provisioner/ configuration",
		Value:   "dev",
		EnvVars: []string{"ENV"},
	}
}

func namespaceFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "namespace",
		Aliases:  []string{"n"},
		Usage:    "Parameter namespace, e.g. /some/prefix/",
		Required: required,
	}
}

func newContainer(c *cli.Context, logger *zerolog.Logger) (di.Container, error) {
	container, err := di.New(c.String("env"), di.WithLogger(*logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create DI container: %w", err)
	}
	return container, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
