package commands

import (
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/agent"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/urfave/cli/v2"
)

// AgentCommand runs the batch application on a provisioned instance
func AgentCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Launch the batch application for this instance's namespace",
		Description: `Started by the instance user data. Reads the namespace parameters, stages
the data file and application jar, writes application.properties and runs
the application with java.

The namespace is taken from --namespace, the "namespace" environment variable
or the namespace file, in that order.`,
		Flags: []cli.Flag{
			envFlag(),
			namespaceFlag(false),
			&cli.StringFlag{
				Name:  "namespace-file",
				Usage: "File holding namespace=<namespace>",
				Value: services.NamespaceFile,
			},
			&cli.StringFlag{
				Name:  "work-dir",
				Usage: "Directory the application is staged and run in",
				Value: services.BatchDir,
			},
			&cli.StringFlag{
				Name:    "java",
				Usage:   "Java executable",
				Value:   agent.DefaultJava,
				EnvVars: []string{"JAVA"},
			},
			&cli.BoolFlag{
				Name:  "skip-metadata",
				Usage: "Do not query EC2 instance metadata",
			},
		},
		Action: func(c *cli.Context) error {
			boot, err := agent.ResolveNamespace(c.String("namespace"), c.String("namespace-file"))
			if err != nil {
				return err
			}

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			store, err := di.Get[services.ParameterStore](container)
			if err != nil {
				return err
			}
			objects, err := di.Get[*services.ObjectStore](container)
			if err != nil {
				return err
			}

			var instance agent.InstanceDescriber
			if !c.Bool("skip-metadata") {
				if instance, err = di.Get[*services.InstanceMetadata](container); err != nil {
					return err
				}
			}

			a := agent.New(store, objects, agent.ExecRunner{}, instance, agent.Config{
				Namespace: boot.Namespace,
				Name:      boot.Name,
				WorkDir:   c.String("work-dir"),
				Java:      c.String("java"),
			})
			return a.Run(c.Context)
		},
	}
}
