package commands

import (
	"fmt"
	"io"

	"github.com/savaki/batch-provisioner/internal/stackid"
	"github.com/urfave/cli/v2"
)

// IdentityCommand prints the stack name and namespace an upload would use
func IdentityCommand() *cli.Command {
	return &cli.Command{
		Name:      "identity",
		Usage:     "Derive the stack name and namespace for an object key",
		ArgsUsage: "<key> [key...]",
		Description: `Dry run of the naming applied to uploaded artifacts.

Example:
  batch-provisioner identity some/prefix/project-1.1.1.jar`,
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one key is required")
			}
			return printIdentities(c.App.Writer, c.Args().Slice())
		},
	}
}

type keyIdentity struct {
	Key                    string `json:"key"`
	StackName              string `json:"stack_name"`
	Namespace              string `json:"namespace"`
	EventResourceParameter string `json:"event_resource_parameter"`
}

func printIdentities(w io.Writer, keys []string) error {
	identities := make([]keyIdentity, 0, len(keys))
	for _, key := range keys {
		identity, err := stackid.Derive(key)
		if err != nil {
			return err
		}
		identities = append(identities, keyIdentity{
			Key:                    key,
			StackName:              identity.Name,
			Namespace:              identity.Namespace,
			EventResourceParameter: stackid.EventResourceParameter(identity.Namespace),
		})
	}
	return printJSON(w, identities)
}
