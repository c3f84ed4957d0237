package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/dao/launchdao"
	"github.com/savaki/batch-provisioner/internal/orchestrator"
	"github.com/savaki/batch-provisioner/internal/services"
)

// ProvideLaunchRecorder returns the launch history DAO, or nil when no
// launch table is configured
func ProvideLaunchRecorder(ctx context.Context, config *services.Config, client *dynamodb.Client) orchestrator.LaunchRecorder {
	if config.LaunchTable == "" {
		zerolog.Ctx(ctx).Debug().Msg("Launch history disabled (no launch table configured)")
		return nil
	}
	return launchdao.New(client, config.LaunchTable)
}
