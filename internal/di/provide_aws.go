package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/orchestrator"
	"github.com/savaki/batch-provisioner/internal/services"
)

// ProvideContext returns a background context carrying the container's logger
func ProvideContext(logger zerolog.Logger) context.Context {
	return logger.WithContext(context.Background())
}

// ProvideAWSConfig loads the default AWS configuration. Clients are built once
// per container and shared by every consumer. On EC2 the region falls back to
// instance metadata when not otherwise configured.
func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx,
		config.WithRetryMaxAttempts(5),
		config.WithEC2IMDSRegion(),
	)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideCloudFormationClient(config aws.Config) *cloudformation.Client {
	return cloudformation.NewFromConfig(config)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideSTSClient(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

// ProvideIMDSClient provides an EC2 instance metadata client. Only the agent,
// which runs on the provisioned instance, resolves it.
func ProvideIMDSClient() *imds.Client {
	return imds.New(imds.Options{})
}

func ProvideObjectStore(client *s3.Client) *services.ObjectStore {
	return services.NewObjectStore(client)
}

func ProvideStackService(client *cloudformation.Client) *services.StackService {
	return services.NewStackService(client)
}

func ProvideInstanceMetadata(client *imds.Client) *services.InstanceMetadata {
	return services.NewInstanceMetadata(client)
}

func ProvideOrchestrator(
	store services.ParameterStore,
	objects *services.ObjectStore,
	stacks *services.StackService,
	launches orchestrator.LaunchRecorder,
	config *services.Config,
) (*orchestrator.Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return orchestrator.New(store, objects, stacks, launches, config), nil
}
