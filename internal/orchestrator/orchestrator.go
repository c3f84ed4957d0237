package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/dao/launchdao"
	"github.com/savaki/batch-provisioner/internal/resource"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/savaki/batch-provisioner/internal/stackid"
	"github.com/segmentio/ksuid"
)

// ObjectReader reads small text objects such as templates
type ObjectReader interface {
	GetObjectBody(ctx context.Context, bucket, key string) (string, error)
}

// StackCreator creates and describes stacks
type StackCreator interface {
	CreateStack(ctx context.Context, req services.StackRequest) (*services.StackResult, error)
	DescribeStack(ctx context.Context, stackName string) (*services.StackResult, error)
}

// LaunchRecorder keeps a history of stack creation requests
type LaunchRecorder interface {
	Create(ctx context.Context, input launchdao.CreateInput) (launchdao.Record, error)
	UpdateStatus(ctx context.Context, input launchdao.UpdateInput) error
}

// Result is returned for every provisioned artifact
type Result struct {
	StackName         string `json:"stack_name"`
	StackID           string `json:"stack_id"`
	Namespace         string `json:"namespace"`
	StackStatus       string `json:"stack_status"`
	StackStatusReason string `json:"stack_status_reason"`
	CreationTime      string `json:"creation_time"`
}

// Orchestrator provisions a stack for each uploaded artifact
type Orchestrator struct {
	store    services.ParameterStore
	objects  ObjectReader
	stacks   StackCreator
	launches LaunchRecorder
	config   *services.Config
}

// New creates a new Orchestrator instance. launches may be nil, in which case
// no launch history is kept.
func New(store services.ParameterStore, objects ObjectReader, stacks StackCreator, launches LaunchRecorder, config *services.Config) *Orchestrator {
	return &Orchestrator{
		store:    store,
		objects:  objects,
		stacks:   stacks,
		launches: launches,
		config:   config,
	}
}

// Provision creates the stack for the artifact at bucket/key.
//
// The namespace derived from key must already hold an event-data parameter.
// The artifact location is recorded in the namespace as event-resource only
// once the template and its parameters have loaded, immediately before the
// stack is requested, so the instance agent knows what to run.
func (o *Orchestrator) Provision(ctx context.Context, bucket, key string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	identity, err := stackid.Derive(key)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("bucket", bucket).
		Str("key", key).
		Str("name", identity.Name).
		Str("namespace", identity.Namespace).
		Msg("Derived stack identity from key")

	if err := services.VerifyNamespace(ctx, o.store, identity.Namespace); err != nil {
		return nil, err
	}

	templateBody, err := o.objects.GetObjectBody(ctx, o.config.TemplateBucket, o.config.TemplateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	paramsBody, err := o.objects.GetObjectBody(ctx, o.config.TemplateBucket, o.config.ParamsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load template parameters: %w", err)
	}

	params, err := services.ParseTemplateParameters(paramsBody)
	if err != nil {
		return nil, err
	}

	userData := services.UserData(o.config.BootstrapPath, identity.Name, identity.Namespace)
	logger.Info().
		Str("user_data", services.UserDataScript(o.config.BootstrapPath, identity.Name, identity.Namespace)).
		Msg("Generated instance UserData")

	eventResource := stackid.EventResourceParameter(identity.Namespace)
	artifact := resource.NewLocation(bucket, key)
	logger.Info().
		Str("parameter", eventResource).
		Str("value", artifact.URI()).
		Msg("Putting event-resource parameter")
	if err := o.store.PutParameter(ctx, eventResource, artifact.URI()); err != nil {
		return nil, err
	}

	launchID := o.recordPending(ctx, identity, bucket, key)

	created, err := o.stacks.CreateStack(ctx, services.StackRequest{
		Name:           identity.Name,
		TemplateBody:   templateBody,
		Parameters:     services.WithInstanceParameters(params, identity.Name, userData),
		TimeoutMinutes: o.config.TimeoutMinutes,
	})
	if err != nil {
		o.recordOutcome(ctx, launchID, launchdao.UpdateInput{Status: launchdao.StatusFailed, ErrorMsg: err.Error()})
		return nil, err
	}
	o.recordOutcome(ctx, launchID, launchdao.UpdateInput{Status: launchdao.StatusRequested, StackID: created.StackID})

	result := &Result{
		StackName: identity.Name,
		StackID:   created.StackID,
		Namespace: identity.Namespace,
	}

	described, err := o.stacks.DescribeStack(ctx, identity.Name)
	if err != nil {
		logger.Warn().Err(err).Str("stack_name", identity.Name).Msg("Failed to describe stack after creation")
		return result, nil
	}

	result.StackStatus = described.Status
	result.StackStatusReason = described.StatusReason
	result.CreationTime = described.CreationTimeString()

	logger.Info().
		Str("stack_name", result.StackName).
		Str("stack_id", result.StackID).
		Str("stack_status", result.StackStatus).
		Msg("Stack creation requested")

	return result, nil
}

// recordPending stores a PENDING launch and returns its id, or "" when
// launches are not recorded
func (o *Orchestrator) recordPending(ctx context.Context, identity stackid.Identity, bucket, key string) launchdao.ID {
	if o.launches == nil {
		return ""
	}

	record, err := o.launches.Create(ctx, launchdao.CreateInput{
		Namespace: identity.Namespace,
		SK:        ksuid.New().String(),
		StackName: identity.Name,
		Bucket:    bucket,
		Key:       key,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to record launch")
		return ""
	}
	return record.GetID()
}

// recordOutcome never fails the provisioning request
func (o *Orchestrator) recordOutcome(ctx context.Context, id launchdao.ID, input launchdao.UpdateInput) {
	if o.launches == nil || id == "" {
		return
	}

	input.ID = id
	if err := o.launches.UpdateStatus(ctx, input); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("launch_id", id.String()).Msg("Failed to update launch status")
	}
}
