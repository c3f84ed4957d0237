package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/gox/slicex"
	"github.com/segmentio/ksuid"
)

// CreationTimeLayout formats stack creation times in results
const CreationTimeLayout = "01/02/2006, 15:04:05"

// CloudFormationAPI is the subset of the CloudFormation client used by StackService
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// StackRequest describes a stack to create
type StackRequest struct {
	Name           string
	TemplateBody   string
	Parameters     []models.TemplateParameter
	TimeoutMinutes int32
}

// StackResult is the state of a stack after a create or describe call
type StackResult struct {
	StackName    string    `json:"stack_name"`
	StackID      string    `json:"stack_id"`
	Status       string    `json:"stack_status"`
	StatusReason string    `json:"stack_status_reason,omitempty"`
	CreationTime time.Time `json:"-"`
}

// CreationTimeString renders CreationTime with CreationTimeLayout
func (r *StackResult) CreationTimeString() string {
	if r.CreationTime.IsZero() {
		return ""
	}
	return r.CreationTime.Format(CreationTimeLayout)
}

// StackService creates and inspects CloudFormation stacks
type StackService struct {
	client CloudFormationAPI
}

func NewStackService(client CloudFormationAPI) *StackService {
	return &StackService{client: client}
}

// CreateStack submits a stack creation request. Failed creations are rolled
// back by deleting the stack.
func (s *StackService) CreateStack(ctx context.Context, req StackRequest) (*StackResult, error) {
	logger := zerolog.Ctx(ctx)

	timeout := req.TimeoutMinutes
	if timeout <= 0 {
		timeout = defaultTimeoutMinutes
	}

	// client request token lets CloudFormation dedupe retried requests
	token := ksuid.New().String()

	logger.Debug().
		Str("stack_name", req.Name).
		Int("template_length", len(req.TemplateBody)).
		Strs("parameters", slicex.Map(req.Parameters, parameterKey)).
		Msg("Stack creation request")

	logger.Info().
		Str("stack_name", req.Name).
		Str("client_request_token", token).
		Msg("Creating stack")

	result, err := s.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:        aws.String(req.Name),
		TemplateBody:     aws.String(req.TemplateBody),
		Parameters:       slicex.Map(req.Parameters, toCFNParameter),
		TimeoutInMinutes: aws.Int32(timeout),
		OnFailure:        types.OnFailureDelete,
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
		ClientRequestToken: aws.String(token),
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("batch-provisioner"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stack %s: %w", req.Name, err)
	}

	stackID := aws.ToString(result.StackId)
	logger.Info().
		Str("stack_name", req.Name).
		Str("stack_id", stackID).
		Msg("Stack creation returned")

	return &StackResult{
		StackName: req.Name,
		StackID:   stackID,
	}, nil
}

// DescribeStack returns the current status of the named stack
func (s *StackService) DescribeStack(ctx context.Context, stackName string) (*StackResult, error) {
	result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrStackNotFound, stackName)
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}

	if len(result.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrStackNotFound, stackName)
	}

	stack := result.Stacks[0]
	return &StackResult{
		StackName:    aws.ToString(stack.StackName),
		StackID:      aws.ToString(stack.StackId),
		Status:       string(stack.StackStatus),
		StatusReason: aws.ToString(stack.StackStatusReason),
		CreationTime: aws.ToTime(stack.CreationTime),
	}, nil
}

// RecentFailureEvents returns the stack events that carry a status reason
func (s *StackService) RecentFailureEvents(ctx context.Context, stackName string) ([]types.StackEvent, error) {
	result, err := s.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack events for %s: %w", stackName, err)
	}

	var events []types.StackEvent
	for _, event := range result.StackEvents {
		if event.ResourceStatusReason != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

// IsFailedStatus reports whether status is terminal and unsuccessful
func IsFailedStatus(status string) bool {
	return slices.Contains([]types.StackStatus{
		types.StackStatusCreateFailed,
		types.StackStatusUpdateFailed,
		types.StackStatusDeleteFailed,
		types.StackStatusRollbackFailed,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusUpdateRollbackComplete,
	}, types.StackStatus(status))
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func parameterKey(p models.TemplateParameter) string {
	return p.ParameterKey
}

func toCFNParameter(p models.TemplateParameter) types.Parameter {
	return types.Parameter{
		ParameterKey:   aws.String(p.ParameterKey),
		ParameterValue: aws.String(p.ParameterValue),
	}
}
