package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// IMDSAPI is the subset of the instance metadata client used by InstanceMetadata
type IMDSAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// Instance describes the EC2 instance the agent runs on
type Instance struct {
	InstanceID       string
	Region           string
	AvailabilityZone string
}

// InstanceMetadata reads instance details from the EC2 metadata service
type InstanceMetadata struct {
	client IMDSAPI
}

func NewInstanceMetadata(client IMDSAPI) *InstanceMetadata {
	return &InstanceMetadata{client: client}
}

// Describe returns the instance identity
func (m *InstanceMetadata) Describe(ctx context.Context) (*Instance, error) {
	result, err := m.client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance identity from instance metadata: %w", err)
	}
	return &Instance{
		InstanceID:       result.InstanceID,
		Region:           result.Region,
		AvailabilityZone: result.AvailabilityZone,
	}, nil
}
