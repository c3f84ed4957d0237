package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSAPI is the subset of the STS client used by CallerIdentity
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Caller identifies the credentials in use
type Caller struct {
	Account string
	ARN     string
}

// CallerIdentity returns the account and principal of the active credentials
func CallerIdentity(ctx context.Context, client STSAPI) (*Caller, error) {
	identity, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return &Caller{
		Account: aws.ToString(identity.Account),
		ARN:     aws.ToString(identity.Arn),
	}, nil
}
